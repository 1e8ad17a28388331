package tracker

import (
	"context"
	"testing"
)

func TestAwait_UnionsTrackedValues(t *testing.T) {
	tr := New()
	a := tr.Root()
	b := tr.Root()

	tr.Track(a, "login-request")
	tr.Track(b, "me-request")

	tr.Await(a, b)

	awaitedA := tr.Awaited(a)
	if len(awaitedA) != 2 {
		t.Fatalf("expected 2 tracked values after await, got %d: %+v", len(awaitedA), awaitedA)
	}
}

func TestSpawn_InheritsAncestorTracking(t *testing.T) {
	tr := New()
	parent := tr.Root()
	tr.Track(parent, "base-value")

	child := tr.Spawn(parent)
	tr.Track(child, "child-value")

	childValues := tr.Awaited(child)
	if len(childValues) != 2 {
		t.Fatalf("expected child to see both its own and inherited values, got %+v", childValues)
	}

	parentValues := tr.Awaited(parent)
	if len(parentValues) != 1 {
		t.Fatalf("expected parent unaffected by child's own tracking (copy-on-write), got %+v", parentValues)
	}
}

func TestDisconnected_DoesNotPublishBack(t *testing.T) {
	tr := New()
	caller := tr.Root()
	tr.Track(caller, "caller-value")

	tr.Disconnected(func(id ChainID) {
		tr.Track(id, "isolated-value")
	})

	callerValues := tr.Awaited(caller)
	if len(callerValues) != 1 {
		t.Fatalf("expected disconnected work not to publish back, got %+v", callerValues)
	}
}

func TestSemaphore_IndependentTrackingPerTask(t *testing.T) {
	tr := New()
	sem := NewSemaphore(tr, 2)

	var ids []ChainID
	for i := 0; i < 3; i++ {
		err := sem.Run(context.Background(), func(id ChainID) error {
			tr.Track(id, i)
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	seen := make(map[ChainID]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("expected distinct chains per task, reused %v", id)
		}
		seen[id] = true
	}
}
