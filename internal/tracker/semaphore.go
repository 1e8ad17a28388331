package tracker

import "context"

// Semaphore bounds concurrency for callers running many flows, spec §5
// "the request-execution layer exposes a semaphore(n) primitive".
// Queued tasks do not inherit tracking from one another or from the
// caller — each gets its own root chain, spec §4.8 "a semaphore(n)
// concurrency gate does not inherit tracking across queued tasks; each
// task's tracking is independent".
type Semaphore struct {
	tracker *Tracker
	gate    chan struct{}
}

// NewSemaphore builds a gate admitting at most n concurrent tasks.
func NewSemaphore(t *Tracker, n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{tracker: t, gate: make(chan struct{}, n)}
}

// Run blocks until a slot is free, then runs fn with a freshly rooted
// chain, releasing the slot (and the chain) when fn returns.
func (s *Semaphore) Run(ctx context.Context, fn func(id ChainID) error) error {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.gate }()

	id := s.tracker.Root()
	defer s.tracker.Release(id)
	return fn(id)
}
