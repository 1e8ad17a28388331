package scope

import (
	"context"
	"testing"

	"github.com/pardon-http/pardon/internal/pattern"
)

func TestDefine_RedefinedConflict(t *testing.T) {
	s := New()
	if err := s.Define("id", "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Define("id", "abc"); err != nil {
		t.Fatalf("idempotent redefine should succeed: %v", err)
	}
	if err := s.Define("id", "xyz"); err == nil {
		t.Fatalf("expected redefined error")
	}
}

func TestResolve_WalksAncestors(t *testing.T) {
	root := New()
	if err := root.Define("env", "stage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	child := root.Subscope("request", Index{Kind: IndexField, Key: "request"})

	v, ok := child.Resolve(context.Background(), "env")
	if !ok || v != "stage" {
		t.Fatalf("expected to resolve env=stage from ancestor, got %v %v", v, ok)
	}
}

func TestRendering_DetectsCycle(t *testing.T) {
	s := New()
	var again func() (any, error)
	again = func() (any, error) {
		return s.Rendering(context.Background(), "x", again)
	}
	_, err := s.Rendering(context.Background(), "x", again)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestResolvedValues_FiltersByHint(t *testing.T) {
	s := New()
	_ = s.Declare("token", Declaration{Hint: pattern.HintRedact})
	_ = s.Define("token", "secret")
	_ = s.Declare("id", Declaration{Hint: pattern.HintExport})
	_ = s.Define("id", "123")
	_ = s.Declare("tmp", Declaration{Hint: pattern.HintNoExport})
	_ = s.Define("tmp", "scratch")

	plain := s.ResolvedValues(ExportOptions{})
	if _, ok := plain["token"]; ok {
		t.Errorf("expected token to be redacted without Secrets")
	}
	if _, ok := plain["tmp"]; ok {
		t.Errorf("expected tmp to be dropped, it is no-export")
	}
	if _, ok := plain["id"]; !ok {
		t.Errorf("expected id to be present")
	}

	withSecrets := s.ResolvedValues(ExportOptions{Secrets: true})
	if _, ok := withSecrets["token"]; !ok {
		t.Errorf("expected token present when Secrets requested")
	}

	exportsOnly := s.ResolvedValues(ExportOptions{ExportsOnly: true})
	if _, ok := exportsOnly["id"]; !ok {
		t.Errorf("expected exported id present")
	}
	if len(exportsOnly) != 1 {
		t.Errorf("expected only the exported identifier, got %+v", exportsOnly)
	}
}

func TestDottedIdentifier_DescendsSubscope(t *testing.T) {
	s := New()
	if err := s.Define("request.method", "GET"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := s.Resolve(context.Background(), "request.method")
	if !ok || v != "GET" {
		t.Fatalf("expected GET, got %v %v", v, ok)
	}
}
