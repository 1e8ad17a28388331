package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuild_EndpointAssemblyAndOverride(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "service.yaml"), "origin: https://{{env}}.example.com\nencoding: json\n")
	writeFile(t, filepath.Join(base, "auth", "service.yaml"), "defaults:\n  scope: read\n")
	writeFile(t, filepath.Join(base, "auth", "defaults.yaml"), "retries: 1\n")
	writeFile(t, filepath.Join(base, "auth", "login.https"),
		">>>\n"+
			"POST /login\n"+
			"Content-Type: application/json\n"+
			"\n"+
			`{"user":"{{user}}"}`+"\n"+
			"<<<\n"+
			"200 OK\n"+
			"?outcome: ok\n"+
			"\n"+
			`{"token":"{{token}}"}`+"\n")

	overlay := t.TempDir()
	writeFile(t, filepath.Join(overlay, "auth", "service.yaml"), "defaults:\n  scope: write\n")

	col, err := Build(base, overlay)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(col.Errors) != 0 {
		t.Fatalf("unexpected load errors: %v", col.Errors)
	}

	ep, ok := col.Endpoints["auth/login"]
	if !ok {
		t.Fatalf("expected endpoint auth/login, got %v", col.Labels())
	}
	if len(ep.ResponseSchemas()) != 1 || ep.ResponseSchemas()[0].Outcome != "ok" {
		t.Fatalf("unexpected responses: %+v", ep.ResponseSchemas())
	}

	cfg := resolveConfig(col, "auth")
	defaults, _ := cfg["defaults"].(map[string]any)
	if defaults["scope"] != "write" {
		t.Fatalf("expected overlay layer to win scope=write, got %+v", defaults)
	}
	if defaults["retries"] != 1 {
		t.Fatalf("expected base defaults.yaml retries=1 folded in, got %+v", defaults)
	}
	if cfg["origin"] != "https://{{env}}.example.com" {
		t.Fatalf("expected root service.yaml origin inherited, got %+v", cfg["origin"])
	}

	env := pipeline.NewEnvironment(nil)
	tr := tracker.New()
	fetcher := stubFetcher{}
	exec := pipeline.Init(pipeline.Ask{
		Method: "POST",
		URL:    "https://stage.example.com/login",
		Values: map[string]any{"user": "alice"},
	}, col.Candidates(), *env, tr, fetcher, nil)

	match, err := exec.Match(context.Background())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match.Endpoint.Label() != "auth/login" {
		t.Fatalf("expected auth/login, got %s", match.Endpoint.Label())
	}
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, request map[string]any) (pipeline.Ingress, error) {
	return pipeline.Ingress{Status: 200, Body: `{"token":"abc"}`}, nil
}
