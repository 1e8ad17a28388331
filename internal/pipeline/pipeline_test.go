package pipeline

import (
	"context"
	"testing"

	"github.com/pardon-http/pardon/internal/httpschema"
	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/schema"
	"github.com/pardon-http/pardon/internal/tracker"
)

type stubEndpoint struct {
	label     string
	request   schema.Schema
	responses []ResponseSchema
}

func (s stubEndpoint) Label() string                    { return s.label }
func (s stubEndpoint) RequestSchema() schema.Schema      { return s.request }
func (s stubEndpoint) ResponseSchemas() []ResponseSchema { return s.responses }

type stubFetcher struct {
	ingress Ingress
}

func (f stubFetcher) Fetch(ctx context.Context, request map[string]any) (Ingress, error) {
	return f.ingress, nil
}

func loginEndpoint(t *testing.T) Endpoint {
	t.Helper()
	origin, err := httpschema.NewOriginSchema("https://{{env}}.example.com")
	if err != nil {
		t.Fatalf("origin schema: %v", err)
	}
	pathname, err := httpschema.NewPathnameSchema("/login")
	if err != nil {
		t.Fatalf("pathname schema: %v", err)
	}
	method, err := httpschema.NewMethodSchema("POST")
	if err != nil {
		t.Fatalf("method schema: %v", err)
	}
	status, err := httpschema.NewStatusSchema("200")
	if err != nil {
		t.Fatalf("status schema: %v", err)
	}

	req := httpschema.Request{Method: method, Origin: origin, Pathname: pathname}
	resp := httpschema.Response{Status: status, Outcome: "ok"}

	return stubEndpoint{
		label:     "login.request",
		request:   req.Schema(),
		responses: []ResponseSchema{{Outcome: "ok", Schema: resp.Schema()}},
	}
}

func TestExecution_MatchRenderFetchProcess(t *testing.T) {
	endpoint := loginEndpoint(t)
	env := NewEnvironment(nil)
	tr := tracker.New()
	fetcher := stubFetcher{ingress: Ingress{Status: 200}}

	exec := Init(Ask{Method: "POST", URL: "https://stage.example.com/login"}, []Endpoint{endpoint}, *env, tr, fetcher, nil)

	match, err := exec.Match(context.Background())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match.Endpoint.Label() != "login.request" {
		t.Fatalf("expected login.request, got %s", match.Endpoint.Label())
	}

	egress, err := exec.Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if egress.Request["origin"] != "https://stage.example.com" {
		t.Fatalf("unexpected rendered origin: %+v", egress.Request)
	}

	result, err := exec.Process(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Outcome != "ok" {
		t.Fatalf("expected outcome ok, got %s", result.Outcome)
	}

	awaited := tr.Awaited(exec.Chain())
	if len(awaited) == 0 {
		t.Fatalf("expected tracker to record at least one awaited value")
	}
}

func TestExecution_NoMatch(t *testing.T) {
	endpoint := loginEndpoint(t)
	env := NewEnvironment(nil)
	tr := tracker.New()

	exec := Init(Ask{Method: "GET", URL: "https://stage.example.com/unrelated"}, []Endpoint{endpoint}, *env, tr, stubFetcher{}, nil)

	if _, err := exec.Match(context.Background()); err == nil {
		t.Fatalf("expected no-match error")
	} else if _, ok := err.(*pardonerr.ExecutionError); !ok {
		t.Fatalf("expected *pardonerr.ExecutionError, got %T", err)
	}
}
