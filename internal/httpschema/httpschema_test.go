package httpschema

import (
	"context"
	"testing"

	"github.com/pardon-http/pardon/internal/schema"
	"github.com/pardon-http/pardon/internal/scope"
)

type fakeEnv struct{}

func (fakeEnv) Evaluate(ctx context.Context, s *scope.Scope, expression string) (any, error) {
	return nil, nil
}
func (fakeEnv) Redact(ctx context.Context, identifier string, value any) any { return "{{redacted}}" }
func (fakeEnv) Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool) {
	return "", nil, false
}
func (fakeEnv) ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error) {
	return nil, nil
}

func TestNewMethodSchema_DefaultsToGET(t *testing.T) {
	node, err := NewMethodSchema("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sc := scope.New()
	ctx := schema.NewContext(schema.ModeMatch, schema.PhaseValidate, sc, fakeEnv{})
	v, err := schema.Render(ctx, node)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if v != "GET" {
		t.Errorf("got %v, want GET", v)
	}
}

func TestSelectBodyEncoding(t *testing.T) {
	if got := SelectBodyEncoding("", map[string]string{"Content-Type": "application/json"}); got != schema.EncodingJSON {
		t.Errorf("got %v, want json", got)
	}
	if got := SelectBodyEncoding("form", map[string]string{"Content-Type": "application/json"}); got != schema.EncodingForm {
		t.Errorf("declared encoding should win, got %v", got)
	}
	if got := SelectBodyEncoding("", nil); got != schema.EncodingRaw {
		t.Errorf("got %v, want raw for absent content-type", got)
	}
}

func TestRequestSchema_ComposesFields(t *testing.T) {
	method, _ := NewMethodSchema("POST")
	origin, _ := NewOriginSchema("https://example.com")
	pathname, _ := NewPathnameSchema("/v1/widgets")

	req := Request{Method: method, Origin: origin, Pathname: pathname}
	node := req.Schema()

	sc := scope.New()
	ctx := schema.NewContext(schema.ModeMatch, schema.PhaseValidate, sc, fakeEnv{})
	v, err := schema.Render(ctx, node)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	out, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", v)
	}
	if out["method"] != "POST" || out["origin"] != "https://example.com" || out["pathname"] != "/v1/widgets" {
		t.Errorf("unexpected request render: %+v", out)
	}
	if out["computations"] != nil {
		t.Errorf("hidden computations should render as nil, got %v", out["computations"])
	}
}
