package schema

import (
	"context"
	"testing"

	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/scope"
)

// fakeEnv is a minimal scope.Environment for tests that never actually
// need expression evaluation, redaction, or config matching.
type fakeEnv struct{}

func (fakeEnv) Evaluate(ctx context.Context, s *scope.Scope, expression string) (any, error) {
	return nil, nil
}
func (fakeEnv) Redact(ctx context.Context, identifier string, value any) any {
	return "{{redacted}}"
}
func (fakeEnv) Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool) {
	return "", nil, false
}
func (fakeEnv) ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error) {
	return nil, nil
}

func TestScalar_MatchThenRender(t *testing.T) {
	pat, err := pattern.Parse("https://{{env}}.example.com/v1/thing/{{id}}", pattern.OriginBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sc := scope.New()
	env := fakeEnv{}
	node := Scalar(KindString, pat)

	mergeCtx := NewContext(ModeMatch, PhaseBuild, sc, env)
	merged, err := Merge(mergeCtx, node, "https://stage.example.com/v1/thing/abc")
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}

	renderCtx := NewContext(ModeMatch, PhaseValidate, sc, env).WithStage(StageRender)
	v, err := Render(renderCtx, merged)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if v != "https://stage.example.com/v1/thing/abc" {
		t.Errorf("render = %v", v)
	}
}

func TestObject_SharedReference_Redefined(t *testing.T) {
	sc := scope.New()
	env := fakeEnv{}

	pat, _ := pattern.Parse("{{x}}", pattern.DefaultBuildRules)
	template := Object([]string{"a", "b"}, map[string]Schema{
		"a": Scalar(KindString, pat),
		"b": Scalar(KindString, pat),
	}, nil, false)

	mergeCtx := NewContext(ModeMatch, PhaseBuild, sc, env)
	merged, err := Merge(mergeCtx, template, map[string]any{"a": "hello", "b": "hello"})
	if err != nil {
		t.Fatalf("unexpected error merging equal values: %v", err)
	}
	if merged == nil {
		t.Fatalf("expected merged schema")
	}

	sc2 := scope.New()
	mergeCtx2 := NewContext(ModeMatch, PhaseBuild, sc2, env)
	template2 := Object([]string{"a", "b"}, map[string]Schema{
		"a": Scalar(KindString, pat),
		"b": Scalar(KindString, pat),
	}, nil, false)
	_, err = Merge(mergeCtx2, template2, map[string]any{"a": "hello", "b": "world"})
	if err == nil {
		t.Fatalf("expected redefined error for conflicting shared reference")
	}
}

func TestKeyedList_ResolvesByKey(t *testing.T) {
	sc := scope.New()
	env := fakeEnv{}

	namePat, _ := pattern.Parse("{{key}}", pattern.DefaultBuildRules)
	valuePat, _ := pattern.Parse("{{v}}", pattern.DefaultBuildRules)

	valueSchema := Object([]string{"name", "value"}, map[string]Schema{
		"name":  Scalar(KindString, namePat),
		"value": Scalar(KindString, valuePat),
	}, nil, false)

	keyed := KeyedList(nil, valueSchema, false)

	records := []any{
		map[string]any{"name": "a", "value": "1"},
		map[string]any{"name": "b", "value": "2"},
	}

	asList := &keyedListSchema{valueSchema: valueSchema, entries: map[string]Schema{}}
	for i, rec := range records {
		m := rec.(map[string]any)
		key := m["name"].(string)
		asList.order = append(asList.order, key)
		asList.entries[key] = FromValue(m)
		_ = i
	}

	mergeCtx := NewContext(ModeMatch, PhaseBuild, sc, env)
	merged, err := Merge(mergeCtx, keyed, asList)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	renderCtx := NewContext(ModeMatch, PhaseValidate, sc, env)
	v, err := Render(renderCtx, merged)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	out, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", v)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %+v", out)
	}
}
