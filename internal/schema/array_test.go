package schema

import (
	"testing"

	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/scope"
)

// TestArray_SizesBySiblingStrut exercises spec §4.4's array-length
// inference: an array with no declared length sizes itself to the
// cardinality of a sibling array's matching capture.
func TestArray_SizesBySiblingStrut(t *testing.T) {
	itemPat, err := pattern.Parse("{{item}}", pattern.DefaultBuildRules)
	if err != nil {
		t.Fatalf("unexpected pattern error: %v", err)
	}

	archetype := func() Schema { return Scalar(KindString, itemPat) }
	known := Array(VariantTemplate, nil, archetype())
	inferred := Array(VariantTemplate, nil, archetype())

	template := Object([]string{"known", "inferred"}, map[string]Schema{
		"known":    known,
		"inferred": inferred,
	}, nil, false)

	sc := scope.New()
	env := fakeEnv{}

	mergeCtx := NewContext(ModeMatch, PhaseBuild, sc, env)
	merged, err := Merge(mergeCtx, template, map[string]any{
		"known": []any{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}

	renderCtx := NewContext(ModeMatch, PhaseValidate, sc, env)
	out, err := Render(renderCtx, merged)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	fields, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", out)
	}
	inferredOut, ok := fields["inferred"].([]any)
	if !ok {
		t.Fatalf("expected inferred field to render as a slice, got %T", fields["inferred"])
	}
	if len(inferredOut) != 3 {
		t.Errorf("expected inferred array sized to the sibling's 3 elements, got %d", len(inferredOut))
	}
}

func TestStruts_ArchetypeCaptureNames(t *testing.T) {
	pat, _ := pattern.Parse("{{id}}", pattern.DefaultBuildRules)
	a := &arraySchema{variant: VariantTemplate, archetype: Scalar(KindString, pat)}

	names := struts(a)
	if _, ok := names["id"]; !ok || len(names) != 1 {
		t.Errorf("expected struts to find capture \"id\", got %+v", names)
	}
}
