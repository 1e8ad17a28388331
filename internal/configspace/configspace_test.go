package configspace

import (
	"testing"

	"github.com/pardon-http/pardon/internal/pattern"
)

func TestNew_EnumeratesRows(t *testing.T) {
	space := New(map[string]any{
		"origin": map[string]any{
			"env": map[string]any{
				"stage": "https://stage.example.com",
				"prod":  "https://prod.example.com",
			},
		},
	})
	if len(space.Rows()) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(space.Rows()), space.Rows())
	}
}

func TestChoose_Implied(t *testing.T) {
	space := New(map[string]any{
		"origin": map[string]any{
			"env": map[string]any{
				"stage": "https://stage.example.com",
				"prod":  "https://prod.example.com",
			},
		},
	})

	chosen := space.Choose(Row{"env": "stage"})
	implied := chosen.Implied()
	if implied["env"] != "stage" {
		t.Fatalf("expected env=stage implied, got %+v", implied)
	}
	for _, row := range chosen.Rows() {
		if row["env"] != "stage" {
			t.Errorf("expected only env=stage rows to remain, got %+v", row)
		}
	}
}

func TestExhausted(t *testing.T) {
	space := New(map[string]any{
		"origin": map[string]any{
			"env": map[string]any{"stage": "a", "prod": "b"},
		},
	})
	narrowed := space.Choose(Row{"env": "nonexistent"})
	if !narrowed.Exhausted() {
		t.Errorf("expected space to be exhausted after an impossible choice")
	}
}

func TestMatch_ForcesImpliedFromObservedOrigin(t *testing.T) {
	space := New(map[string]any{
		"origin": map[string]any{
			"env": map[string]any{
				"stage": "https://s.example.com",
				"prod":  "https://p.example.com",
			},
		},
	})

	originPat, err := pattern.Parse("https://{{env}}.example.com", pattern.OriginBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The test uses a simpler origin-matching pattern capturing "env"
	// straight off the hostname, independent of the space's option
	// values, to exercise narrowing via a captured variable.
	narrowed, result := space.Match(originPat, "https://prod.example.com")
	if !result.Ok {
		t.Fatalf("expected match to succeed")
	}
	if result.Implied["env"] != "prod" {
		t.Fatalf("expected env=prod implied, got %+v", result.Implied)
	}
	if len(narrowed.Rows()) != 1 {
		t.Fatalf("expected exactly one row to remain, got %+v", narrowed.Rows())
	}
}

func TestDefaults_ConditionalOnSibling(t *testing.T) {
	defaults := NewDefaults(map[string][]DefaultRule{
		"region": {
			{When: Row{"env": "prod"}, Value: "us-east-1"},
			{When: Row{}, Value: "local"},
		},
	})
	space := New(map[string]any{}).WithDefaults(defaults)

	chosen := space.Choose(Row{"env": "prod"})
	chosen.chosen["env"] = "prod"
	v, ok := chosen.Default("region")
	if !ok || v != "us-east-1" {
		t.Fatalf("expected region default us-east-1, got %q %v", v, ok)
	}
}
