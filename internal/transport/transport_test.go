package transport

import "testing"

func TestFlattenKeyedList_SingleAndMultivalue(t *testing.T) {
	rendered := map[string]any{
		"Content-Type": map[string]any{"name": "Content-Type", "value": "application/json"},
		"Accept": []any{
			map[string]any{"name": "Accept", "value": "application/json"},
			map[string]any{"name": "Accept", "value": "text/plain"},
		},
	}
	out := flattenKeyedList(rendered)
	if len(out["Content-Type"]) != 1 || out["Content-Type"][0] != "application/json" {
		t.Fatalf("unexpected single-value entry: %+v", out["Content-Type"])
	}
	if len(out["Accept"]) != 2 {
		t.Fatalf("expected 2 multivalue entries, got %+v", out["Accept"])
	}
}

func TestStatusText_StripsLeadingCode(t *testing.T) {
	if got := statusText("200 OK", 200); got != "OK" {
		t.Errorf("expected OK, got %q", got)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := ConfigFromEnv()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default MaxRetries=3, got %d", cfg.MaxRetries)
	}
}
