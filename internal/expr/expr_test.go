package expr

import "testing"

func TestEvaluator_Eval(t *testing.T) {
	e := NewEvaluator()
	vars := map[string]any{"a": 2, "b": 3}
	got, err := e.Eval("a + b", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Errorf("got %v, want 5", got)
	}
}

func TestEvaluator_UndefinedIsNil(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval("missing", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestDesugar_Await(t *testing.T) {
	got := Desugar("json.await.length")
	want := "json.length"
	if got != want {
		t.Errorf("Desugar() = %q, want %q", got, want)
	}
}

func TestDesugar_HintPrefix(t *testing.T) {
	if got := Desugar("+token"); got != "token" {
		t.Errorf("Desugar(+token) = %q, want token", got)
	}
}

func TestEvaluator_Base64(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval(`base64_encode("hi")`, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "aGk=" {
		t.Errorf("got %v, want aGk=", got)
	}
}
