package pattern

import "testing"

func TestParse_Literal(t *testing.T) {
	p, err := Parse("https://example.com/v1/thing", DefaultBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Literal {
		t.Fatalf("expected literal pattern")
	}
	if got := p.Render(nil); got != p.Source {
		t.Errorf("render = %q, want %q", got, p.Source)
	}
}

func TestParse_MatchRender_RoundTrip(t *testing.T) {
	p, err := Parse("https://{{env}}.example.com/v1/thing/{{id}}", OriginBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := "https://stage.example.com/v1/thing/abc"
	values, ok := p.Match(input)
	if !ok {
		t.Fatalf("expected match for %q", input)
	}
	if values["env"] != "stage" || values["id"] != "abc" {
		t.Fatalf("unexpected captures: %+v", values)
	}

	rendered := p.RenderByName(values)
	if rendered != input {
		t.Errorf("round trip: rendered = %q, want %q", rendered, input)
	}
}

func TestMatch_NoMatch(t *testing.T) {
	p, err := Parse("/users/{{id}}", PathnameBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Match("/users/1/extra"); ok {
		t.Errorf("expected no match for trailing segment")
	}
}

func TestRewrite_RegexToRegex(t *testing.T) {
	from, _ := Parse("/api/{{env}}/v1", DefaultBuildRules)
	to, _ := Parse("/{{env}}-api/v1", DefaultBuildRules)

	receiver, _ := Parse("/api/{{env}}/v1/users", DefaultBuildRules)
	rewritten, err := receiver.Rewrite(from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	values, ok := rewritten.Match("/api/stage/v1/users")
	if !ok {
		t.Fatalf("rewritten pattern did not match expected string")
	}
	if values["env"] != "stage" {
		t.Errorf("env = %q, want stage", values["env"])
	}
}

func TestRewrite_LiteralReceiver(t *testing.T) {
	from, _ := Parse("{{env}}.example.com", OriginBuildRules)
	to, _ := Parse("{{env}}.example.org", OriginBuildRules)

	receiver, _ := Parse("stage.example.com", OriginBuildRules)
	rewritten, err := receiver.Rewrite(from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rewritten.Source != "stage.example.org" {
		t.Errorf("rewritten = %q, want stage.example.org", rewritten.Source)
	}
}

func TestRewrite_MismatchedNames(t *testing.T) {
	from, _ := Parse("{{a}}", DefaultBuildRules)
	to, _ := Parse("{{b}}-{{c}}", DefaultBuildRules)
	receiver, _ := Parse("x-{{a}}", DefaultBuildRules)

	if _, err := receiver.Rewrite(from, to); err == nil {
		t.Errorf("expected error for mismatched variable sets")
	}
}

func TestCompatible(t *testing.T) {
	p, _ := Parse("/v1/{{thing}}", PathnameBuildRules)
	literal, _ := Parse("/v1/widgets", PathnameBuildRules)

	if !p.Compatible(literal) {
		t.Errorf("expected pattern to be compatible with matching literal")
	}

	other, _ := Parse("/v2/widgets", PathnameBuildRules)
	if p.Compatible(other) {
		t.Errorf("expected pattern incompatible with differing literal prefix")
	}
}

func TestParse_Hints(t *testing.T) {
	p, err := Parse("{{!id}}", DefaultBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Variables) != 1 {
		t.Fatalf("expected 1 variable, got %d", len(p.Variables))
	}
	v := p.Variables[0]
	if v.Name != "id" {
		t.Errorf("name = %q, want id", v.Name)
	}
	if !v.Hints.Has(HintRequired) {
		t.Errorf("expected required hint")
	}
}

func TestParse_ExpressionAndConstraint(t *testing.T) {
	p, err := Parse("{{+json = JSON.parse(text) % /[a-z]+/}}", DefaultBuildRules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := p.Variables[0]
	if v.Name != "json" {
		t.Errorf("name = %q, want json", v.Name)
	}
	if !v.Hints.Has(HintExport) {
		t.Errorf("expected export hint")
	}
	if v.Expression == "" {
		t.Errorf("expected expression to be captured")
	}
	if v.Constraint != "[a-z]+" {
		t.Errorf("constraint = %q, want [a-z]+", v.Constraint)
	}
}
