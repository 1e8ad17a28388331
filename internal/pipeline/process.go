package pipeline

import (
	"fmt"
	"strconv"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/schema"
	"github.com/pardon-http/pardon/internal/scope"
)

// Ingress is the raw, unprocessed response observed on the wire, spec
// §4.7 "fetch() performs the network call and returns the raw response".
type Ingress struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Body       string
}

// Result is the process stage's output, spec §4.7 "process() matches
// the response against the endpoint's declared outcomes and extracts
// the output values".
type Result struct {
	Output  any
	Outcome string
}

func responseTemplate(ing Ingress) schema.Schema {
	fields := map[string]schema.Schema{
		"status": schema.ScalarLiteral(schema.KindString, strconv.Itoa(ing.Status)),
	}
	order := []string{"status"}
	if ing.StatusText != "" {
		fields["statusText"] = schema.ScalarLiteral(schema.KindString, ing.StatusText)
		order = append(order, "statusText")
	}
	if len(ing.Headers) > 0 {
		fields["headers"] = observedKeyedList(ing.Headers)
		order = append(order, "headers")
	}
	if ing.Body != "" {
		fields["body"] = schema.ScalarLiteral(schema.KindString, ing.Body)
		order = append(order, "body")
	}
	return schema.Object(order, fields, nil, true)
}

// processIngress matches ing against each of endpoint's declared
// responses in order, returning the first compatible one, spec §4.7.
func processIngress(sc *scope.Scope, env scope.Environment, endpoint Endpoint, ing Ingress) (*Result, error) {
	template := responseTemplate(ing)

	var diagnostics []string
	for _, candidate := range endpoint.ResponseSchemas() {
		attemptScope := sc.Subscope("response", scope.Index{Kind: scope.IndexTemp, Key: candidate.Outcome})
		ctx := schema.NewContext(schema.ModeMatch, schema.PhaseBuild, attemptScope, env)

		merged, err := schema.Merge(ctx, candidate.Schema, template)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", candidate.Outcome, err))
			continue
		}

		renderCtx := schema.NewContext(schema.ModeMatch, schema.PhaseValidate, attemptScope, env)
		out, err := schema.Render(renderCtx, merged)
		if err != nil {
			return nil, pardonerr.NewExecutionError(pardonerr.StageProcess, err, map[string]any{"outcome": candidate.Outcome})
		}
		return &Result{Output: out, Outcome: candidate.Outcome}, nil
	}

	return nil, pardonerr.NewExecutionError(pardonerr.StageProcess, fmt.Errorf("no declared response matched status %d (%v)", ing.Status, diagnostics), map[string]any{
		"status": ing.Status,
	})
}
