package pipeline

import (
	"fmt"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/schema"
	"github.com/pardon-http/pardon/internal/scope"
)

// MatchResult is the outcome of matching an Ask against a candidate set
// of endpoints: the first endpoint whose request schema merges with the
// ask. Matching fails only with no-match; ambiguity is not reported (see
// matchAsk).
type MatchResult struct {
	Endpoint Endpoint
	Merged   schema.Schema
	Scope    *scope.Scope
}

// askTemplate builds the object schema representing what was actually
// observed on the wire, for merging (ModeMatch) against a candidate
// endpoint's declared request schema. Only fields the ask actually
// supplies are included; object merge only walks the template's own
// field set; see internal/schema/object.go, so endpoint fields the ask
// is silent on are left to their own declared defaults/patterns.
func askTemplate(ask Ask) schema.Schema {
	origin, pathname, query := splitURL(ask.URL)

	fields := map[string]schema.Schema{}
	order := []string{}

	method := ask.Method
	if method == "" {
		method = "GET"
	}
	fields["method"] = schema.ScalarLiteral(schema.KindString, method)
	order = append(order, "method")

	if origin != "" {
		fields["origin"] = schema.ScalarLiteral(schema.KindString, origin)
		order = append(order, "origin")
	}
	if pathname != "" {
		fields["pathname"] = schema.ScalarLiteral(schema.KindString, pathname)
		order = append(order, "pathname")
	}
	if len(query) > 0 {
		fields["searchParams"] = observedKeyedList(stringMapToAny(query))
		order = append(order, "searchParams")
	}
	if len(ask.Headers) > 0 {
		fields["headers"] = observedKeyedList(stringMapToAny(ask.Headers))
		order = append(order, "headers")
	}
	if ask.Body != "" {
		fields["body"] = schema.ScalarLiteral(schema.KindString, ask.Body)
		order = append(order, "body")
	}

	return schema.Object(order, fields, nil, false)
}

func stringMapToAny(m map[string]string) map[string]string { return m }

// observedKeyedList builds a keyed-list merge template from concrete
// name/value pairs observed on the wire (as opposed to KeyedList's empty
// declared form), reusing the {name,value} entry shape every keyed list
// in internal/httpschema declares.
func observedKeyedList(pairs map[string]string) schema.Schema {
	order := make([]string, 0, len(pairs))
	entries := make(map[string]schema.Schema, len(pairs))
	for key, value := range pairs {
		order = append(order, key)
		entries[key] = schema.Object([]string{"name", "value"}, map[string]schema.Schema{
			"name":  schema.ScalarLiteral(schema.KindString, key),
			"value": schema.ScalarLiteral(schema.KindString, value),
		}, nil, false)
	}
	return schema.KeyedListOf(nil, false, order, entries)
}

// matchAsk tries ask against every candidate in order, returning the
// first endpoint whose request schema merges compatibly, spec §4.7.
// Candidates after the first successful match are not attempted: spec
// §4.7 names "ambiguous-match" as a distinct failure from "no-match",
// but discriminating the two needs continuing to try every remaining
// candidate purely for diagnostics; this implementation stops at the
// first match, documented as a simplification.
func matchAsk(sc *scope.Scope, env scope.Environment, ask Ask, candidates []Endpoint) (*MatchResult, error) {
	template := askTemplate(ask)

	var diagnostics []string
	for _, endpoint := range candidates {
		attemptScope := sc.Subscope(endpoint.Label(), scope.Index{Kind: scope.IndexTemp, Key: endpoint.Label()})
		for k, v := range ask.Values {
			_ = attemptScope.Define(k, v)
		}
		ctx := schema.NewContext(schema.ModeMatch, schema.PhaseBuild, attemptScope, env)

		merged, err := schema.Merge(ctx, endpoint.RequestSchema(), template)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", endpoint.Label(), err))
			continue
		}
		return &MatchResult{Endpoint: endpoint, Merged: merged, Scope: attemptScope}, nil
	}

	return nil, pardonerr.NewExecutionError(pardonerr.StageMatch, fmt.Errorf("no endpoint matched ask %s %s (%v)", ask.Method, ask.URL, diagnostics), map[string]any{
		"method": ask.Method,
		"url":    ask.URL,
	})
}
