// Package pipeline implements spec.md §4.7 (C7): the six-stage lazy
// execution state machine (init → match → preview → render → fetch →
// process), its hook discipline, and the concrete scope.Environment that
// bridges Scope's lazy evaluation to internal/expr and
// internal/configspace.
//
// Grounded on the teacher's runtime/executor.go/runtime/execution.go,
// whose Execution type threads an immutable, copy-on-write context
// (WithContext/WithScopedContext) through a sequence of task
// invocations with memoized per-step results — generalized from "one
// flow of arbitrary task steps" to "exactly six named stages with a
// fixed transition graph".
package pipeline

import (
	"context"
	"fmt"

	"github.com/pardon-http/pardon/internal/configspace"
	"github.com/pardon-http/pardon/internal/expr"
	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/scope"
)

// Environment is the concrete scope.Environment implementation used by
// every stage except preview (see previewEnvironment), bridging
// expression evaluation to internal/expr and config resolution to
// internal/configspace.
type Environment struct {
	Evaluator *expr.Evaluator
	Space     *configspace.Space
}

// NewEnvironment builds an Environment with a fresh expression evaluator
// and the given config space (nil is fine: Match/ConfigImplied degrade
// to "no config space configured").
func NewEnvironment(space *configspace.Space) *Environment {
	return &Environment{Evaluator: expr.NewEvaluator(), Space: space}
}

// Evaluate runs expression against every value currently bound anywhere
// in s's tree — the scope-tree analogue of the teacher's flat
// ValueStore being handed whole to the expr-lang evaluator.
func (e *Environment) Evaluate(ctx context.Context, s *scope.Scope, expression string) (any, error) {
	vars := s.All()
	return e.Evaluator.Eval(expression, vars)
}

// Redact returns the fixed placeholder the teacher's config-masking
// convention uses, spec §4.2 "redact({value, patterns}) returns a
// sanitized representation (typically \"{{redacted}}\")".
func (e *Environment) Redact(ctx context.Context, identifier string, value any) any {
	return "{{redacted}}"
}

// Match reports whether rendered is compatible with any candidate
// pattern source, delegating to the config space when present, spec
// §4.2 "match(template, patterns) ... delegate to the config space (C5)
// when present".
func (e *Environment) Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool) {
	for _, source := range candidates {
		pat, err := pattern.Parse(source, pattern.DefaultBuildRules)
		if err != nil {
			continue
		}
		values, ok := pat.Match(rendered)
		if !ok {
			continue
		}
		if e.Space != nil {
			if _, result := e.Space.Match(pat, rendered); result.Ok {
				return source, result.Implied, true
			}
		}
		return source, values, true
	}
	return "", nil, false
}

// ConfigImplied resolves the free identifiers implied by bound, spec
// §4.2's config() delegation.
func (e *Environment) ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error) {
	if e.Space == nil {
		return map[string]string{}, nil
	}
	row := configspace.Row{}
	for k, v := range bound {
		if s, ok := v.(string); ok {
			row[k] = s
		}
	}
	narrowed := e.Space.Choose(row)
	if narrowed.Exhausted() {
		return nil, fmt.Errorf("configspace: no option rows remain for %v", bound)
	}
	return narrowed.Implied(), nil
}

// revealingEnvironment wraps an Environment so redaction-wrapped schema
// nodes (internal/schema's Redact()) return the true value instead of
// the masked placeholder — used only when building the request that
// actually goes out over the wire; everywhere else (logging, display,
// the Egress.Redacted copy) uses the base Environment's masking Redact.
type revealingEnvironment struct {
	inner scope.Environment
}

func (r revealingEnvironment) Evaluate(ctx context.Context, s *scope.Scope, expression string) (any, error) {
	return r.inner.Evaluate(ctx, s, expression)
}
func (r revealingEnvironment) Redact(ctx context.Context, identifier string, value any) any {
	return value
}
func (r revealingEnvironment) Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool) {
	return r.inner.Match(ctx, rendered, candidates)
}
func (r revealingEnvironment) ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error) {
	return r.inner.ConfigImplied(ctx, bound)
}

// previewEnvironment wraps a real Environment so expression evaluation
// never invokes user scripts during the preview stage, spec §4.7
// "previews never invoke user scripts (they operate in a restricted
// render mode where expression nodes return placeholders)".
type previewEnvironment struct {
	inner *Environment
}

func (p previewEnvironment) Evaluate(ctx context.Context, s *scope.Scope, expression string) (any, error) {
	return "{{preview}}", nil
}
func (p previewEnvironment) Redact(ctx context.Context, identifier string, value any) any {
	return p.inner.Redact(ctx, identifier, value)
}
func (p previewEnvironment) Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool) {
	return p.inner.Match(ctx, rendered, candidates)
}
func (p previewEnvironment) ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error) {
	return p.inner.ConfigImplied(ctx, bound)
}
