package scope

import "context"

// Environment is the render-time bridge a Scope calls into when a
// declaration's expression needs evaluating, a value needs redacting for
// display, or a pattern needs matching/config-space resolution. Spec §3
// describes this as the seam between the scope tree and the rest of the
// pipeline; internal/pipeline implements it, wiring internal/expr for
// Evaluate and internal/configspace for Match/ConfigImplied. Keeping the
// interface here (rather than importing configspace's types) keeps scope
// dependency-free of the layers built on top of it.
type Environment interface {
	// Evaluate runs expression against the scope's visible bindings.
	Evaluate(ctx context.Context, s *Scope, expression string) (any, error)

	// Redact returns a display-safe replacement for a value bound to an
	// identifier carrying the redact hint.
	Redact(ctx context.Context, identifier string, value any) any

	// Match reports whether a rendered string is compatible with any of
	// the candidate patterns, per spec §4.4's endpoint/path matching.
	Match(ctx context.Context, rendered string, candidates []string) (string, map[string]string, bool)

	// ConfigImplied resolves the finite config-space choice implied by a
	// set of bound values, returning the remaining free identifiers'
	// defaults, per spec §4.3.
	ConfigImplied(ctx context.Context, bound map[string]any) (map[string]string, error)
}
