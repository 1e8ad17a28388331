package schema

import "context"

// redactionSchema wraps a schema: render delegates to
// environment.Redact rather than exposing the raw value, spec §4.4
// "Redaction".
type redactionSchema struct {
	inner    Schema
	patterns []string
}

// Redact wraps inner so render produces a sanitized value.
func Redact(inner Schema, patterns ...string) Schema {
	return &redactionSchema{inner: inner, patterns: patterns}
}

func (r *redactionSchema) Ops() Ops {
	return Ops{
		ScopeFn: func(ctx *Context) error { return Scope(ctx, r.inner) },
		MergeFn: func(ctx *Context, template Schema) (Schema, error) {
			if other, ok := template.(*redactionSchema); ok {
				template = other.inner
			}
			next, err := Merge(ctx, r.inner, template)
			if err != nil {
				return nil, err
			}
			return &redactionSchema{inner: next, patterns: r.patterns}, nil
		},
		RenderFn: func(ctx *Context) (any, error) {
			v, err := Render(ctx, r.inner)
			if err != nil {
				return nil, err
			}
			if ctx.Env == nil {
				return "{{redacted}}", nil
			}
			return ctx.Env.Redact(context.Background(), ctx.Path(), v), nil
		},
		ResolveFn: func(ctx *Context) (any, bool) {
			v, ok := Resolve(ctx, r.inner)
			if !ok {
				return nil, false
			}
			if ctx.Env == nil {
				return "{{redacted}}", true
			}
			return ctx.Env.Redact(context.Background(), ctx.Path(), v), true
		},
	}
}

// Hide wraps inner so it still participates in scope/merge but never
// contributes to the rendered output, spec §4.4's "hidden renders
// nothing to output while still participating in scoping" — used for
// the request schema's hidden `computations` map (spec §4.6).
func Hide(inner Schema) Schema {
	return &hiddenSchema{inner: inner}
}

type hiddenSchema struct{ inner Schema }

func (h *hiddenSchema) Ops() Ops {
	return Ops{
		ScopeFn: func(ctx *Context) error { return Scope(ctx, h.inner) },
		MergeFn: func(ctx *Context, template Schema) (Schema, error) {
			if other, ok := template.(*hiddenSchema); ok {
				template = other.inner
			}
			next, err := Merge(ctx, h.inner, template)
			if err != nil {
				return nil, err
			}
			return &hiddenSchema{inner: next}, nil
		},
		RenderFn:  func(ctx *Context) (any, error) { _, err := Render(ctx, h.inner); return nil, err },
		ResolveFn: func(ctx *Context) (any, bool) { return nil, true },
	}
}

// stubSchema is a pass-through neutral placeholder. A hidden stub still
// participates in scoping but renders nothing into the output, spec §4.4
// "Stub / Hidden".
type stubSchema struct {
	hidden bool
	value  any
}

// Stub constructs a neutral pass-through node.
func Stub(value any) Schema { return &stubSchema{value: value} }

// Hidden constructs a stub that renders nothing.
func Hidden() Schema { return &stubSchema{hidden: true} }

func (s *stubSchema) Ops() Ops {
	return Ops{
		ScopeFn: func(ctx *Context) error { return nil },
		MergeFn: func(ctx *Context, template Schema) (Schema, error) {
			if stub, ok := template.(*stubSchema); ok {
				return &stubSchema{hidden: s.hidden, value: stub.value}, nil
			}
			return &stubSchema{hidden: s.hidden, value: template}, nil
		},
		RenderFn: func(ctx *Context) (any, error) {
			if s.hidden {
				return nil, nil
			}
			return s.value, nil
		},
		ResolveFn: func(ctx *Context) (any, bool) {
			if s.hidden {
				return nil, true
			}
			return s.value, true
		},
	}
}
