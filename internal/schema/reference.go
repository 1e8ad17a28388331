package schema

import (
	"context"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/scope"
)

// referenceSchema is a named placeholder, spec §4.4 "Reference". Path
// descent (".$x"), accessors (".@value"/".@key"), and type coercion
// (".string"/".number"/...) are represented by Path/Accessor/Coerce
// rather than the original's proxy-chain reference builder (spec §9's
// design note calls for "an immutable ReferencePath struct" in a
// systems-language port).
type referenceSchema struct {
	name       string
	hints      pattern.Hint
	expression string
	path       []string
	accessor   string // "", "@value", "@key"
	coerce     ScalarKind

	bound    bool
	value    any
}

// Reference constructs a reference node.
func Reference(name string, hints pattern.Hint, expression string) Schema {
	return &referenceSchema{name: name, hints: hints, expression: expression}
}

// ReferencePath builds a fluent path-descent reference, spec §9's
// proxy-based reference builder equivalent.
type ReferencePath struct {
	base *referenceSchema
}

func NewReferencePath(name string) ReferencePath {
	return ReferencePath{base: &referenceSchema{name: name}}
}

func (p ReferencePath) Field(name string) ReferencePath {
	next := *p.base
	next.path = append(append([]string{}, next.path...), name)
	return ReferencePath{base: &next}
}

func (p ReferencePath) Value() ReferencePath    { return p.withAccessor("@value") }
func (p ReferencePath) Key() ReferencePath       { return p.withAccessor("@key") }
func (p ReferencePath) AsString() ReferencePath  { return p.withCoerce(KindString) }
func (p ReferencePath) AsNumber() ReferencePath  { return p.withCoerce(KindNumber) }
func (p ReferencePath) AsBoolean() ReferencePath { return p.withCoerce(KindBoolean) }

func (p ReferencePath) withAccessor(a string) ReferencePath {
	next := *p.base
	next.accessor = a
	return ReferencePath{base: &next}
}

func (p ReferencePath) withCoerce(k ScalarKind) ReferencePath {
	next := *p.base
	next.coerce = k
	return ReferencePath{base: &next}
}

func (p ReferencePath) Build() Schema { return p.base }

func (r *referenceSchema) Ops() Ops {
	return Ops{
		ScopeFn:   r.scopePass,
		MergeFn:   r.merge,
		RenderFn:  r.render,
		ResolveFn: r.resolve,
	}
}

func (r *referenceSchema) identifier() string {
	if len(r.path) == 0 {
		return r.name
	}
	ident := r.name
	for _, p := range r.path {
		ident += "." + p
	}
	return ident
}

func (r *referenceSchema) scopePass(ctx *Context) error {
	if r.name == "" {
		return nil
	}
	return ctx.Scope.Declare(r.identifier(), scope.Declaration{Expression: r.expression, Hint: r.hints})
}

func (r *referenceSchema) merge(ctx *Context, template Schema) (Schema, error) {
	switch other := template.(type) {
	case *referenceSchema:
		// Compose hints/expression from a matching reference-template on
		// the other side, spec §4.4 merge rule (c).
		merged := *r
		merged.hints |= other.hints
		if merged.expression == "" {
			merged.expression = other.expression
		}
		return &merged, nil
	case *scalarSchema:
		value, ok := other.resolve(ctx)
		if !ok {
			if v, err := other.render(ctx); err == nil {
				value, ok = v, true
			}
		}
		if !ok {
			return r, nil
		}
		if err := ctx.Scope.Define(r.identifier(), value); err != nil {
			return nil, ctx.Fail(pardonerr.Redefined, err.Error())
		}
		merged := *r
		merged.bound = true
		merged.value = value
		return &merged, nil
	default:
		// A concrete Go-literal wrapper (object/array) binds directly too.
		merged := *r
		merged.bound = true
		merged.value = template
		return &merged, nil
	}
}

func (r *referenceSchema) render(ctx *Context) (any, error) {
	if r.bound {
		return r.applyAccessor(r.value), nil
	}
	if v, ok := ctx.Scope.Resolve(context.Background(), r.identifier()); ok {
		return r.applyAccessor(v), nil
	}
	if r.expression != "" && ctx.Env != nil {
		v, err := ctx.Scope.Rendering(context.Background(), r.identifier(), func() (any, error) {
			return ctx.Env.Evaluate(context.Background(), ctx.Scope, r.expression)
		})
		if err != nil {
			return nil, ctx.Fail(pardonerr.Unevaluated, err.Error())
		}
		return r.applyAccessor(v), nil
	}
	if r.hints.Has(pattern.HintRequired) {
		return nil, ctx.Fail(pardonerr.Undefined, "no value for required reference "+r.identifier())
	}
	return nil, nil
}

func (r *referenceSchema) resolve(ctx *Context) (any, bool) {
	if r.bound {
		return r.applyAccessor(r.value), true
	}
	v, ok := ctx.Scope.Resolve(context.Background(), r.identifier())
	if !ok {
		return nil, false
	}
	return r.applyAccessor(v), true
}

func (r *referenceSchema) applyAccessor(v any) any {
	if r.accessor == "" {
		return v
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	return m[r.accessor]
}
