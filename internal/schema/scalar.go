package schema

import (
	"context"
	"strconv"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/scope"
)

// ScalarKind is one of the primitive value kinds spec §4.4 names.
type ScalarKind string

const (
	KindString  ScalarKind = "string"
	KindNumber  ScalarKind = "number"
	KindBoolean ScalarKind = "boolean"
	KindBigint  ScalarKind = "bigint"
	KindNull    ScalarKind = "null"
)

// scalarSchema carries a pattern and, once bound, the concrete textual
// value the pattern matched. Numeric nodes keep the matched text verbatim
// (spec §4.4: "preserve source textual form for round-trip fidelity")
// rather than parsing to float64, so a leading zero or fixed precision
// survives a render.
type scalarSchema struct {
	kind  ScalarKind
	pat   *pattern.Pattern
	bound bool
	text  string
}

// Scalar constructs a schema node for a pattern-bearing scalar.
func Scalar(kind ScalarKind, pat *pattern.Pattern) Schema {
	return &scalarSchema{kind: kind, pat: pat}
}

// ScalarLiteral constructs an already-bound scalar from a concrete value,
// used when wrapping raw Go values via FromValue.
func ScalarLiteral(kind ScalarKind, text string) Schema {
	return &scalarSchema{kind: kind, bound: true, text: text}
}

func (s *scalarSchema) Ops() Ops {
	return Ops{
		ScopeFn:   s.scopePass,
		MergeFn:   s.merge,
		RenderFn:  s.render,
		ResolveFn: s.resolve,
	}
}

func (s *scalarSchema) scopePass(ctx *Context) error {
	if s.pat == nil {
		return nil
	}
	for _, v := range s.pat.Variables {
		if v.Name == "" {
			continue
		}
		err := ctx.Scope.Declare(v.Name, scopeDeclFromVariable(v))
		if err != nil {
			ctx.Diagnose(pardonerr.Unidentified, err.Error())
		}
		if ctx.Phase == PhaseValidate && v.Hints.Has(pattern.HintRequired) {
			if _, ok := ctx.Scope.Resolve(context.Background(), v.Name); !ok {
				ctx.Diagnose(pardonerr.Missing, "required reference "+v.Name+" unresolved")
			}
		}
	}
	return nil
}

func (s *scalarSchema) merge(ctx *Context, template Schema) (Schema, error) {
	other, ok := template.(*scalarSchema)
	if !ok {
		return nil, ctx.Fail(pardonerr.Incompatible, "scalar cannot merge with non-scalar template")
	}

	// A literal template observed as a concrete value: it must match this
	// node's pattern regex (spec §4.4 scalar merge rule 1).
	if other.bound || (other.pat != nil && other.pat.Literal) {
		text := other.text
		if other.pat != nil {
			text = other.pat.Source
		}
		if s.pat == nil || s.pat.Literal {
			if s.pat != nil && s.pat.Source != text {
				return nil, ctx.Fail(pardonerr.Mismatch, "literal "+text+" does not match "+s.pat.Source)
			}
			return &scalarSchema{kind: s.kind, bound: true, text: text}, nil
		}
		values, matched := s.pat.Match(text)
		if !matched {
			return nil, ctx.Fail(pardonerr.Mismatch, "value "+text+" does not match pattern "+s.pat.Source)
		}
		for name, v := range values {
			if err := ctx.Scope.Define(name, v); err != nil {
				return nil, ctx.Fail(pardonerr.Redefined, err.Error())
			}
		}
		return &scalarSchema{kind: s.kind, pat: s.pat, bound: true, text: text}, nil
	}

	// A pattern template: must be compatible with this node's pattern.
	if s.pat != nil && other.pat != nil {
		if !s.pat.Compatible(other.pat) {
			return nil, ctx.Fail(pardonerr.Incompatible, "incompatible patterns "+s.pat.Source+" vs "+other.pat.Source)
		}
		return s, nil
	}
	if s.pat == nil {
		return other, nil
	}
	return s, nil
}

func (s *scalarSchema) render(ctx *Context) (any, error) {
	if s.bound {
		return coerce(s.kind, s.text), nil
	}
	if s.pat == nil {
		return nil, nil
	}
	if s.pat.Literal {
		return coerce(s.kind, s.pat.Source), nil
	}

	values := make([]string, len(s.pat.Variables))
	for i, v := range s.pat.Variables {
		if v.Name == "" {
			continue
		}
		val, err := resolveVariable(ctx, v)
		if err != nil {
			return nil, err
		}
		if val == nil {
			if v.Hints.Has(pattern.HintRequired) {
				return nil, ctx.Fail(pardonerr.Undefined, "no value for required reference "+v.Name)
			}
			continue
		}
		values[i] = stringify(val)
	}
	return coerce(s.kind, s.pat.Render(values)), nil
}

func (s *scalarSchema) resolve(ctx *Context) (any, bool) {
	if s.bound {
		return coerce(s.kind, s.text), true
	}
	if s.pat == nil {
		return nil, false
	}
	if s.pat.Literal {
		return coerce(s.kind, s.pat.Source), true
	}
	values := make([]string, len(s.pat.Variables))
	for i, v := range s.pat.Variables {
		if v.Name == "" {
			continue
		}
		val, ok := ctx.Scope.Resolve(context.Background(), v.Name)
		if !ok {
			return nil, false
		}
		values[i] = stringify(val)
	}
	return coerce(s.kind, s.pat.Render(values)), true
}

func scopeDeclFromVariable(v pattern.Variable) scope.Declaration {
	return scope.Declaration{Expression: v.Expression, Hint: v.Hints}
}

// resolveVariable evaluates a single pattern variable against ctx's
// scope/environment: a bound value wins, then a declared expression, then
// undefined.
func resolveVariable(ctx *Context, v pattern.Variable) (any, error) {
	if val, ok := ctx.Scope.Resolve(context.Background(), v.Name); ok {
		return val, nil
	}
	if v.Expression == "" || ctx.Env == nil {
		return nil, nil
	}
	val, err := ctx.Scope.Rendering(context.Background(), v.Name, func() (any, error) {
		return ctx.Env.Evaluate(context.Background(), ctx.Scope, v.Expression)
	})
	if err != nil {
		return nil, ctx.Fail(pardonerr.Unevaluated, err.Error())
	}
	return val, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return toString(t)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

// coerce applies spec §4.4's explicit scalar type coercion; invalid
// numeric strings are passed through unchanged rather than failing.
func coerce(kind ScalarKind, text string) any {
	switch kind {
	case KindNumber, KindBigint:
		if _, err := strconv.ParseFloat(text, 64); err == nil {
			return text // preserved verbatim for round-trip fidelity
		}
		return text
	case KindBoolean:
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
		return text
	case KindNull:
		return nil
	default:
		return text
	}
}
