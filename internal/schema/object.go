package schema

import (
	"github.com/pardon-http/pardon/internal/pardonerr"
)

// objectSchema is a keyed field set plus an optional archetype schema
// applied to fields the declared set doesn't name, spec §4.4 "Objects".
type objectSchema struct {
	order     []string
	fields    map[string]Schema
	archetype Schema
	scoped    bool
}

// Object constructs an object node. order fixes field iteration/merge
// order (new fields discovered during merge are appended).
func Object(order []string, fields map[string]Schema, archetype Schema, scoped bool) Schema {
	if fields == nil {
		fields = map[string]Schema{}
	}
	return &objectSchema{order: append([]string{}, order...), fields: fields, archetype: archetype, scoped: scoped}
}

func (o *objectSchema) Ops() Ops {
	return Ops{
		ScopeFn:   o.scopePass,
		MergeFn:   o.merge,
		RenderFn:  o.render,
		ResolveFn: o.resolve,
	}
}

// fieldCtx descends into a field, creating a child scope only for
// `scoped` objects (spec §4.4); plain objects share the enclosing scope
// so sibling fields can bind the same identifier (spec scenario S2).
func (o *objectSchema) fieldCtx(ctx *Context, name string) *Context {
	if o.scoped {
		return ctx.Field(name)
	}
	return ctx.FieldKey(name)
}

func (o *objectSchema) scopePass(ctx *Context) error {
	for _, name := range o.order {
		field := o.fields[name]
		if field == nil {
			continue
		}
		if err := Scope(o.fieldCtx(ctx, name), field); err != nil {
			return err
		}
	}
	if o.archetype != nil {
		if err := Scope(ctx, o.archetype); err != nil {
			return err
		}
	}
	return nil
}

// objectLike lets merge accept both a compiled objectSchema and a plain
// Go map[string]any wrapped via FromValue.
type objectLike interface {
	fieldNames() []string
	field(name string) (Schema, bool)
}

func (o *objectSchema) fieldNames() []string           { return o.order }
func (o *objectSchema) field(name string) (Schema, bool) { f, ok := o.fields[name]; return f, ok }

func (o *objectSchema) merge(ctx *Context, template Schema) (Schema, error) {
	other, ok := template.(objectLike)
	if !ok {
		return nil, ctx.Fail(pardonerr.Incompatible, "object cannot merge with non-object template")
	}

	merged := &objectSchema{
		order:     append([]string{}, o.order...),
		fields:    make(map[string]Schema, len(o.fields)),
		archetype: o.archetype,
		scoped:    o.scoped,
	}
	for k, v := range o.fields {
		merged.fields[k] = v
	}

	for _, name := range other.fieldNames() {
		value, _ := other.field(name)
		fieldCtx := o.fieldCtx(ctx, name)

		current, existing := merged.fields[name]
		if existing {
			next, err := Merge(fieldCtx, current, value)
			if err != nil {
				return nil, err
			}
			merged.fields[name] = next
			continue
		}

		switch {
		case merged.archetype != nil:
			// Extra field against an archetype: clone the archetype and
			// merge the incoming value into it, spec §4.4 "extra template
			// fields trigger the archetype".
			next, err := Merge(fieldCtx, merged.archetype, value)
			if err != nil {
				return nil, err
			}
			merged.fields[name] = next
			merged.order = append(merged.order, name)
		case ctx.Mode == ModeMix || ctx.Mode == ModeMux || ctx.Mode == ModeMeld:
			// mix semantics: new references declare against an open shape.
			next, err := Merge(fieldCtx, nil, value)
			if err != nil {
				return nil, err
			}
			merged.fields[name] = next
			merged.order = append(merged.order, name)
		default:
			return nil, ctx.Fail(pardonerr.Incompatible, "unexpected field "+name)
		}
	}

	return merged, nil
}

func (o *objectSchema) render(ctx *Context) (any, error) {
	out := make(map[string]any, len(o.order))
	for _, name := range o.order {
		field := o.fields[name]
		if field == nil {
			continue
		}
		fieldCtx := o.fieldCtx(ctx, name)
		if o.scoped {
			_ = fieldCtx.Scope.Define("@key", name)
		}
		v, err := Render(fieldCtx, field)
		if err != nil {
			return nil, err
		}
		if o.scoped {
			_ = fieldCtx.Scope.Define("@value", v)
		}
		out[name] = v
	}
	return out, nil
}

func (o *objectSchema) resolve(ctx *Context) (any, bool) {
	out := make(map[string]any, len(o.order))
	for _, name := range o.order {
		field := o.fields[name]
		if field == nil {
			continue
		}
		v, ok := Resolve(o.fieldCtx(ctx, name), field)
		if !ok {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}
