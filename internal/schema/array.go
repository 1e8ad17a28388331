package schema

import (
	"github.com/pardon-http/pardon/internal/pardonerr"
)

// ArrayVariant selects one of spec §4.4's four array node behaviors.
type ArrayVariant string

const (
	VariantTuple    ArrayVariant = "tuple"    // fixed length, positional merge
	VariantTemplate ArrayVariant = "template" // single archetype, one schema per element
	VariantMulti    ArrayVariant = "multi"    // mismatched lengths permitted
	VariantLenient  ArrayVariant = "lenient"  // accepts a non-array as one element
)

type arraySchema struct {
	variant   ArrayVariant
	elements  []Schema
	archetype Schema // used by template/multi variants
	single    bool   // lenient: the merged value arrived as a scalar, not an array
}

// Array constructs an array node of the given variant.
func Array(variant ArrayVariant, elements []Schema, archetype Schema) Schema {
	return &arraySchema{variant: variant, elements: append([]Schema{}, elements...), archetype: archetype}
}

func (a *arraySchema) Ops() Ops {
	return Ops{
		ScopeFn:   a.scopePass,
		MergeFn:   a.merge,
		RenderFn:  a.render,
		ResolveFn: a.resolve,
	}
}

func (a *arraySchema) scopePass(ctx *Context) error {
	for i, el := range a.elements {
		if err := Scope(ctx.Element(i), el); err != nil {
			return err
		}
	}
	if a.archetype != nil {
		if err := Scope(ctx, a.archetype); err != nil {
			return err
		}
	}
	return nil
}

// arrayLike lets merge accept a plain Go slice wrapped by FromValue, in
// addition to another arraySchema.
type arrayLike interface {
	items() []any
}

func (a *arraySchema) items() []any {
	out := make([]any, len(a.elements))
	for i, e := range a.elements {
		out[i] = e
	}
	return out
}

func (a *arraySchema) merge(ctx *Context, template Schema) (Schema, error) {
	other, ok := template.(*arraySchema)
	if !ok {
		if a.variant == VariantLenient {
			// A single non-array value stands in for a one-element array.
			merged := &arraySchema{variant: a.variant, single: true}
			var el Schema
			if len(a.elements) > 0 {
				el = a.elements[0]
			}
			next, err := Merge(ctx.Element(0), el, template)
			if err != nil {
				return nil, err
			}
			merged.elements = []Schema{next}
			return merged, nil
		}
		return nil, ctx.Fail(pardonerr.Incompatible, "array cannot merge with non-array template")
	}

	switch a.variant {
	case VariantTuple:
		return a.mergeTuple(ctx, other)
	case VariantTemplate:
		return a.mergeTemplate(ctx, other)
	case VariantMulti:
		return a.mergeMulti(ctx, other)
	case VariantLenient:
		return a.mergeTemplate(ctx, other)
	default:
		return nil, ctx.Fail(pardonerr.Incompatible, "unknown array variant")
	}
}

func (a *arraySchema) mergeTuple(ctx *Context, other *arraySchema) (Schema, error) {
	if len(other.elements) != 0 && len(other.elements) != len(a.elements) {
		return nil, ctx.Fail(pardonerr.Mismatch, "tuple length mismatch")
	}
	merged := &arraySchema{variant: VariantTuple, elements: make([]Schema, len(a.elements))}
	for i, el := range a.elements {
		var incoming Schema
		if i < len(other.elements) {
			incoming = other.elements[i]
		}
		if incoming == nil {
			merged.elements[i] = el
			continue
		}
		next, err := Merge(ctx.Element(i), el, incoming)
		if err != nil {
			return nil, err
		}
		merged.elements[i] = next
	}
	return merged, nil
}

func (a *arraySchema) mergeTemplate(ctx *Context, other *arraySchema) (Schema, error) {
	archetype := a.archetype
	if archetype == nil && len(a.elements) > 0 {
		archetype = a.elements[0]
	}
	merged := &arraySchema{variant: a.variant, archetype: archetype}
	merged.elements = make([]Schema, len(other.elements))
	for i, incoming := range other.elements {
		next, err := Merge(ctx.Element(i), archetype, incoming)
		if err != nil {
			return nil, err
		}
		merged.elements[i] = next
	}
	if len(other.elements) == 0 {
		merged.elements = a.elements
	}
	registerStruts(ctx, archetype, len(merged.elements))
	return merged, nil
}

// mergeMulti implements spec §4.4's multivalue array: "each new element
// is placed into the first archetype slot it merges with (else
// appended)". Lengths need not agree.
func (a *arraySchema) mergeMulti(ctx *Context, other *arraySchema) (Schema, error) {
	merged := &arraySchema{variant: VariantMulti, archetype: a.archetype, elements: append([]Schema{}, a.elements...)}

	for _, incoming := range other.elements {
		placed := false
		for i, slot := range merged.elements {
			next, err := Merge(ctx.Element(i), slot, incoming)
			if err == nil {
				merged.elements[i] = next
				placed = true
				break
			}
		}
		if !placed {
			next, err := Merge(ctx.Element(len(merged.elements)), merged.archetype, incoming)
			if err != nil {
				return nil, err
			}
			merged.elements = append(merged.elements, next)
		}
	}
	registerStruts(ctx, merged.archetype, len(merged.elements))
	return merged, nil
}

func (a *arraySchema) render(ctx *Context) (any, error) {
	length := a.renderLength(ctx)
	out := make([]any, 0, length)
	for i := 0; i < length; i++ {
		var el Schema
		if i < len(a.elements) {
			el = a.elements[i]
		} else {
			el = a.archetype
		}
		if el == nil {
			out = append(out, nil)
			continue
		}
		v, err := Render(ctx.Element(i), el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if a.single && len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// renderLength implements spec §4.4's array-length inference: explicit
// length, the `single` flag, or the max strut length registered in scope
// during the scope pass (e.g. a sibling capture "{{a.v}}" sizes this
// array to the cardinality of `a`).
func (a *arraySchema) renderLength(ctx *Context) int {
	if a.single {
		return 1
	}
	if len(a.elements) > 0 {
		return len(a.elements)
	}
	best := 0
	for name := range struts(a) {
		if l, ok := ctx.Scope.StrutLength(name); ok && l > best {
			best = l
		}
	}
	return best
}

// registerStruts records, on ctx's scope, the length a merged array
// settled on under the name of every capture variable found within
// archetype. A sibling unconstrained array field sharing the same scope
// (two fields of a plain, non-scoped object) later reads this back
// through struts/StrutLength to size itself off this array's element
// count.
func registerStruts(ctx *Context, archetype Schema, length int) {
	for name := range captureNames(archetype) {
		ctx.Scope.RegisterStrut(name, length)
	}
}

// struts returns the set of capture names that could size a, drawn from
// its archetype if it has one (the template/multi case) or the union of
// its own elements' captures otherwise (the tuple case).
func struts(a *arraySchema) map[string]struct{} {
	if a.archetype != nil {
		return captureNames(a.archetype)
	}
	out := map[string]struct{}{}
	for _, el := range a.elements {
		for name := range captureNames(el) {
			out[name] = struct{}{}
		}
	}
	return out
}

// captureNames collects every named pattern variable captured anywhere
// within s, recursing into object fields/archetypes and array
// elements/archetypes.
func captureNames(s Schema) map[string]struct{} {
	out := map[string]struct{}{}
	collectCaptureNames(s, out)
	return out
}

func collectCaptureNames(s Schema, out map[string]struct{}) {
	switch t := s.(type) {
	case nil:
		return
	case *scalarSchema:
		if t.pat == nil {
			return
		}
		for _, v := range t.pat.Variables {
			if v.Name != "" {
				out[v.Name] = struct{}{}
			}
		}
	case *objectSchema:
		for _, name := range t.order {
			collectCaptureNames(t.fields[name], out)
		}
		collectCaptureNames(t.archetype, out)
	case *arraySchema:
		for _, el := range t.elements {
			collectCaptureNames(el, out)
		}
		collectCaptureNames(t.archetype, out)
	}
}

func (a *arraySchema) resolve(ctx *Context) (any, bool) {
	out := make([]any, 0, len(a.elements))
	for i, el := range a.elements {
		v, ok := Resolve(ctx.Element(i), el)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	if a.single && len(out) == 1 {
		return out[0], true
	}
	return out, true
}
