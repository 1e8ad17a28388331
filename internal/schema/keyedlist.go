package schema

import (
	"context"
	"fmt"

	"github.com/pardon-http/pardon/internal/pardonerr"
)

// keyedListSchema represents a list-of-records reinterpreted as a map
// keyed by an extracted field, spec §4.4 "Keyed list". keySchema must
// resolve an "@key" binding in a temp scope during merge; entries holds
// one value-schema per discovered key, in first-seen order.
type keyedListSchema struct {
	keySchema   Schema
	valueSchema Schema
	multivalue  bool

	order   []string
	entries map[string]Schema
}

// KeyedList constructs a keyed-list node. keySchema is merged against
// each incoming element in a scratch "@key" scope to extract the key;
// valueSchema is the per-entry object schema.
func KeyedList(keySchema, valueSchema Schema, multivalue bool) Schema {
	return &keyedListSchema{keySchema: keySchema, valueSchema: valueSchema, multivalue: multivalue, entries: map[string]Schema{}}
}

// KeyedListOf builds a keyed list already populated with concrete
// entries, in order, for use as a merge template representing an
// observed value (e.g. a request's actual headers or search params)
// rather than a declared shape — the populated-literal counterpart to
// KeyedList's empty declaration, exposed so callers outside this
// package never need keyedListSchema's unexported fields directly.
func KeyedListOf(valueSchema Schema, multivalue bool, order []string, entries map[string]Schema) Schema {
	return &keyedListSchema{valueSchema: valueSchema, multivalue: multivalue, order: append([]string{}, order...), entries: entries}
}

func (k *keyedListSchema) Ops() Ops {
	return Ops{
		ScopeFn:   k.scopePass,
		MergeFn:   k.merge,
		RenderFn:  k.render,
		ResolveFn: k.resolve,
	}
}

func (k *keyedListSchema) scopePass(ctx *Context) error {
	for _, key := range k.order {
		entry := k.entries[key]
		if entry == nil {
			continue
		}
		if err := Scope(ctx.Field(key), entry); err != nil {
			return err
		}
	}
	return nil
}

func (k *keyedListSchema) merge(ctx *Context, template Schema) (Schema, error) {
	other, ok := template.(*keyedListSchema)
	if !ok {
		return nil, ctx.Fail(pardonerr.Incompatible, "keyed list cannot merge with non-list template")
	}

	merged := &keyedListSchema{
		keySchema:   k.keySchema,
		valueSchema: k.valueSchema,
		multivalue:  k.multivalue || other.multivalue,
		order:       append([]string{}, k.order...),
		entries:     make(map[string]Schema, len(k.entries)),
	}
	for key, v := range k.entries {
		merged.entries[key] = v
	}

	for _, key := range other.order {
		incoming := other.entries[key]
		key, err := k.extractKey(ctx, key, incoming)
		if err != nil {
			return nil, err
		}

		if existing, ok := merged.entries[key]; ok {
			if merged.multivalue {
				combined, err := combineMultivalue(ctx.Field(key), existing, incoming)
				if err != nil {
					return nil, err
				}
				merged.entries[key] = combined
				continue
			}
			next, err := Merge(ctx.Field(key), existing, incoming)
			if err != nil {
				return nil, err
			}
			merged.entries[key] = next
			continue
		}

		next, err := Merge(ctx.Field(key), merged.valueSchema, incoming)
		if err != nil {
			return nil, err
		}
		merged.entries[key] = next
		merged.order = append(merged.order, key)
	}

	return merged, nil
}

// extractKey merges k.keySchema against a temp scope holding "@key" bound
// to the candidate key text, per spec §4.4's requirement that the key
// schema "resolve a key in a temp scope during merge".
func (k *keyedListSchema) extractKey(ctx *Context, candidateKey string, entry Schema) (string, error) {
	if k.keySchema == nil {
		return candidateKey, nil
	}
	tempCtx := ctx.Field("@key-extract")
	_ = tempCtx.Scope.Define("@key", candidateKey)
	if _, err := Merge(tempCtx, k.keySchema, candidateKey); err != nil {
		return "", err
	}
	resolved, ok := tempCtx.Scope.Resolve(context.Background(), "@key")
	if !ok {
		return candidateKey, nil
	}
	return fmt.Sprint(resolved), nil
}

func combineMultivalue(ctx *Context, existing, incoming Schema) (Schema, error) {
	arr, ok := existing.(*arraySchema)
	if !ok {
		arr = &arraySchema{variant: VariantMulti, elements: []Schema{existing}}
	}
	return arr.mergeMulti(ctx, &arraySchema{variant: VariantMulti, elements: []Schema{incoming}})
}

func (k *keyedListSchema) render(ctx *Context) (any, error) {
	out := make(map[string]any, len(k.order))
	for _, key := range k.order {
		entry := k.entries[key]
		if entry == nil {
			continue
		}
		v, err := Render(ctx.Field(key), entry)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (k *keyedListSchema) resolve(ctx *Context) (any, bool) {
	out := make(map[string]any, len(k.order))
	for _, key := range k.order {
		entry := k.entries[key]
		if entry == nil {
			continue
		}
		v, ok := Resolve(ctx.Field(key), entry)
		if !ok {
			return nil, false
		}
		out[key] = v
	}
	return out, true
}
