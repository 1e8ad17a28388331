package schema

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/pardon-http/pardon/internal/pardonerr"
)

// EncodingKind names one of spec §4.4's supported string<->template
// adapters.
type EncodingKind string

const (
	EncodingJSON   EncodingKind = "json"
	EncodingForm   EncodingKind = "form"
	EncodingBase64 EncodingKind = "base64"
	EncodingText   EncodingKind = "text"
	EncodingRaw    EncodingKind = "raw"
)

// encodingSchema adapts between a string surface form and a typed inner
// template, spec §4.4 "Encoding". Merge decodes the incoming string into
// the inner schema; render re-encodes the inner schema's rendered value
// back to a string.
type encodingSchema struct {
	kind  EncodingKind
	inner Schema
}

// Encoding constructs an encoding node wrapping inner.
func Encoding(kind EncodingKind, inner Schema) Schema {
	return &encodingSchema{kind: kind, inner: inner}
}

func (e *encodingSchema) Ops() Ops {
	return Ops{
		ScopeFn:   e.scopePass,
		MergeFn:   e.merge,
		RenderFn:  e.render,
		ResolveFn: e.resolve,
	}
}

func (e *encodingSchema) scopePass(ctx *Context) error {
	if e.inner == nil {
		return nil
	}
	return Scope(ctx, e.inner)
}

func (e *encodingSchema) merge(ctx *Context, template Schema) (Schema, error) {
	other, ok := template.(*encodingSchema)
	if !ok {
		// A raw string observed as the body: decode it with this node's
		// encoding and merge the decoded shape into inner.
		text, isText := asRenderedString(ctx, template)
		if !isText {
			return nil, ctx.Fail(pardonerr.Incompatible, "encoding expects a string or matching encoding template")
		}
		decoded, err := decode(e.kind, text)
		if err != nil {
			return nil, ctx.Fail(pardonerr.Incompatible, err.Error())
		}
		next, err := Merge(ctx, e.inner, decoded)
		if err != nil {
			return nil, err
		}
		return &encodingSchema{kind: e.kind, inner: next}, nil
	}

	if other.kind != e.kind {
		return nil, ctx.Fail(pardonerr.Incompatible, "cannot mix "+string(e.kind)+" with "+string(other.kind)+" encoding")
	}
	next, err := Merge(ctx, e.inner, other.inner)
	if err != nil {
		return nil, err
	}
	return &encodingSchema{kind: e.kind, inner: next}, nil
}

func asRenderedString(ctx *Context, s Schema) (string, bool) {
	scalar, ok := s.(*scalarSchema)
	if !ok {
		return "", false
	}
	v, err := scalar.render(ctx)
	if err != nil {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

func (e *encodingSchema) render(ctx *Context) (any, error) {
	if e.inner == nil {
		return "", nil
	}
	inner, err := Render(ctx, e.inner)
	if err != nil {
		return nil, err
	}
	return encode(e.kind, inner)
}

func (e *encodingSchema) resolve(ctx *Context) (any, bool) {
	if e.inner == nil {
		return "", true
	}
	inner, ok := Resolve(ctx, e.inner)
	if !ok {
		return nil, false
	}
	v, err := encode(e.kind, inner)
	if err != nil {
		return nil, false
	}
	return v, true
}

func decode(kind EncodingKind, text string) (any, error) {
	switch kind {
	case EncodingJSON:
		if text == "" {
			return nil, nil
		}
		container, err := gabs.ParseJSON([]byte(text))
		if err != nil {
			return nil, err
		}
		return container.Data(), nil
	case EncodingForm:
		values, err := url.ParseQuery(text)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) == 1 {
				out[k] = v[0]
			} else {
				anys := make([]any, len(v))
				for i, s := range v {
					anys[i] = s
				}
				out[k] = anys
			}
		}
		return out, nil
	case EncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, err
		}
		return string(decoded), nil
	case EncodingText, EncodingRaw:
		return text, nil
	default:
		return text, nil
	}
}

func encode(kind EncodingKind, v any) (string, error) {
	switch kind {
	case EncodingJSON:
		if v == nil {
			return "", nil
		}
		return gabs.Wrap(v).String(), nil
	case EncodingForm:
		m, ok := v.(map[string]any)
		if !ok {
			return "", nil
		}
		values := url.Values{}
		for k, val := range m {
			switch t := val.(type) {
			case []any:
				for _, item := range t {
					values.Add(k, strings.TrimSpace(stringify(item)))
				}
			default:
				values.Add(k, stringify(val))
			}
		}
		return values.Encode(), nil
	case EncodingBase64:
		s, _ := v.(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	case EncodingText, EncodingRaw:
		s, _ := v.(string)
		return s, nil
	default:
		s, _ := v.(string)
		return s, nil
	}
}
