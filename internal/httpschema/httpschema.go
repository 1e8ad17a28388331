// Package httpschema implements spec.md §4.6 (C6): the HTTPS request and
// response schema shapes composed from internal/schema nodes and
// internal/pattern patterns.
//
// Grounded on the teacher's plugins/http/plugin.go, which assembles a
// resty request from a declarative {method, url, headers, body} task
// config — generalized from "fields read off a static config struct"
// to "fields each independently pattern-bearing and schema-mergeable".
package httpschema

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/pardon-http/pardon/internal/pattern"
	"github.com/pardon-http/pardon/internal/schema"
)

// NewMethodSchema builds the request's method field: a string pattern
// defaulting to "GET" when source is empty, per spec §4.6.
func NewMethodSchema(source string) (schema.Schema, error) {
	if source == "" {
		source = "GET"
	}
	pat, err := pattern.Parse(source, pattern.DefaultBuildRules)
	if err != nil {
		return nil, err
	}
	return schema.Scalar(schema.KindString, pat), nil
}

// NewOriginSchema builds the request's origin field. Origin patterns
// forbid `.` in captured variables by default (so `{{env}}.example.com`
// captures only the subdomain); the `?:` hint combination (optional +
// no-export) relaxes this to allow an empty/unconstrained origin.
func NewOriginSchema(source string) (schema.Schema, error) {
	pat, err := pattern.Parse(source, pattern.OriginBuildRules)
	if err != nil {
		return nil, err
	}
	return schema.Scalar(schema.KindString, pat), nil
}

// NewPathnameSchema builds the request's pathname field. Pathname
// patterns default to a single non-slash segment per variable; `?` allows
// that segment to be empty and `...` widens to a greedy rest-segment.
// `!/` and `?/` are not recognised as hints.
func NewPathnameSchema(source string) (schema.Schema, error) {
	pat, err := pattern.Parse(source, pattern.PathnameBuildRules)
	if err != nil {
		return nil, err
	}
	return schema.Scalar(schema.KindString, pat), nil
}

// NewSearchParamsSchema builds the urlencoded, multivalued-by-default
// search params keyed list, spec §4.6.
func NewSearchParamsSchema() (schema.Schema, error) {
	namePat, err := pattern.Parse("{{@key}}", pattern.DefaultBuildRules)
	if err != nil {
		return nil, err
	}
	valuePat, err := pattern.Parse("{{@value}}", pattern.DefaultBuildRules)
	if err != nil {
		return nil, err
	}
	entryShape := schema.Object([]string{"name", "value"}, map[string]schema.Schema{
		"name":  schema.Scalar(schema.KindString, namePat),
		"value": schema.Scalar(schema.KindString, valuePat),
	}, nil, false)
	return schema.KeyedList(nil, entryShape, true), nil
}

// NewHeadersSchema builds the headers keyed list (a list of [name,value]
// tuples reinterpreted as a map), spec §4.6.
func NewHeadersSchema() (schema.Schema, error) {
	namePat, err := pattern.Parse("{{@key}}", pattern.DefaultBuildRules)
	if err != nil {
		return nil, err
	}
	valuePat, err := pattern.Parse("{{@value}}", pattern.DefaultBuildRules)
	if err != nil {
		return nil, err
	}
	entryShape := schema.Object([]string{"name", "value"}, map[string]schema.Schema{
		"name":  schema.Scalar(schema.KindString, namePat),
		"value": schema.Scalar(schema.KindString, valuePat),
	}, nil, false)
	return schema.KeyedList(nil, entryShape, false), nil
}

// NameValue is one declared name/value pair — a header or search-param
// entry lifted off a `.https` request/response line, its value still
// carrying `{{...}}` variable spans.
type NameValue struct {
	Name  string
	Value string
}

// NewDeclaredKeyedList builds a keyed list of concrete, pattern-bearing
// entries from an endpoint's declared headers or search params, as
// opposed to NewHeadersSchema/NewSearchParamsSchema's wildcard-by-default
// declarations used when nothing has been declared at all.
func NewDeclaredKeyedList(pairs []NameValue, multivalue bool) (schema.Schema, error) {
	order := make([]string, 0, len(pairs))
	entries := make(map[string]schema.Schema, len(pairs))
	for _, p := range pairs {
		valuePat, err := pattern.Parse(p.Value, pattern.DefaultBuildRules)
		if err != nil {
			return nil, err
		}
		order = append(order, p.Name)
		entries[p.Name] = schema.Object([]string{"name", "value"}, map[string]schema.Schema{
			"name":  schema.ScalarLiteral(schema.KindString, p.Name),
			"value": schema.Scalar(schema.KindString, valuePat),
		}, nil, false)
	}
	return schema.KeyedListOf(nil, multivalue, order, entries), nil
}

// SelectBodyEncoding picks the body encoding per spec §4.6: an
// explicitly declared encoding wins; otherwise it is inferred from a
// Content-Type header.
func SelectBodyEncoding(declared string, headers map[string]string) schema.EncodingKind {
	if declared != "" {
		return schema.EncodingKind(declared)
	}
	contentType := ""
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			contentType = v
			break
		}
	}
	switch {
	case strings.Contains(contentType, "json"):
		return schema.EncodingJSON
	case strings.Contains(contentType, "x-www-form-urlencoded"):
		return schema.EncodingForm
	case contentType == "":
		return schema.EncodingRaw
	default:
		return schema.EncodingText
	}
}

// NewBodySchema wraps inner in the encoding adapter selected for this
// request/response, spec §4.6 "body (deferred: picks an encoding ...
// then wraps a schema for that inner shape)".
func NewBodySchema(encoding schema.EncodingKind, inner schema.Schema) schema.Schema {
	return schema.Encoding(encoding, inner)
}

// ParseBodyTemplate builds a declared body schema from the literal text
// of a `.https` request/response block: it decodes text under encoding
// into a generic JSON/form tree, then walks that tree turning every
// string leaf into a pattern-bearing scalar rather than a literal one —
// the declare-time counterpart to encodingSchema's merge-time decode of
// an observed body, needed because a collection asset's body is source
// text carrying `{{...}}` variable spans, not an already-rendered value.
func ParseBodyTemplate(encoding schema.EncodingKind, text string) (schema.Schema, error) {
	if text == "" {
		return schema.Encoding(encoding, nil), nil
	}

	var decoded any
	switch encoding {
	case schema.EncodingJSON:
		container, err := gabs.ParseJSON([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("httpschema: parse json body template: %w", err)
		}
		decoded = container.Data()
	case schema.EncodingForm:
		values, err := url.ParseQuery(text)
		if err != nil {
			return nil, fmt.Errorf("httpschema: parse form body template: %w", err)
		}
		m := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) > 0 {
				m[k] = v[0]
			}
		}
		decoded = m
	default:
		decoded = text
	}

	inner, err := templateFromValue(decoded)
	if err != nil {
		return nil, err
	}
	return schema.Encoding(encoding, inner), nil
}

func templateFromValue(v any) (schema.Schema, error) {
	switch t := v.(type) {
	case nil:
		return schema.ScalarLiteral(schema.KindNull, ""), nil
	case string:
		pat, err := pattern.Parse(t, pattern.DefaultBuildRules)
		if err != nil {
			return nil, err
		}
		return schema.Scalar(schema.KindString, pat), nil
	case bool:
		return schema.ScalarLiteral(schema.KindBoolean, strconv.FormatBool(t)), nil
	case float64:
		return schema.ScalarLiteral(schema.KindNumber, strconv.FormatFloat(t, 'f', -1, 64)), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make(map[string]schema.Schema, len(t))
		for _, k := range keys {
			fieldSchema, err := templateFromValue(t[k])
			if err != nil {
				return nil, err
			}
			fields[k] = fieldSchema
		}
		return schema.Object(keys, fields, nil, false), nil
	case []any:
		elements := make([]schema.Schema, len(t))
		for i, e := range t {
			elementSchema, err := templateFromValue(e)
			if err != nil {
				return nil, err
			}
			elements[i] = elementSchema
		}
		return schema.Array(schema.VariantTemplate, elements, nil), nil
	default:
		return schema.ScalarLiteral(schema.KindString, fmt.Sprint(t)), nil
	}
}

// Request composes spec §4.6's request schema: method, origin, pathname,
// searchParams, headers, body, and a hidden computations map for
// user-injected derived values.
type Request struct {
	Method        schema.Schema
	Origin        schema.Schema
	Pathname      schema.Schema
	SearchParams  schema.Schema
	Headers       schema.Schema
	Body          schema.Schema
	Computations  schema.Schema
}

// Schema assembles the composed request object node.
func (r Request) Schema() schema.Schema {
	fields := map[string]schema.Schema{
		"method":   orStub(r.Method),
		"origin":   orStub(r.Origin),
		"pathname": orStub(r.Pathname),
	}
	order := []string{"method", "origin", "pathname"}
	if r.SearchParams != nil {
		fields["searchParams"] = r.SearchParams
		order = append(order, "searchParams")
	}
	if r.Headers != nil {
		fields["headers"] = r.Headers
		order = append(order, "headers")
	}
	if r.Body != nil {
		fields["body"] = r.Body
		order = append(order, "body")
	}
	computations := r.Computations
	if computations == nil {
		computations = schema.Stub(map[string]any{})
	}
	fields["computations"] = schema.Hide(computations)
	order = append(order, "computations")

	return schema.Object(order, fields, nil, false)
}

func orStub(s schema.Schema) schema.Schema {
	if s == nil {
		return schema.Stub(nil)
	}
	return s
}

// NewStatusSchema builds the response status field: a scalar pattern
// that, with the `?` hint, widens the captured status to a one-digit
// wildcard class (enabling match-any-2xx-style declarations), spec
// §4.6.
func NewStatusSchema(source string) (schema.Schema, error) {
	if source == "" {
		source = "200"
	}
	rules := pattern.BuildRules{Re: func(h pattern.Hint) string {
		if h.Has(pattern.HintOptional) {
			return `\d`
		}
		return pattern.DefaultBuildRules.Re(h)
	}}
	pat, err := pattern.Parse(source, rules)
	if err != nil {
		return nil, err
	}
	return schema.Scalar(schema.KindString, pat), nil
}

// Response composes spec §4.6's response schema: a scoped object over
// {status, statusText, headers, body}. Outcome is a label emitted when
// this response step is the one matched, not itself part of the
// rendered value.
type Response struct {
	Status      schema.Schema
	StatusText  schema.Schema
	Headers     schema.Schema
	Body        schema.Schema
	Outcome     string
}

// Schema assembles the composed response object node.
func (r Response) Schema() schema.Schema {
	fields := map[string]schema.Schema{
		"status": orStub(r.Status),
	}
	order := []string{"status"}
	if r.StatusText != nil {
		fields["statusText"] = r.StatusText
		order = append(order, "statusText")
	}
	if r.Headers != nil {
		fields["headers"] = r.Headers
		order = append(order, "headers")
	}
	if r.Body != nil {
		fields["body"] = r.Body
		order = append(order, "body")
	}
	return schema.Object(order, fields, nil, true)
}
