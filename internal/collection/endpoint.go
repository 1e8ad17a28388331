package collection

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pardon-http/pardon/internal/httpschema"
	"github.com/pardon-http/pardon/internal/httpsfile"
	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/schema"
)

// Endpoint is a collection's assembled `pipeline.Endpoint`: a request
// schema composed from an endpoint's `.https` request block plus its
// ancestral configuration, and the ordered response schemas tried
// against whatever comes back over the wire.
type Endpoint struct {
	id        string
	request   schema.Schema
	responses []pipeline.ResponseSchema
}

func (e *Endpoint) Label() string                         { return e.id }
func (e *Endpoint) RequestSchema() schema.Schema          { return e.request }
func (e *Endpoint) ResponseSchemas() []pipeline.ResponseSchema { return e.responses }

// assembleEndpoint builds one Endpoint from its parsed `.https` file and
// the configuration merged ancestrally from its directory. Only this one
// file's blocks are used: its first `>>>` request block becomes the
// request schema.
//
// A `.https` endpoint file may carry more than one `<<<` response block
// (declaring several possible outcomes for the same request, e.g. a
// success shape and an error shape); every response block after the
// file's single `>>>` request block becomes a candidate ResponseSchema,
// tried in file order by internal/pipeline's process stage.
func assembleEndpoint(col *Collection, id string, f *httpsfile.File) (*Endpoint, error) {
	dir := dirOf(id)
	cfg := resolveConfig(col, dir)

	var reqBlock *httpsfile.Block
	var respBlocks []httpsfile.Block
	for i := range f.Blocks {
		b := f.Blocks[i]
		if b.Kind == httpsfile.KindRequest && reqBlock == nil {
			reqBlock = &f.Blocks[i]
			continue
		}
		if b.Kind == httpsfile.KindResponse {
			respBlocks = append(respBlocks, b)
		}
	}
	if reqBlock == nil {
		return nil, fmt.Errorf("collection: %s has no request block", id)
	}

	requestSchema, err := buildRequestSchema(col, cfg, f.Config, *reqBlock)
	if err != nil {
		return nil, fmt.Errorf("collection: %s: %w", id, err)
	}

	responses := make([]pipeline.ResponseSchema, 0, len(respBlocks))
	for _, rb := range respBlocks {
		respSchema, err := buildResponseSchema(cfg, rb)
		if err != nil {
			return nil, fmt.Errorf("collection: %s: %w", id, err)
		}
		responses = append(responses, pipeline.ResponseSchema{Outcome: rb.Outcome, Schema: respSchema})
	}

	return &Endpoint{id: id, request: requestSchema, responses: responses}, nil
}

func buildRequestSchema(col *Collection, cfg map[string]any, fileConfig map[string]any, reqBlock httpsfile.Block) (schema.Schema, error) {
	method, pathname, query := parseRequestLine(reqBlock.Line)

	methodSchema, err := httpschema.NewMethodSchema(method)
	if err != nil {
		return nil, err
	}
	pathnameSchema, err := httpschema.NewPathnameSchema(pathname)
	if err != nil {
		return nil, err
	}

	var originSchema schema.Schema
	if originText := originOf(cfg, fileConfig); originText != "" {
		originSchema, err = httpschema.NewOriginSchema(originText)
		if err != nil {
			return nil, err
		}
	}

	headers := headerPairs(reqBlock.Headers)
	headers = foldMixinHeaders(col, cfg, headers)
	var headersSchema schema.Schema
	if len(headers) > 0 {
		headersSchema, err = httpschema.NewDeclaredKeyedList(headers, false)
		if err != nil {
			return nil, err
		}
	}

	searchMultivalue := searchMultivalueOf(cfg)
	var searchSchema schema.Schema
	if len(query) > 0 {
		searchSchema, err = httpschema.NewDeclaredKeyedList(query, searchMultivalue)
		if err != nil {
			return nil, err
		}
	}

	var bodySchema schema.Schema
	if reqBlock.Body != "" {
		encoding := httpschema.SelectBodyEncoding(encodingOf(cfg), headerMap(reqBlock.Headers))
		bodySchema, err = httpschema.ParseBodyTemplate(encoding, reqBlock.Body)
		if err != nil {
			return nil, err
		}
	}

	return httpschema.Request{
		Method:       methodSchema,
		Origin:       originSchema,
		Pathname:     pathnameSchema,
		SearchParams: searchSchema,
		Headers:      headersSchema,
		Body:         bodySchema,
	}.Schema(), nil
}

func buildResponseSchema(cfg map[string]any, respBlock httpsfile.Block) (schema.Schema, error) {
	status, statusText := parseStatusLine(respBlock.Line)

	statusSchema, err := httpschema.NewStatusSchema(status)
	if err != nil {
		return nil, err
	}
	var statusTextSchema schema.Schema
	if statusText != "" {
		statusTextSchema = schema.ScalarLiteral(schema.KindString, statusText)
	}

	headers := headerPairs(respBlock.Headers)
	var headersSchema schema.Schema
	if len(headers) > 0 {
		headersSchema, err = httpschema.NewDeclaredKeyedList(headers, false)
		if err != nil {
			return nil, err
		}
	}

	var bodySchema schema.Schema
	if respBlock.Body != "" {
		encoding := httpschema.SelectBodyEncoding(encodingOf(cfg), headerMap(respBlock.Headers))
		bodySchema, err = httpschema.ParseBodyTemplate(encoding, respBlock.Body)
		if err != nil {
			return nil, err
		}
	}

	return httpschema.Response{
		Status:     statusSchema,
		StatusText: statusTextSchema,
		Headers:    headersSchema,
		Body:       bodySchema,
		Outcome:    respBlock.Outcome,
	}.Schema(), nil
}

// foldMixinHeaders unions each configured mixin's first request block's
// headers into the endpoint's own, the endpoint's own entries winning on
// name collision. This is intentionally the only mixin contribution
// wired in: spec §4.10 names mixins generally as reusable fragments, but
// a collection's most common real use is shared headers (authorization,
// tracing); see DESIGN.md for the documented scope of this
// simplification.
func foldMixinHeaders(col *Collection, cfg map[string]any, own []httpschema.NameValue) []httpschema.NameValue {
	names := mixinNames(cfg)
	if len(names) == 0 {
		return own
	}
	seen := make(map[string]bool, len(own))
	for _, h := range own {
		seen[strings.ToLower(h.Name)] = true
	}
	out := append([]httpschema.NameValue{}, own...)
	for _, name := range names {
		mixin, ok := col.Mixins[name]
		if !ok {
			continue
		}
		for _, b := range mixin.Blocks {
			if b.Kind != httpsfile.KindRequest {
				continue
			}
			for _, h := range headerPairs(b.Headers) {
				if seen[strings.ToLower(h.Name)] {
					continue
				}
				seen[strings.ToLower(h.Name)] = true
				out = append(out, h)
			}
			break
		}
	}
	return out
}

func headerPairs(headers []httpsfile.Header) []httpschema.NameValue {
	out := make([]httpschema.NameValue, len(headers))
	for i, h := range headers {
		out[i] = httpschema.NameValue{Name: h.Name, Value: h.Value}
	}
	return out
}

func headerMap(headers []httpsfile.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Name] = h.Value
	}
	return out
}

func originOf(cfg, fileConfig map[string]any) string {
	if v, ok := fileConfig["origin"].(string); ok && v != "" {
		return v
	}
	if v, ok := cfg["origin"].(string); ok {
		return v
	}
	return ""
}

func encodingOf(cfg map[string]any) string {
	v, _ := cfg["encoding"].(string)
	return v
}

func searchMultivalueOf(cfg map[string]any) bool {
	search, ok := cfg["search"].(map[string]any)
	if !ok {
		return true
	}
	if v, ok := search["multivalue"].(bool); ok {
		return v
	}
	return true
}

// parseRequestLine splits a `.https` request line ("METHOD path?query")
// into its method, pathname, and any declared search-param pairs.
func parseRequestLine(line string) (method, pathname string, query []httpschema.NameValue) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(parts) == 0 {
		return "", "", nil
	}
	method = parts[0]
	target := ""
	if len(parts) > 1 {
		target = strings.TrimSpace(parts[1])
	}
	pathname = target
	if idx := strings.Index(target, "?"); idx >= 0 {
		pathname = target[:idx]
		values, err := url.ParseQuery(target[idx+1:])
		if err == nil {
			for _, key := range sortedQueryKeys(values) {
				for _, v := range values[key] {
					query = append(query, httpschema.NameValue{Name: key, Value: v})
				}
			}
		}
	}
	return method, pathname, query
}

func sortedQueryKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseStatusLine splits a `.https` response status line ("200 OK")
// into its status code and reason text.
func parseStatusLine(line string) (status, statusText string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(parts) == 0 {
		return "", ""
	}
	status = parts[0]
	if len(parts) > 1 {
		statusText = strings.TrimSpace(parts[1])
	}
	return status, statusText
}
