// Package transport adapts a resty HTTP client into internal/pipeline's
// fetch-stage collaborator, spec §4.7/§6.
//
// Grounded on the teacher's plugins/http/plugin.go: the same resty
// client construction (timeout/retry-count/retry-wait/debug, overridable
// by environment variables) and the same "flatten the response into a
// plain map" shape, generalized from a flow-task's ad hoc {url, method,
// headers, queryParameters, body} args map to internal/pipeline's
// already-rendered request/response shape.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pardon-http/pardon/internal/pipeline"
)

// Config mirrors the teacher's HTTP plugin Config: request timeout,
// retry policy, and debug logging.
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	Debug       bool
	RetryWaitMS int
}

// ConfigFromEnv reads PARDON_HTTP_* overrides on top of the teacher's
// same defaults (30s timeout, 3 retries, 100ms retry wait, debug off).
func ConfigFromEnv() Config {
	cfg := Config{Timeout: 30 * time.Second, MaxRetries: 3, RetryWaitMS: 100}

	if v := os.Getenv("PARDON_HTTP_TIMEOUT"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("PARDON_HTTP_MAX_RETRIES"); v != "" {
		if retries, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = retries
		}
	}
	if os.Getenv("PARDON_HTTP_DEBUG") == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("PARDON_HTTP_RETRY_WAIT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.RetryWaitMS = ms
		}
	}
	return cfg
}

// Transport executes a rendered request over the wire using resty,
// implementing internal/pipeline.Fetcher.
type Transport struct {
	client *resty.Client
}

// New builds a Transport from cfg.
func New(cfg Config) *Transport {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
		SetDebug(cfg.Debug)
	return &Transport{client: client}
}

// Fetch implements pipeline.Fetcher: request carries the rendered
// method/origin/pathname/searchParams/headers/body fields internal/
// schema's object/keyed-list render produces (spec §4.6), and the
// returned Ingress is what internal/pipeline's process stage matches
// against a candidate response schema.
func (t *Transport) Fetch(ctx context.Context, request map[string]any) (pipeline.Ingress, error) {
	method, _ := request["method"].(string)
	if method == "" {
		method = "GET"
	}
	origin, _ := request["origin"].(string)
	pathname, _ := request["pathname"].(string)

	req := t.client.R().SetContext(ctx)

	if headers := flattenKeyedList(request["headers"]); len(headers) > 0 {
		req.SetHeaderMultiValues(headers)
	}
	if query := flattenKeyedList(request["searchParams"]); len(query) > 0 {
		values := url.Values{}
		for name, vs := range query {
			for _, v := range vs {
				values.Add(name, v)
			}
		}
		req.SetQueryParamsFromValues(values)
	}
	if body, ok := request["body"].(string); ok && body != "" {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, origin+pathname)
	if err != nil {
		return pipeline.Ingress{}, fmt.Errorf("transport: %w", err)
	}

	headersOut := make(map[string]string, len(resp.Header()))
	for name, values := range resp.Header() {
		if len(values) > 0 {
			headersOut[name] = values[0]
		}
	}

	return pipeline.Ingress{
		Status:     resp.StatusCode(),
		StatusText: statusText(resp.Status(), resp.StatusCode()),
		Headers:    headersOut,
		Body:       string(resp.Body()),
	}, nil
}

// statusText strips the leading status code resty's Status() includes
// ("200 OK" -> "OK"), matching the status-line grammar internal/
// httpsfile parses ("200 OK") back apart into status/statusText.
func statusText(status string, code int) string {
	prefix := strconv.Itoa(code) + " "
	return strings.TrimPrefix(status, prefix)
}

// flattenKeyedList turns a rendered keyed-list value (spec §4.4's
// {key: {name, value}} or, for a multivalue list, {key: [{name,
// value}, ...]}) into a plain name->values map, the shape resty's
// header/query-param setters expect.
func flattenKeyedList(v any) map[string][]string {
	out := map[string][]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for _, entry := range m {
		switch e := entry.(type) {
		case map[string]any:
			addEntry(out, e)
		case []any:
			for _, item := range e {
				if em, ok := item.(map[string]any); ok {
					addEntry(out, em)
				}
			}
		}
	}
	return out
}

func addEntry(out map[string][]string, e map[string]any) {
	name, _ := e["name"].(string)
	value, _ := e["value"].(string)
	if name == "" {
		return
	}
	out[name] = append(out[name], value)
}
