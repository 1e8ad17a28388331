package pipeline

import "github.com/pardon-http/pardon/internal/schema"

// Endpoint is the narrow view the pipeline needs of a collection entry
// (internal/collection's concrete type, built on top of this package,
// implements it) — kept here rather than importing internal/collection
// so the dependency runs collection → pipeline, never the reverse.
type Endpoint interface {
	// Label identifies the endpoint for diagnostics, e.g. "login.request".
	Label() string
	// RequestSchema is the endpoint's composed request shape.
	RequestSchema() schema.Schema
	// ResponseSchemas are tried in order during the process stage until
	// one matches the fetched response.
	ResponseSchemas() []ResponseSchema
}

// ResponseSchema pairs a response shape with the outcome label it
// reports when it is the one that matches, spec §4.6's per-response
// `?outcome:` label.
type ResponseSchema struct {
	Outcome string
	Schema  schema.Schema
}
