// Package pardonerr defines the error taxonomy shared across the kernel:
// schema errors (incompatible/mismatch/missing/...), stage execution errors,
// and the collection/flow-level error kinds from spec.md §7.
package pardonerr

import "fmt"

// SchemaTag classifies a schema-level failure. These are not Go error types
// themselves (a SchemaError carries one) so that callers can switch on the
// tag without type-asserting a dozen sibling types.
type SchemaTag string

const (
	Incompatible SchemaTag = "incompatible"
	Mismatch     SchemaTag = "mismatch"
	Missing      SchemaTag = "missing"
	Redefined    SchemaTag = "redefined"
	Inconsistent SchemaTag = "inconsistent"
	Unevaluated  SchemaTag = "unevaluated"
	Undefined    SchemaTag = "undefined"
	Unidentified SchemaTag = "unidentified"
	WrongType    SchemaTag = "type"
	Reject       SchemaTag = "reject"
)

// SchemaError is raised by schema merge/render operations. Loc is the
// dotted scope/field path at which the failure occurred, mirroring the
// "loc" diagnostic paths spec §7 requires.
type SchemaError struct {
	Tag     SchemaTag
	Loc     string
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	if e.Loc != "" {
		return fmt.Sprintf("%s at %s: %s", e.Tag, e.Loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

func NewSchemaError(tag SchemaTag, loc, msg string) *SchemaError {
	return &SchemaError{Tag: tag, Loc: loc, Message: msg}
}

// Definite reports whether the schema error represents an outright rejection
// ("incompatible") as opposed to a soft "the template did not constrain
// further" ("missing"), per spec §3 Schematic vs Schema.
func (e *SchemaError) Definite() bool {
	return e.Tag != Missing
}

// Stage identifies one of the six execution-pipeline stages of spec §4.7.
type Stage string

const (
	StageInit    Stage = "init"
	StageMatch   Stage = "match"
	StagePreview Stage = "preview"
	StageRender  Stage = "render"
	StageFetch   Stage = "fetch"
	StageProcess Stage = "process"
)

// ExecutionError wraps any stage failure with the stage label and an info
// payload for display, per spec §4.7/§7. It is the Pardon analogue of the
// teacher's FlowError, generalized from a flow-step label to a pipeline
// stage label.
type ExecutionError struct {
	Stage Stage
	Cause error
	Info  map[string]any
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pardon: %s failed: %s", e.Stage, causeChain(e.Cause))
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// causeChain joins nested error messages with " -- " per spec §7's display
// rule for ExecutionError's cause chain.
func causeChain(err error) string {
	if err == nil {
		return ""
	}
	type unwrapper interface{ Unwrap() error }
	msgs := []string{err.Error()}
	for {
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil {
			break
		}
		msgs = append(msgs, next.Error())
		err = next
	}
	out := msgs[0]
	for _, m := range msgs[1:] {
		out += " -- " + m
	}
	return out
}

func NewExecutionError(stage Stage, cause error, info map[string]any) *ExecutionError {
	return &ExecutionError{Stage: stage, Cause: cause, Info: info}
}

// ConfigurationError arises during collection build (mis-scoped imports,
// ambiguous duplicates), per spec §7.
type ConfigurationError struct {
	Path    string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Path, e.Message)
}

// ParseError is fatal only to the asset that failed to parse; the
// collection continues loading the remainder, per spec §7.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// FlowError reports a flow-level failure: an unknown flow name or a
// required parameter left undefined, per spec §7.
type FlowError struct {
	Flow    string
	Message string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %s: %s", e.Flow, e.Message)
}

// AbortError is returned when a flow context's abort signal fires.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return "aborted"
	}
	return "aborted: " + e.Reason
}
