// Package flows implements spec.md §4.9 (C9): named parameterized
// procedures ("flows") whose body is either an ordered sequence of
// `.https` request/response interactions replayed through
// internal/pipeline, or a Risor function run through internal/expr's
// script bridge. A flow consumes an argument dictionary composed from
// caller-supplied options and ambient environment values, and produces
// a result dictionary.
//
// Grounded on the teacher's runtime/app.go (flow loading) and
// runtime/executor.go (step sequencing with retry/fallback/compensate),
// generalized from "a YAML-declared list of typed task steps" to "a
// list of request/response interactions, each one a pipeline
// execution".
package flows

import (
	"context"
	"fmt"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
)

// ParamKind classifies one element of a flow's signature, spec §4.9
// "required/optional/renamed/defaulted/rest elements".
type ParamKind string

const (
	ParamRequired ParamKind = "required"
	ParamOptional ParamKind = "optional"
	ParamDefault  ParamKind = "default"
	ParamRest     ParamKind = "rest"
)

// Param is one declared signature element.
type Param struct {
	Name    string
	Source  string // the option/environment key read, if renamed from Name
	Kind    ParamKind
	Default any
}

// Signature is a flow's full declared parameter list, extracted either
// from a `.https` `>>>` header's parameter list or a function's
// destructured first parameter, spec §4.9.
type Signature []Param

// ComposeValuesDict builds a flow's argument dictionary per spec §4.9:
// "for each declared name, take options[name] else environment[name];
// required-missing is a failure; a rest parameter collects the
// remainder" — the remainder being every options/environment key not
// claimed by a named (non-rest) parameter.
func ComposeValuesDict(sig Signature, options, environment map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(sig))
	claimed := make(map[string]bool, len(sig))

	var rest *Param
	for i := range sig {
		p := &sig[i]
		if p.Kind == ParamRest {
			rest = p
			continue
		}
		key := p.Source
		if key == "" {
			key = p.Name
		}
		claimed[key] = true

		if v, ok := options[key]; ok {
			out[p.Name] = v
			continue
		}
		if v, ok := environment[key]; ok {
			out[p.Name] = v
			continue
		}
		switch p.Kind {
		case ParamDefault:
			out[p.Name] = p.Default
		case ParamOptional, ParamRest:
			// left unset
		default:
			return nil, fmt.Errorf("missing required parameter %q", p.Name)
		}
	}

	if rest != nil {
		remainder := make(map[string]any)
		for k, v := range environment {
			if !claimed[k] {
				remainder[k] = v
			}
		}
		for k, v := range options {
			if !claimed[k] {
				remainder[k] = v
			}
		}
		out[rest.Name] = remainder
	}

	return out, nil
}

// Interaction is one `.https`-sequence step: an Ask template (its
// pattern variables resolved from the flow's argument dict and prior
// interactions' captures) plus the endpoints it may match against.
type Interaction struct {
	Ask       pipeline.Ask
	Endpoints []pipeline.Endpoint
}

// Action is a flow's body: either a replayed `.https` interaction
// sequence or an arbitrary Go/Risor-backed function. Exactly one of
// Interactions or Run should be set.
type Action struct {
	Interactions []Interaction
	Run          func(ctx context.Context, argument map[string]any) (map[string]any, error)
}

// Flow is spec §4.9's `{signature, action(argument, context) → result}`.
type Flow struct {
	Name      string
	Signature Signature
	Action    Action
}

// Runner starts a fresh pipeline.Execution for one `.https` interaction,
// so this package never has to know how an Execution is wired (tracker,
// environment, fetcher) — that wiring belongs to whatever assembles the
// collection (internal/collection).
type Runner interface {
	Execute(ask pipeline.Ask, endpoints []pipeline.Endpoint) *pipeline.Execution
	// Await records that current's chain has awaited awaited's chain,
	// spec scenario S6: a later step's trace transitively includes every
	// earlier step it depended on.
	Await(current, awaited tracker.ChainID)
}

// Run executes f: composes its argument dictionary, then either replays
// its `.https` interactions through runner (threading captured values
// from one step's result into the next step's ask) or invokes its
// function body, spec §4.9/§3.8.
func Run(ctx context.Context, f Flow, options, environment map[string]any, runner Runner) (map[string]any, error) {
	argument, err := ComposeValuesDict(f.Signature, options, environment)
	if err != nil {
		return nil, &pardonerr.FlowError{Flow: f.Name, Message: err.Error()}
	}

	if f.Action.Run != nil {
		return f.Action.Run(ctx, argument)
	}

	captured := make(map[string]any, len(argument))
	for k, v := range argument {
		captured[k] = v
	}

	var lastOutput any
	var previous *pipeline.Execution
	for i, step := range f.Action.Interactions {
		ask := step.Ask
		values := make(map[string]any, len(ask.Values)+len(captured))
		for k, v := range ask.Values {
			values[k] = v
		}
		for k, v := range captured {
			if _, exists := values[k]; !exists {
				values[k] = v
			}
		}
		ask.Values = values

		exec := runner.Execute(ask, step.Endpoints)
		if previous != nil {
			runner.Await(exec.Chain(), previous.Chain())
		}
		previous = exec

		result, err := exec.Process(ctx)
		if err != nil {
			return nil, fmt.Errorf("flow %s step %d: %w", f.Name, i, err)
		}
		lastOutput = result.Output
		if out, ok := result.Output.(map[string]any); ok {
			for k, v := range out {
				captured[k] = v
			}
		}
	}

	if m, ok := lastOutput.(map[string]any); ok {
		return m, nil
	}
	return captured, nil
}
