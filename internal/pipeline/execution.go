package pipeline

import (
	"context"
	"sync"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/schema"
	"github.com/pardon-http/pardon/internal/scope"
	"github.com/pardon-http/pardon/internal/tracker"
)

// Egress is a rendered (or previewed) request ready to go over the wire,
// spec §4.7 "render() produces {request, redacted, scope}".
type Egress struct {
	Request  map[string]any
	Redacted map[string]any
}

// Fetcher performs the actual network call for the fetch stage. The
// concrete resty-backed implementation lives in internal/transport,
// kept out of this package so pipeline has no transitive HTTP-client
// dependency, mirroring how Endpoint keeps internal/collection out.
type Fetcher interface {
	Fetch(ctx context.Context, request map[string]any) (Ingress, error)
}

// Execution drives one ask through the six stages, memoizing each
// stage's result so repeated calls (e.g. a caller asking for both the
// rendered request and, later, the final result) never redo work
// already done, spec §4.7 "each stage runs at most once per execution".
// Grounded on the teacher's runtime/execution.go *Execution type, whose
// fields accumulate step outputs across a single flow invocation.
type Execution struct {
	ask        Ask
	candidates []Endpoint
	scope      *scope.Scope
	env        scope.Environment
	tracker    *tracker.Tracker
	chain      tracker.ChainID
	fetcher    Fetcher
	hooks      map[pardonerr.Stage][]Hook

	matchOnce   sync.Once
	matchResult *MatchResult
	matchErr    error

	previewOnce   sync.Once
	previewResult *Egress
	previewErr    error

	renderOnce   sync.Once
	renderResult *Egress
	renderErr    error

	fetchOnce   sync.Once
	fetchResult *Ingress
	fetchErr    error

	processOnce   sync.Once
	processResult *Result
	processErr    error
}

// Init builds a fresh Execution, spec §4.7 "init(ask) creates a new
// execution rooted at a fresh tracker chain".
func Init(ask Ask, candidates []Endpoint, env Environment, tr *tracker.Tracker, fetcher Fetcher, hooks map[pardonerr.Stage][]Hook) *Execution {
	if hooks == nil {
		hooks = map[pardonerr.Stage][]Hook{}
	}
	return &Execution{
		ask:        ask,
		candidates: candidates,
		scope:      scope.New(),
		env:        &env,
		tracker:    tr,
		chain:      tr.Root(),
		fetcher:    fetcher,
		hooks:      hooks,
	}
}

func (e *Execution) run(stage pardonerr.Stage, info any, core func() (any, error)) (any, error) {
	return hookExecution(stage, e.hooks[stage], info, core)
}

// Match runs (once) the match stage, spec §4.7.
func (e *Execution) Match(ctx context.Context) (*MatchResult, error) {
	e.matchOnce.Do(func() {
		v, err := e.run(pardonerr.StageMatch, &e.ask, func() (any, error) {
			return matchAsk(e.scope, e.env, e.ask, e.candidates)
		})
		if err != nil {
			e.matchErr = err
			return
		}
		e.matchResult = v.(*MatchResult)
	})
	return e.matchResult, e.matchErr
}

// renderWith renders match.Merged twice against evalEnv: once with
// secrets revealed (the value actually sent over the wire) and once
// with evalEnv's own masking Redact (a safe-to-log copy), spec §4.7
// "render() produces {request, redacted, scope}".
func (e *Execution) renderWith(ctx context.Context, evalEnv scope.Environment) (*Egress, error) {
	match, err := e.Match(ctx)
	if err != nil {
		return nil, err
	}
	e.tracker.Track(e.chain, match.Endpoint.Label())

	revealCtx := schema.NewContext(schema.ModeMatch, schema.PhaseValidate, match.Scope, revealingEnvironment{inner: evalEnv})
	rendered, err := schema.Render(revealCtx, match.Merged)
	if err != nil {
		return nil, pardonerr.NewExecutionError(pardonerr.StageRender, err, map[string]any{"endpoint": match.Endpoint.Label()})
	}
	request, _ := rendered.(map[string]any)

	redactCtx := schema.NewContext(schema.ModeMatch, schema.PhaseValidate, match.Scope, evalEnv)
	redactedRendered, err := schema.Render(redactCtx, match.Merged)
	if err != nil {
		redactedRendered = request
	}
	redacted, _ := redactedRendered.(map[string]any)

	return &Egress{Request: request, Redacted: redacted}, nil
}

// Preview runs (once) the preview stage: renders without invoking user
// expressions, spec §4.7 "previews never invoke user scripts".
func (e *Execution) Preview(ctx context.Context) (*Egress, error) {
	e.previewOnce.Do(func() {
		v, err := e.run(pardonerr.StagePreview, nil, func() (any, error) {
			return e.renderWith(ctx, previewEnvironment{inner: e.env.(*Environment)})
		})
		if err != nil {
			e.previewErr = err
			return
		}
		e.previewResult = v.(*Egress)
	})
	return e.previewResult, e.previewErr
}

// Render runs (once) the render stage.
func (e *Execution) Render(ctx context.Context) (*Egress, error) {
	e.renderOnce.Do(func() {
		v, err := e.run(pardonerr.StageRender, nil, func() (any, error) {
			return e.renderWith(ctx, e.env)
		})
		if err != nil {
			e.renderErr = err
			return
		}
		e.renderResult = v.(*Egress)
	})
	return e.renderResult, e.renderErr
}

// Fetch runs (once) the fetch stage, performing the real network call
// via the injected Fetcher.
func (e *Execution) Fetch(ctx context.Context) (*Ingress, error) {
	e.fetchOnce.Do(func() {
		egress, err := e.Render(ctx)
		if err != nil {
			e.fetchErr = err
			return
		}
		v, err := e.run(pardonerr.StageFetch, egress, func() (any, error) {
			ing, err := e.fetcher.Fetch(ctx, egress.Request)
			return &ing, err
		})
		if err != nil {
			e.fetchErr = pardonerr.NewExecutionError(pardonerr.StageFetch, err, nil)
			return
		}
		e.fetchResult = v.(*Ingress)
		e.tracker.Track(e.chain, e.fetchResult)
	})
	return e.fetchResult, e.fetchErr
}

// Process runs (once) the process stage: matches the ingress against
// the endpoint's declared responses and extracts output values.
func (e *Execution) Process(ctx context.Context) (*Result, error) {
	e.processOnce.Do(func() {
		match, err := e.Match(ctx)
		if err != nil {
			e.processErr = err
			return
		}
		ing, err := e.Fetch(ctx)
		if err != nil {
			e.processErr = err
			return
		}
		v, err := e.run(pardonerr.StageProcess, ing, func() (any, error) {
			return processIngress(e.scope, e.env, match.Endpoint, *ing)
		})
		if err != nil {
			e.processErr = err
			return
		}
		e.processResult = v.(*Result)
	})
	return e.processResult, e.processErr
}

// Reprocess reruns match and process against a caller-supplied ingress
// override without repeating fetch, spec §4.7 "reprocess(partial) reruns
// match()+process() against previously-computed egress/ingress" — used
// when a caller wants to re-derive output from an edited/replayed
// response without a second network call.
func (e *Execution) Reprocess(ctx context.Context, override Ingress) (*Result, error) {
	match, err := e.Match(ctx)
	if err != nil {
		return nil, err
	}
	return processIngress(e.scope, e.env, match.Endpoint, override)
}

// Chain exposes the tracker chain this execution runs under, so callers
// composing multiple executions can Await one from another.
func (e *Execution) Chain() tracker.ChainID { return e.chain }
