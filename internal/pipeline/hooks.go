package pipeline

import "github.com/pardon-http/pardon/internal/pardonerr"

// Hook wraps one stage's execution: info describes the in-flight
// invocation (the concrete type varies per stage: the *Ask for match, nil
// for preview/render, the rendered egress for fetch, the fetched ingress
// for process) and next
// invokes the remaining hooks then the stage itself. Grounded on the
// teacher's runtime/container.go service-decoration pattern, which wraps
// a constructor with layered before/after behavior rather than a
// type-switch dispatcher.
type Hook func(stage pardonerr.Stage, info any, next func() (any, error)) (any, error)

// hookExecution composes hooks around core so the outermost hook runs
// first and its next() call descends through the remaining hooks before
// finally invoking core, spec §4.7 "hookExecution(execution, hooks)
// allows callers to observe or rewrite in-flight requests/responses at
// any of the six stages".
func hookExecution(stage pardonerr.Stage, hooks []Hook, info any, core func() (any, error)) (any, error) {
	next := core
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		prevNext := next
		next = func() (any, error) { return h(stage, info, prevNext) }
	}
	return next()
}
