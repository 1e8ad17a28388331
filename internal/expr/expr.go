// Package expr implements the "restricted JS-like grammar" of spec.md §4.2/§6:
// single expressions over named identifiers, arithmetic, property access,
// and calls to whitelisted globals, with an `x.await` desugaring and hint
// prefixes (`+x` export, `~x` distinct, `!x` required) rewritten before
// compilation. `?.` optional chaining is left as written for expr-lang.
//
// Grounded on the teacher's runtime/engine/yaml/evaluator.go (expr-lang
// bridge) for declaration-expression evaluation, generalized from a flat
// underscore-keyed context to an arbitrary scope-backed environment.
package expr

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluator compiles and runs expression snippets against a flat variable
// map. It is the concrete implementation of the scope.Environment's
// Evaluate/Resolve bridge to user expression text.
type Evaluator struct {
	extra []expr.Option
}

// NewEvaluator constructs an Evaluator with Pardon's builtin globals
// (base64 helpers, defined()), matching the teacher's exprFunctions list.
func NewEvaluator(extra ...expr.Option) *Evaluator {
	return &Evaluator{extra: extra}
}

// Eval compiles and runs expression against vars. Missing identifiers
// resolve to nil rather than failing compilation, matching the teacher's
// expr.AllowUndefinedVariables() policy — Pardon's scope layer is
// responsible for surfacing "undefined" as a SchemaError when a reference
// is required.
func (e *Evaluator) Eval(expression string, vars map[string]any) (any, error) {
	if _, ok := vars["null"]; !ok {
		vars["null"] = nil
	}

	definedFn := expr.Function("defined", func(params ...any) (any, error) {
		path, ok := params[0].(string)
		if !ok {
			return false, fmt.Errorf("defined() expects a string path, got %T", params[0])
		}
		_, exists := vars[path]
		return exists, nil
	}, new(func(string) bool))

	opts := []expr.Option{
		expr.Env(vars),
		expr.AllowUndefinedVariables(),
		definedFn,
	}
	opts = append(opts, builtins...)
	opts = append(opts, e.extra...)

	program, err := expr.Compile(Desugar(expression), opts...)
	if err != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", expression, err)
	}
	return expr.Run(program, vars)
}

var builtins = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}),
}

// Desugar rewrites spec §6 surface syntax into plain expr-lang source:
//   - every ".await" is removed ("x.await" becomes "x",
//     "json.await.length" becomes "json.length") — expr-lang expressions are already
//     synchronous from the evaluator's point of view (suspension happens
//     one layer up, in scope.Scope.Rendering via the Environment bridge),
//     so .await is a no-op marker retained only for source compatibility.
//   - a leading "+", "~", or "!" is stripped; the caller is expected to
//     have already consumed it as a pattern.Hint when declaring the
//     reference, so by the time the expression reaches the evaluator the
//     prefix is purely cosmetic.
func Desugar(source string) string {
	s := strings.TrimSpace(source)
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "~")
	s = strings.TrimPrefix(s, "!")
	s = strings.ReplaceAll(s, ".await", "")
	return s
}
