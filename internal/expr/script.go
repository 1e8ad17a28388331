package expr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
)

// ScriptRunner executes a collection's `.ts`/`.js`-like script assets.
// Pardon treats the original TypeScript/JavaScript script runtime as an
// external collaborator (spec §1) and stands Risor in for it: Risor's
// Go-native-friendly scripting gives scripts the same "call back into the
// host" shape the original's script sandbox has, without pulling in a JS
// VM. Scripts are only ever reached through the scope.Environment
// boundary (Evaluate/Resolve), never invoked directly by schema nodes.
//
// Grounded on runtime/engine/dsl/interpreter.go's Risor bridge.
type ScriptRunner struct{}

func NewScriptRunner() *ScriptRunner { return &ScriptRunner{} }

// Run evaluates code with globals exposed as Risor-callable values and
// returns the result converted back to native Go types.
func (r *ScriptRunner) Run(ctx context.Context, code string, globals map[string]any) (any, error) {
	converted := convertGlobals(globals)
	result, err := risor.Eval(ctx, code,
		risor.WithoutDefaultGlobals(),
		risor.WithGlobals(converted),
	)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return objectToGo(result), nil
}

func convertGlobals(globals map[string]any) map[string]any {
	result := make(map[string]any, len(globals))
	for k, v := range globals {
		result[k] = goToRisor(k, v)
	}
	return result
}

func goToRisor(name string, v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(object.Object); ok {
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return wrapGoFunc(name, v)
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		hasFuncs := false
		for _, val := range m {
			if val != nil && reflect.TypeOf(val).Kind() == reflect.Func {
				hasFuncs = true
				break
			}
		}
		if hasFuncs {
			return mapToModule(name, m)
		}
		converted := make(map[string]any, len(m))
		for k, val := range m {
			converted[k] = goToRisor(k, val)
		}
		return converted
	default:
		return v
	}
}

// wrapGoFunc wraps an arbitrary Go function (e.g. a bound
// pipeline.Execute closure) as a Risor builtin so flow scripts can call
// "pardon.exec(ask)" the same way DSL flows call "http.request(args)".
func wrapGoFunc(name string, fn any) *object.Builtin {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			goVal := objectToGo(arg)
			switch {
			case i < fnType.NumIn():
				goArgs[i] = convertToExpectedType(goVal, fnType.In(i))
			case fnType.IsVariadic():
				goArgs[i] = convertToExpectedType(goVal, fnType.In(fnType.NumIn()-1).Elem())
			default:
				goArgs[i] = reflect.ValueOf(goVal)
			}
		}

		results := fnValue.Call(goArgs)
		if len(results) == 0 {
			return object.Nil
		}

		last := len(results) - 1
		if fnType.NumOut() > 0 && fnType.Out(last).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if !results[last].IsNil() {
				return object.NewError(results[last].Interface().(error))
			}
			if len(results) > 1 {
				return goValueToObject(results[0].Interface())
			}
			return object.Nil
		}
		return goValueToObject(results[0].Interface())
	})
}

func convertToExpectedType(val any, expected reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(expected)
	}
	actual := reflect.ValueOf(val)
	if actual.Type().AssignableTo(expected) {
		return actual
	}
	if actual.Type().ConvertibleTo(expected) {
		return actual.Convert(expected)
	}
	return actual
}

func goValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	if obj := object.FromGoType(v); obj != nil {
		return obj
	}
	return object.Nil
}

func mapToModule(name string, m map[string]any) *object.Module {
	contents := make(map[string]object.Object, len(m))
	for k, v := range m {
		if v == nil {
			contents[k] = object.Nil
			continue
		}
		if reflect.TypeOf(v).Kind() == reflect.Func {
			contents[k] = wrapGoFunc(fmt.Sprintf("%s.%s", name, k), v)
		} else {
			contents[k] = goValueToObject(v)
		}
	}
	return object.NewBuiltinsModule(name, contents)
}

func objectToGo(obj object.Object) any {
	if obj == nil {
		return nil
	}
	switch o := obj.(type) {
	case *object.Map:
		out := make(map[string]any)
		for k, v := range o.Value() {
			out[k] = objectToGo(v)
		}
		return out
	case *object.List:
		items := o.Value()
		out := make([]any, len(items))
		for i, v := range items {
			out[i] = objectToGo(v)
		}
		return out
	case *object.NilType:
		return nil
	default:
		return obj.Interface()
	}
}
