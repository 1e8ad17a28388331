// Package schema implements spec.md §3/§4.3 (C3): the schema kernel —
// schema/schematic contracts, merge modes, execution context, and the
// capability-map dispatch ("opaque Ops") that lets node kinds be
// introspected without a type switch.
//
// Grounded on the teacher's plugin dispatch in runtime/plugin/registry.go
// (task/plugin kinds are looked up by name and exposed through a small
// fixed interface rather than switched on a concrete type), generalized
// from a name-keyed registry of task implementations to a per-node
// capability struct returned by each node value.
package schema

import (
	"strings"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/scope"
)

// Mode is a merge mode, spec §3/§4.3.
type Mode string

const (
	ModeMatch Mode = "match"
	ModeMix   Mode = "mix"
	ModeMux   Mode = "mux"
	ModeMeld  Mode = "meld"
)

// Phase influences whether scope() enforces required-ness, spec §4.3.
type Phase string

const (
	PhaseBuild    Phase = "build"
	PhaseValidate Phase = "validate"
)

// RenderStage selects one of the render-side modes, spec §3.
type RenderStage string

const (
	StageRender     RenderStage = "render"
	StagePreview    RenderStage = "preview"
	StagePrerender  RenderStage = "prerender"
	StagePostrender RenderStage = "postrender"
)

// Context is the immutable (copy-on-write) execution context threaded
// through every schema op, spec §3 "Execution context".
type Context struct {
	Mode  Mode
	Phase Phase
	Stage RenderStage

	Keys  []string
	Scope *scope.Scope
	Env   scope.Environment

	Diagnostics *[]pardonerr.SchemaError
}

// NewContext builds a root context for a merge or render pass.
func NewContext(mode Mode, phase Phase, sc *scope.Scope, env scope.Environment) *Context {
	diags := make([]pardonerr.SchemaError, 0)
	return &Context{Mode: mode, Phase: phase, Scope: sc, Env: env, Diagnostics: &diags}
}

func (c *Context) clone() *Context {
	cp := *c
	return &cp
}

// Field descends into a named object field, both in the key path and the
// underlying scope tree (spec §4.4 "scoped objects create a child scope
// per field"). Only objects declared `scoped` should use this; plain
// objects share their enclosing scope across fields so that two fields
// referencing the same variable name bind to one identifier (spec
// scenario S2) — use FieldKey for those.
func (c *Context) Field(name string) *Context {
	cp := c.clone()
	cp.Keys = append(append([]string{}, c.Keys...), name)
	cp.Scope = c.Scope.Subscope(name, scope.Index{Kind: scope.IndexField, Key: name})
	return cp
}

// FieldKey descends the diagnostic key path into a named field without
// creating a child scope, for plain (non-`scoped`) objects.
func (c *Context) FieldKey(name string) *Context {
	cp := c.clone()
	cp.Keys = append(append([]string{}, c.Keys...), name)
	return cp
}

// Element descends into an array position.
func (c *Context) Element(i int) *Context {
	cp := c.clone()
	cp.Keys = append(append([]string{}, c.Keys...), itoa(i))
	cp.Scope = c.Scope.Subscope(itoa(i), scope.Index{Kind: scope.IndexElement, Pos: i})
	return cp
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// WithMode returns a context with a different merge mode.
func (c *Context) WithMode(m Mode) *Context {
	cp := c.clone()
	cp.Mode = m
	return cp
}

// WithPhase returns a context with a different phase.
func (c *Context) WithPhase(p Phase) *Context {
	cp := c.clone()
	cp.Phase = p
	return cp
}

// WithStage returns a context with a different render stage.
func (c *Context) WithStage(s RenderStage) *Context {
	cp := c.clone()
	cp.Stage = s
	return cp
}

// Path returns the dotted key path for diagnostics.
func (c *Context) Path() string {
	return strings.Join(c.Keys, ".")
}

// Diagnose records a non-fatal merge diagnostic at the current path
// without failing the operation.
func (c *Context) Diagnose(tag pardonerr.SchemaTag, message string) {
	*c.Diagnostics = append(*c.Diagnostics, pardonerr.SchemaError{Tag: tag, Loc: c.Path(), Message: message})
}

// Fail records a diagnostic at the current path and returns it as an
// error, in either phase, so the enclosing merge fails. Build-phase
// callers (match/process) collect that error as a diagnostic of the
// failed attempt and move on rather than surfacing it.
func (c *Context) Fail(tag pardonerr.SchemaTag, message string) error {
	c.Diagnose(tag, message)
	return pardonerr.NewSchemaError(tag, c.Path(), message)
}

// Ops is the capability map every schema node exposes, spec §4.3
// "extractOps(schema) returns the typed op map of a specific node".
type Ops struct {
	ScopeFn   func(ctx *Context) error
	MergeFn   func(ctx *Context, template Schema) (Schema, error)
	RenderFn  func(ctx *Context) (any, error)
	ResolveFn func(ctx *Context) (any, bool)
}

// Schema is a compiled node supporting scope/merge/render/resolve,
// spec §3.
type Schema interface {
	Ops() Ops
}

// Scope runs the node's declare pre-pass.
func Scope(ctx *Context, s Schema) error {
	ops := s.Ops()
	if ops.ScopeFn == nil {
		return nil
	}
	return ops.ScopeFn(ctx)
}

// Render produces the concrete value for a node.
func Render(ctx *Context, s Schema) (any, error) {
	ops := s.Ops()
	if ops.RenderFn == nil {
		return nil, nil
	}
	return ops.RenderFn(ctx)
}

// Resolve is the synchronous best-effort counterpart to Render. Nodes
// that don't implement ResolveFn are treated as never resolvable
// synchronously (they may still suspend during Render).
func Resolve(ctx *Context, s Schema) (any, bool) {
	ops := s.Ops()
	if ops.ResolveFn == nil {
		return nil, false
	}
	return ops.ResolveFn(ctx)
}

// Merge integrates template into current, producing a new schema or
// failing. current may be nil, in which case template (converted via
// ToSchema) becomes the result directly.
func Merge(ctx *Context, current Schema, template any) (Schema, error) {
	t, err := ToSchema(ctx, template)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return t, nil
	}
	ops := current.Ops()
	if ops.MergeFn == nil {
		return current, nil
	}
	return ops.MergeFn(ctx, t)
}

// Schematic is a build-phase template object, spec §3: it expands into a
// schema given a context.
type Schematic interface {
	Expand(ctx *Context) (Schema, error)
}

// Blender is an optional interface for schematics that can blend with an
// already-merged schema. Nothing in this package calls Blend: the `meld`
// merge mode merges the same way `mix` does.
type Blender interface {
	Blend(ctx *Context, next Schema) (Schema, error)
}

// IsSchematic reports whether value is a build-phase template rather
// than an already-compiled schema or raw Go value.
func IsSchematic(value any) bool {
	_, ok := value.(Schematic)
	return ok
}

// ExtractOps returns s's capability map, spec §4.3's `extractOps`.
func ExtractOps(s Schema) Ops { return s.Ops() }

// ToSchema normalizes an incoming merge operand — a Schema, a Schematic,
// or a raw Go value (string/number/bool/nil/map/slice) — into a Schema,
// expanding schematics and wrapping literals with FromValue.
func ToSchema(ctx *Context, template any) (Schema, error) {
	switch t := template.(type) {
	case Schema:
		return t, nil
	case Schematic:
		return t.Expand(ctx)
	default:
		return FromValue(template), nil
	}
}
