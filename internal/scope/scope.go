// Package scope implements spec.md §3/§4.2 (C2): a hierarchical variable
// store with declarations, definitions, lazy expression evaluation,
// redaction, and export filtering.
//
// Grounded on the teacher's two ValueStore implementations
// (runtime/engine/yaml/value_store.go's flat underscore-keyed map and
// runtime/engine/dsl/value_store.go's nested-map store) generalized from a
// single flat/nested map per execution into a genuine scope *tree*, since
// spec §3 requires named child scopes (for array elements, object fields,
// and flow-local temp scopes) rather than one global namespace.
package scope

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pattern"
)

// IndexKind describes the structural origin of a subscope, per spec §3.
type IndexKind string

const (
	IndexField   IndexKind = "field"   // object field
	IndexElement IndexKind = "element" // array element
	IndexTemp    IndexKind = "temp"    // scratch scope (e.g. keyed-list key extraction)
)

// Index describes a subscope's structural origin.
type Index struct {
	Kind IndexKind
	Key  string // field name, for IndexField
	Pos  int    // element position, for IndexElement
}

// Declaration registers how an identifier's value is produced when not
// directly defined: an expression to evaluate, the reference hint that
// governs required-ness/redaction/export, and optional resolver/renderer
// hooks a schema node may install.
type Declaration struct {
	Expression string
	Hint       pattern.Hint
	Resolver   func(ctx context.Context, s *Scope) (any, bool)
	Renderer   func(ctx context.Context, s *Scope) (any, error)
}

// sameDeclaration compares the parts of a Declaration that determine
// idempotence (func fields are not comparable, so they're excluded; two
// declarations installing different hooks under an identical expression
// and hint are treated as the same declaration, matching "declare is
// idempotent" in spec §4.2/testable-property 3).
func sameDeclaration(a, b Declaration) bool {
	return a.Expression == b.Expression && a.Hint == b.Hint
}

// Diagnostic is a non-fatal merge-phase note attached to the context path
// it occurred at, per spec §7's propagation policy.
type Diagnostic struct {
	Loc     string
	Message string
}

// Scope is one node in the scope tree. Scopes are created once per
// execution and never mutated after the execution completes (spec §5).
type Scope struct {
	mu sync.Mutex

	name   string
	parent *Scope
	index  Index

	values       map[string]any
	haveValue    map[string]bool
	declarations map[string]Declaration
	subscopes    map[string]*Scope
	struts       map[string]int // strut name -> inferred max length
	evaluating   map[string]bool
	rendered     map[string]any
	cache        map[string]any

	diagnostics *[]Diagnostic // shared pointer; only the root allocates
}

// New creates a root scope.
func New() *Scope {
	diags := make([]Diagnostic, 0)
	return &Scope{
		name:         "",
		values:       make(map[string]any),
		haveValue:    make(map[string]bool),
		declarations: make(map[string]Declaration),
		subscopes:    make(map[string]*Scope),
		struts:       make(map[string]int),
		evaluating:   make(map[string]bool),
		rendered:     make(map[string]any),
		cache:        make(map[string]any),
		diagnostics:  &diags,
	}
}

// Diagnostics returns every diagnostic recorded anywhere in this scope's
// tree (diagnostics are accumulated at the root).
func (s *Scope) Diagnostics() []Diagnostic {
	return *s.diagnostics
}

func (s *Scope) addDiagnostic(loc, msg string) {
	*s.diagnostics = append(*s.diagnostics, Diagnostic{Loc: loc, Message: msg})
}

// Subscope gets or creates the named child scope, per spec §4.2.
func (s *Scope) Subscope(name string, index Index) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	if child, ok := s.subscopes[name]; ok {
		return child
	}
	diags := s.diagnostics
	child := &Scope{
		name:         name,
		parent:       s,
		index:        index,
		values:       make(map[string]any),
		haveValue:    make(map[string]bool),
		declarations: make(map[string]Declaration),
		subscopes:    make(map[string]*Scope),
		struts:       make(map[string]int),
		evaluating:   make(map[string]bool),
		rendered:     make(map[string]any),
		cache:        make(map[string]any),
		diagnostics:  diags,
	}
	s.subscopes[name] = child
	return child
}

// Path returns the dotted path from the root to this scope.
func (s *Scope) Path() string {
	if s.parent == nil {
		return ""
	}
	parentPath := s.parent.Path()
	if parentPath == "" {
		return s.name
	}
	return parentPath + "." + s.name
}

// isLegalIdentifier enforces spec §3: identifiers starting with `$` or
// beginning with a letter/underscore are legal; `@value`/`@key` are
// reserved accessor names, legal only as a full identifier.
func isLegalIdentifier(ident string) bool {
	if ident == "" {
		return false
	}
	if ident == "@value" || ident == "@key" {
		return true
	}
	c := ident[0]
	return c == '$' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// resolveScopeAndName descends dotted paths into named subscopes, per
// spec §3 ("dotted paths descend named sub-scopes"), returning the scope
// the final path segment lives in and that final segment.
func (s *Scope) resolveScopeAndName(identifier string) (*Scope, string) {
	parts := strings.Split(identifier, ".")
	cur := s
	for _, part := range parts[:len(parts)-1] {
		cur = cur.Subscope(part, Index{Kind: IndexTemp})
	}
	return cur, parts[len(parts)-1]
}

// Declare registers a binding. Repeated identical declarations are a
// no-op; conflicting ones append a diagnostic (testable property 3).
func (s *Scope) Declare(identifier string, d Declaration) error {
	if !isLegalIdentifier(identifier) {
		return pardonerr.NewSchemaError(pardonerr.Unidentified, identifier, "illegal identifier")
	}
	scope, name := s.resolveScopeAndName(identifier)

	scope.mu.Lock()
	defer scope.mu.Unlock()

	existing, ok := scope.declarations[name]
	if !ok {
		scope.declarations[name] = d
		return nil
	}
	if !sameDeclaration(existing, d) {
		scope.addDiagnostic(scope.Path()+"."+name, "redeclared with a different expression or hint")
	}
	return nil
}

// Define binds a concrete value. If already bound to a different value,
// it raises "redefined" per spec §3/testable scenario S2.
func (s *Scope) Define(identifier string, value any) error {
	if !isLegalIdentifier(identifier) {
		return pardonerr.NewSchemaError(pardonerr.Unidentified, identifier, "illegal identifier")
	}
	scope, name := s.resolveScopeAndName(identifier)

	scope.mu.Lock()
	defer scope.mu.Unlock()

	if scope.haveValue[name] {
		if !valuesEqual(scope.values[name], value) {
			return pardonerr.NewSchemaError(pardonerr.Redefined, scope.Path()+"."+name,
				fmt.Sprintf("%v != %v", scope.values[name], value))
		}
		return nil
	}
	scope.values[name] = value
	scope.haveValue[name] = true
	return nil
}

func valuesEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Resolve walks ancestors synchronously looking for a bound value,
// consulting each scope's declarations' resolvers along the way, per
// spec §4.2.
func (s *Scope) Resolve(ctx context.Context, identifier string) (any, bool) {
	scope, name := s.resolveScopeAndName(identifier)
	for cur := scope; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v := cur.values[name]
		haveVal := cur.haveValue[name]
		decl, hasDecl := cur.declarations[name]
		cur.mu.Unlock()

		if haveVal {
			return v, true
		}
		if hasDecl && decl.Resolver != nil {
			if rv, ok := decl.Resolver(ctx, cur); ok {
				return rv, true
			}
		}
	}
	return nil, false
}

// Rendering registers identifier as currently evaluating, runs action,
// and caches the result — guarding against cyclic expression dependencies
// (spec §3: cycles surface as "unevaluated").
func (s *Scope) Rendering(ctx context.Context, name string, action func() (any, error)) (any, error) {
	scope, key := s.resolveScopeAndName(name)

	scope.mu.Lock()
	if v, ok := scope.rendered[key]; ok {
		scope.mu.Unlock()
		return v, nil
	}
	if scope.evaluating[key] {
		scope.mu.Unlock()
		return nil, pardonerr.NewSchemaError(pardonerr.Unevaluated, scope.Path()+"."+key, "cyclic dependency")
	}
	scope.evaluating[key] = true
	scope.mu.Unlock()

	result, err := action()

	scope.mu.Lock()
	delete(scope.evaluating, key)
	if err == nil {
		scope.rendered[key] = result
	}
	scope.mu.Unlock()

	return result, err
}

// Cached memoizes an expensive computation keyed by path+keys.
func (s *Scope) Cached(action func() any, keys ...string) any {
	cacheKey := strings.Join(keys, "\x00")

	s.mu.Lock()
	if v, ok := s.cache[cacheKey]; ok {
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	v := action()

	s.mu.Lock()
	s.cache[cacheKey] = v
	s.mu.Unlock()
	return v
}

// RegisterStrut records a companion capture used to size an array from a
// related capture (spec §4.4's array-length inference via struts).
func (s *Scope) RegisterStrut(name string, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.struts[name]; !ok || length > cur {
		s.struts[name] = length
	}
}

// StrutLength returns the maximum length registered for name, if any.
func (s *Scope) StrutLength(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.struts[name]
	return l, ok
}

// ExportOptions controls ResolvedValues' filtering, per spec §4.2.
type ExportOptions struct {
	Secrets     bool // include @ (redact) identifiers
	ExportsOnly bool // keep only + (export) identifiers
}

// ResolvedValues exports the final binding set for this scope (not
// descending into subscopes), filtered by hint per spec §4.2:
//   - secrets off: drop `@`-declared identifiers
//   - exportsOnly on: keep only `+`-declared identifiers
//   - `:` (no-export) is always dropped
func (s *Scope) ResolvedValues(opts ExportOptions) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any)
	for name, v := range s.values {
		if !s.haveValue[name] {
			continue
		}
		if decl, ok := s.declarations[name]; ok {
			if decl.Hint.Has(pattern.HintNoExport) {
				continue
			}
			if !opts.Secrets && decl.Hint.Has(pattern.HintRedact) {
				continue
			}
			if opts.ExportsOnly && !decl.Hint.Has(pattern.HintExport) {
				continue
			}
		} else if opts.ExportsOnly {
			continue
		}
		out[name] = v
	}
	return out
}

// All returns a flat, dot-prefixed snapshot of every value reachable from
// this scope (including subscopes), for use as an expression evaluation
// environment — the scope-tree analogue of the teacher's ValueStore.All().
func (s *Scope) All() map[string]any {
	out := make(map[string]any)
	s.collect("", out)
	return out
}

func (s *Scope) collect(prefix string, out map[string]any) {
	s.mu.Lock()
	for name, v := range s.values {
		if !s.haveValue[name] {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		out[key] = v
	}
	children := make(map[string]*Scope, len(s.subscopes))
	for k, v := range s.subscopes {
		children[k] = v
	}
	s.mu.Unlock()

	for name, child := range children {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		child.collect(key, out)
	}
}
