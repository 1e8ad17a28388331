// Package configspace implements spec.md §3/§4.5 (C5): a finite
// enumeration of option rows ("config space") used to resolve ambiguous
// pattern variables such as `env`/`region`, plus conditional per-key
// defaults and the `match`/`implied`/`exhausted` reconciliation ops.
//
// Grounded on the teacher's runtime/config.go, which walks a nested
// YAML-decoded map[string]any to build a flat, validated configuration —
// generalized from "flatten to one map" into "enumerate every compatible
// combination of leaf choices as a row".
package configspace

import (
	"sort"

	"github.com/pardon-http/pardon/internal/pattern"
)

// Row is one fully-ground assignment of concrete strings to config keys,
// e.g. {"env": "stage", "region": "east"}.
type Row map[string]string

// Space is a finite multiset of option rows plus a conditional defaults
// tree and the currently-chosen partial override, spec §3 "Config
// space".
type Space struct {
	rows     []Row
	defaults *Defaults
	chosen   Row
}

// New builds a Space by enumerating every fully-ground path through a
// nested config map, such as:
//
//	{origin: {env: {stage: "https://stage.example.com", prod: "https://prod.example.com"}}}
//
// A node whose values are all plain strings is a *dimension leaf*: its
// own key (in its parent map) names the config key, and each of its
// entries is one option value for that key. A node whose values are
// themselves maps is a grouping namespace with no key of its own; each
// child dimension found under it multiplies against its siblings
// (spec §4.5: "two different config dimensions at the top level
// multiply"), filtered down to combinations that agree wherever rows
// share keys.
func New(config map[string]any) *Space {
	return &Space{rows: buildRows(config), chosen: Row{}}
}

func buildRows(node map[string]any) []Row {
	var product []Row
	first := true
	for _, key := range sortedKeys(node) {
		childRows := dimensionRows(key, node[key])
		if len(childRows) == 0 {
			continue
		}
		if first {
			product = childRows
			first = false
			continue
		}
		product = crossCombine(product, childRows)
	}
	return product
}

func dimensionRows(key string, value any) []Row {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	if isLeafMap(m) {
		rows := make([]Row, 0, len(m))
		for _, name := range sortedKeys(m) {
			rows = append(rows, Row{key: name})
		}
		return rows
	}
	return buildRows(m)
}

func isLeafMap(m map[string]any) bool {
	for _, v := range m {
		if _, isMap := v.(map[string]any); isMap {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// crossCombine computes the product of a and b, keeping only
// combinations that agree on every key they share (spec §4.5 "filtered
// to compatible combinations").
func crossCombine(a, b []Row) []Row {
	out := make([]Row, 0, len(a)*len(b))
	for _, ra := range a {
		for _, rb := range b {
			if !agree(ra, rb) {
				continue
			}
			merged := make(Row, len(ra)+len(rb))
			for k, v := range ra {
				merged[k] = v
			}
			for k, v := range rb {
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	return out
}

func agree(a, b Row) bool {
	for k, v := range a {
		if ov, ok := b[k]; ok && ov != v {
			return false
		}
	}
	return true
}

// WithDefaults attaches a conditional defaults tree.
func (s *Space) WithDefaults(d *Defaults) *Space {
	cp := *s
	cp.defaults = d
	return &cp
}

// Choose filters rows to those compatible with override, returning a new
// Space (spec §3 "choose(override) filtering"). Its chosen set
// accumulates across calls.
func (s *Space) Choose(override Row) *Space {
	next := &Space{defaults: s.defaults, chosen: make(Row, len(s.chosen)+len(override))}
	for k, v := range s.chosen {
		next.chosen[k] = v
	}
	for k, v := range override {
		next.chosen[k] = v
	}
	for _, row := range s.rows {
		if agree(row, override) {
			next.rows = append(next.rows, row)
		}
	}
	return next
}

// Implied returns the keys that take the same value in every remaining
// row, plus any explicit override layered on top, spec §3/§4.5
// `implied()` and testable property 5.
func (s *Space) Implied(override ...Row) Row {
	result := Row{}
	if len(s.rows) > 0 {
		candidate := make(Row, len(s.rows[0]))
		for k, v := range s.rows[0] {
			candidate[k] = v
		}
		for _, row := range s.rows[1:] {
			for k, v := range candidate {
				if row[k] != v {
					delete(candidate, k)
				}
			}
		}
		result = candidate
	}
	for k, v := range s.chosen {
		result[k] = v
	}
	for _, o := range override {
		for k, v := range o {
			result[k] = v
		}
	}
	return result
}

// Exhausted reports whether no option rows remain.
func (s *Space) Exhausted() bool { return len(s.rows) == 0 }

// Rows exposes the remaining candidate rows (read-only use: ranging,
// counting — callers must not mutate the returned rows).
func (s *Space) Rows() []Row { return s.rows }

// MatchResult is the outcome of reconciling a rendered pattern instance
// against the option set.
type MatchResult struct {
	Implied Row
	Ok      bool
}

// Match narrows the space to rows compatible with a rendered pattern
// instance: pat is matched against rendered to recover its captured
// variables, and rows are filtered to those agreeing with any captured
// variable that is also a config key (spec §4.5's reconciliation, scoped
// to a single observed instance rather than the full multi-pattern
// cross-propagation the source performs — see DESIGN.md).
func (s *Space) Match(pat *pattern.Pattern, rendered string) (*Space, MatchResult) {
	captured, ok := pat.Match(rendered)
	if !ok {
		return s, MatchResult{Ok: false}
	}
	filter := Row{}
	for k, v := range captured {
		filter[k] = v
	}
	next := s.Choose(filter)
	return next, MatchResult{Implied: next.Implied(), Ok: true}
}

// Config resolves the free identifiers of a set of candidate pattern
// sources against the current space, returning the implied values —
// the concrete counterpart to scope.Environment.ConfigImplied.
func (s *Space) Config(patterns []*pattern.Pattern) map[string]string {
	implied := s.Implied()
	out := make(map[string]string)
	for _, p := range patterns {
		for _, v := range p.Variables {
			if val, ok := implied[v.Name]; ok {
				out[v.Name] = val
			}
		}
	}
	return out
}
