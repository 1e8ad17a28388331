package configspace

// Defaults is a per-key tree of conditional default values, spec §3/§4.5
// "a `defaults` tree (per-key fallback rules) ... the default function
// walks the tree picking branches by currently-chosen siblings".
//
// A key's defaults are a list of rules tried in order; a rule whose
// `When` conditions are all satisfied by the row built so far wins. A
// rule with no conditions is an unconditional fallback and should be
// listed last.
type Defaults struct {
	rules map[string][]DefaultRule
}

// DefaultRule is one conditional default: if every key in When matches
// the caller's currently-chosen siblings, Value applies.
type DefaultRule struct {
	When  Row
	Value string
}

// NewDefaults builds a Defaults tree from a key -> ordered rule list map.
func NewDefaults(rules map[string][]DefaultRule) *Defaults {
	return &Defaults{rules: rules}
}

// Default resolves key's default given the sibling values chosen so far
// (e.g. an already-picked `env` steering a conditional `region`
// default). Returns ok=false if no rule's conditions are satisfied.
func (d *Defaults) Default(key string, siblings Row) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, rule := range d.rules[key] {
		if satisfies(rule.When, siblings) {
			return rule.Value, true
		}
	}
	return "", false
}

func satisfies(when, siblings Row) bool {
	for k, v := range when {
		if siblings[k] != v {
			return false
		}
	}
	return true
}

// Default resolves key against the space's defaults tree, using the
// currently chosen values as siblings, falling back to ok=false when
// there is no Defaults tree or no matching rule.
func (s *Space) Default(key string) (string, bool) {
	if s.defaults == nil {
		return "", false
	}
	return s.defaults.Default(key, s.chosen)
}
