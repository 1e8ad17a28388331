// Package pattern implements spec.md §3/§4.1 (C1): mixed literal+variable
// strings that parse, match, render, and rewrite. A pattern is either a
// plain literal or a regex-backed template with zero or more `{{...}}`
// variable spans.
//
// This is a hand-rolled scanner in the style of the teacher's own
// `runtime/engine/dsl/parser.go`, generalized from a step-body grammar to
// the much smaller inline-span grammar patterns need.
package pattern

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Variable describes one `{{...}}` span: `<hints><name>( = <expr>)?( % /<regex>/)?`.
type Variable struct {
	Name       string // may be empty (anonymous)
	Hints      Hint
	Constraint string // user regex constraint from "% /.../", if any
	Expression string // embedded expression from "= ...", if any
	start, end int    // byte offsets of the span in Source
}

// BuildRules supplies the regex-construction policy for a pattern's
// position (origin/pathname/default), matching spec §4.1's
// `building.re` callback.
type BuildRules struct {
	// Re returns the regex class to use for a variable absent an explicit
	// constraint, given its hints. e.g. origin patterns default to
	// "[^.]+", pathname to "[^/]+"; HintDots widens to ".*".
	Re func(h Hint) string
}

// DefaultBuildRules is used when no BuildRules is supplied: a variable
// matches one or more characters other than "/"; HintDots widens to ".*".
var DefaultBuildRules = BuildRules{
	Re: func(h Hint) string {
		if h.Has(HintDots) {
			return ".*"
		}
		return "[^/]+"
	},
}

// OriginBuildRules matches spec §4.6: origin variables exclude "." by
// default (so environment.example.com doesn't swallow the TLD). The "?:"
// combination (optional + no-export) lifts that restriction, as "..." does.
var OriginBuildRules = BuildRules{
	Re: func(h Hint) string {
		if h.Has(HintDots) || (h.Has(HintOptional) && h.Has(HintNoExport)) {
			return ".*"
		}
		return "[^.]+"
	},
}

// PathnameBuildRules: pathname segments default to "[^/]+"; "?" allows an
// empty segment ("[^/]*") and "..." widens to ".*". No other hint lets a
// variable span a "/": "/" is not a hint character, so "!/" and "?/" are
// not recognised as hints.
var PathnameBuildRules = BuildRules{
	Re: func(h Hint) string {
		if h.Has(HintDots) {
			return ".*"
		}
		if h.Has(HintOptional) {
			return "[^/]*"
		}
		return "[^/]+"
	},
}

// Pattern is a value-typed, immutable representation of a pattern source.
type Pattern struct {
	Source    string
	Literal   bool // true if the pattern has no {{...}} spans
	Variables []Variable
	re        *regexp.Regexp
	rules     BuildRules
}

var spanRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Parse scans source for non-overlapping `{{...}}` spans. A source that is
// quoted as a whole ('...' or "...") is treated as an opaque literal (with
// the quotes removed) and never scanned for spans; quotes inside a larger
// source are not treated specially.
func Parse(source string, rules BuildRules) (*Pattern, error) {
	if isQuoted(source) {
		return &Pattern{Source: unquote(source), Literal: true, rules: rules}, nil
	}

	vars, err := scanVariables(source)
	if err != nil {
		return nil, err
	}
	if len(vars) == 0 {
		return &Pattern{Source: source, Literal: true, rules: rules}, nil
	}

	p := &Pattern{Source: source, Variables: vars, rules: rules}
	re, err := p.compile()
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"')
}

func unquote(s string) string { return s[1 : len(s)-1] }

// scanVariables finds every `{{...}}` span and parses its body into a
// Variable. The `$$expr("...")` encoding (a JSON-escaped string) lets an
// embedded expression itself contain literal `{{`/`}}` without being
// mistaken for a nested span; it is unescaped here before further parsing.
func scanVariables(source string) ([]Variable, error) {
	matches := spanRe.FindAllStringSubmatchIndex(source, -1)
	vars := make([]Variable, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		bodyStart, bodyEnd := m[2], m[3]
		body := source[bodyStart:bodyEnd]
		v, err := parseVariableBody(body)
		if err != nil {
			return nil, fmt.Errorf("pattern: invalid variable %q: %w", body, err)
		}
		v.start, v.end = start, end
		vars = append(vars, v)
	}
	return vars, nil
}

// parseVariableBody parses `<hints><name>( = <expr>)?( % /<regex>/)?`.
func parseVariableBody(body string) (Variable, error) {
	body = strings.TrimSpace(body)
	if i := strings.Index(body, `$$expr(`); i >= 0 {
		if j := strings.LastIndex(body, ")"); j > i {
			var inner string
			if err := json.Unmarshal([]byte(body[i+len(`$$expr(`):j]), &inner); err != nil {
				return Variable{}, err
			}
			body = body[:i] + inner + body[j+1:]
		}
	}

	hints, rest := ParseHints(body)

	var constraint, expr string
	if idx := strings.Index(rest, " % /"); idx >= 0 {
		constraint = strings.TrimSuffix(rest[idx+4:], "/")
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "="); idx >= 0 {
		expr = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}
	name := strings.TrimSpace(rest)

	// Accessor/coercion suffixes (.@value, .@key, .string, .$x, ...) are
	// kept as part of the name; the scope layer interprets the dotted path.
	return Variable{Name: name, Hints: hints, Constraint: constraint, Expression: expr}, nil
}

// compile builds the anchored regex with one capture group per variable.
func (p *Pattern) compile() (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	pos := 0
	for _, v := range p.Variables {
		b.WriteString(regexp.QuoteMeta(p.Source[pos:v.start]))
		class := v.Constraint
		if class == "" {
			rules := p.rules
			if rules.Re == nil {
				rules = DefaultBuildRules
			}
			class = rules.Re(v.Hints)
		}
		b.WriteString("(")
		b.WriteString(class)
		b.WriteString(")")
		pos = v.end
	}
	b.WriteString(regexp.QuoteMeta(p.Source[pos:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Regexp exposes the compiled anchored regex (nil for literal patterns).
func (p *Pattern) Regexp() *regexp.Regexp { return p.re }

// Match runs the compiled regex anchored against input and extracts each
// named capture; anonymous variables are discarded, per spec §4.1.
func (p *Pattern) Match(input string) (map[string]string, bool) {
	if p.Literal {
		if input == p.Source {
			return map[string]string{}, true
		}
		return nil, false
	}
	m := p.re.FindStringSubmatch(input)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string)
	for i, v := range p.Variables {
		if v.Name == "" {
			continue
		}
		out[v.Name] = m[i+1]
	}
	return out, true
}

// Render substitutes the i-th variable span with values[i] (or leaves the
// original `{{...}}` text if no value is supplied), per spec §4.1.
func (p *Pattern) Render(values []string) string {
	if p.Literal {
		return p.Source
	}
	var b strings.Builder
	pos := 0
	for i, v := range p.Variables {
		b.WriteString(p.Source[pos:v.start])
		if i < len(values) && values[i] != "" {
			b.WriteString(values[i])
		} else {
			b.WriteString(p.Source[v.start:v.end])
		}
		pos = v.end
	}
	b.WriteString(p.Source[pos:])
	return b.String()
}

// RenderByName is a convenience wrapper over Render that looks values up by
// variable name rather than positionally.
func (p *Pattern) RenderByName(values map[string]string) string {
	vals := make([]string, len(p.Variables))
	for i, v := range p.Variables {
		vals[i] = values[v.Name]
	}
	return p.Render(vals)
}

// names returns the (possibly repeated) variable names in source order.
func (p *Pattern) names() []string {
	names := make([]string, len(p.Variables))
	for i, v := range p.Variables {
		names[i] = v.Name
	}
	return names
}

func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[string]int, len(a))
	for _, n := range a {
		count[n]++
	}
	for _, n := range b {
		count[n]--
	}
	for _, c := range count {
		if c != 0 {
			return false
		}
	}
	return true
}

// Rewrite requires both receiver-independent arguments `from` and `to` be
// regex patterns sharing the same (multi-)set of parameter names, per
// spec §3/§4.1. When the receiver is regex-backed, each `{{x}}` span is
// replaced by the corresponding `{{x}}` span from `to`. When the receiver
// is a literal, it is first matched against `from` to extract values,
// which are then substituted into `to`.
func (p *Pattern) Rewrite(from, to *Pattern) (*Pattern, error) {
	if from.Literal || to.Literal {
		return nil, fmt.Errorf("pattern: rewrite requires regex-backed from/to patterns")
	}
	if !sameNameSet(from.names(), to.names()) {
		return nil, fmt.Errorf("pattern: rewrite requires from/to to share variable names")
	}

	if p.Literal {
		values, ok := from.Match(p.Source)
		if !ok {
			return nil, fmt.Errorf("pattern: literal %q does not match `from`", p.Source)
		}
		rendered := to.RenderByName(values)
		return Parse(rendered, p.rules)
	}

	if !sameNameSet(p.names(), from.names()) {
		return nil, fmt.Errorf("pattern: rewrite requires receiver to share `from`'s variable names")
	}

	// Replace each of the receiver's spans with `to`'s span text for the
	// same variable name, leaving literal text between spans untouched.
	var b strings.Builder
	pos := 0
	toByName := make(map[string]string, len(to.Variables))
	for _, v := range to.Variables {
		toByName[v.Name] = to.Source[v.start:v.end]
	}
	for _, v := range p.Variables {
		b.WriteString(p.Source[pos:v.start])
		if span, ok := toByName[v.Name]; ok {
			b.WriteString(span)
		} else {
			b.WriteString(p.Source[v.start:v.end])
		}
		pos = v.end
	}
	b.WriteString(p.Source[pos:])
	return Parse(b.String(), p.rules)
}

// Compatible reports whether the two patterns share any concrete instance:
// literal prefixes agree, and either pattern matches the concrete value of
// the other, per spec §3.
func (p *Pattern) Compatible(other *Pattern) bool {
	switch {
	case p.Literal && other.Literal:
		return p.Source == other.Source
	case p.Literal && !other.Literal:
		_, ok := other.Match(p.Source)
		return ok
	case !p.Literal && other.Literal:
		_, ok := p.Match(other.Source)
		return ok
	default:
		return p.sharePrefix(other)
	}
}

// sharePrefix is a conservative compatibility check between two
// regex-backed patterns: their leading literal runs must agree.
func (p *Pattern) sharePrefix(other *Pattern) bool {
	aPrefix := p.Source
	if len(p.Variables) > 0 {
		aPrefix = p.Source[:p.Variables[0].start]
	}
	bPrefix := other.Source
	if len(other.Variables) > 0 {
		bPrefix = other.Source[:other.Variables[0].start]
	}
	shorter, longer := aPrefix, bPrefix
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	return strings.HasPrefix(longer, shorter)
}

// VariableNames returns the non-anonymous variable names in source order,
// deduplicated, preserving first occurrence.
func (p *Pattern) VariableNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range p.Variables {
		if v.Name == "" || seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, v.Name)
	}
	return out
}
