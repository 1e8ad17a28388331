package pattern

// Hint is a bitset over the hint characters a `{{...}}` variable span may
// carry: `:` `?` `!` `@` `~` `*` `+` and the `...` (dots/rest) marker, per
// spec.md §3/§4.1.
type Hint uint16

const (
	HintNone Hint = 0
	// HintRequired ("!") — render fails if the variable is unresolved.
	HintRequired Hint = 1 << iota
	// HintOptional ("?") — widens the variable's regex class (e.g. allows
	// an empty segment, or makes a captured status code a one-digit class).
	HintOptional
	// HintRedact ("@") — the resolved value is never exposed unless
	// secrets are explicitly requested.
	HintRedact
	// HintNoExport (":") — the value is always dropped from exported
	// scopes, secrets or not.
	HintNoExport
	// HintMeld ("~") — the reference is available offline / participates
	// in blend-style merges.
	HintMeld
	// HintDistinct ("*") — reserved distinct-value marker.
	HintDistinct
	// HintExport ("+") — the value is kept when a flow exports only a
	// subset of the scope to its caller.
	HintExport
	// HintDots ("...") — widens the pattern segment to match greedily
	// (e.g. `.*` for a pathname rest-segment).
	HintDots
)

func (h Hint) Has(f Hint) bool { return h&f != 0 }

// ParseHints scans a leading run of hint characters (and the literal "..."
// token) off source, returning the accumulated Hint and the remaining text.
func ParseHints(source string) (Hint, string) {
	h := HintNone
	for {
		if len(source) >= 3 && source[:3] == "..." {
			h |= HintDots
			source = source[3:]
			continue
		}
		if len(source) == 0 {
			break
		}
		switch source[0] {
		case '!':
			h |= HintRequired
		case '?':
			h |= HintOptional
		case '@':
			h |= HintRedact
		case ':':
			h |= HintNoExport
		case '~':
			h |= HintMeld
		case '*':
			h |= HintDistinct
		case '+':
			h |= HintExport
		default:
			return h, source
		}
		source = source[1:]
	}
	return h, source
}
