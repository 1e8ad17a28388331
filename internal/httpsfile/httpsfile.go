// Package httpsfile implements spec.md §6's `.https` text format: an
// optional YAML configuration header, followed by one or more
// `>>>`/`<<<` delimited request/response blocks, each a request-line or
// status-line, header lines, a blank line, and a byte-preserved body. A
// response block may carry a `?outcome: name` header line labeling the
// outcome it represents.
//
// Grounded on the teacher's runtime/engine/dsl/parser.go, a hand-rolled
// line/token scanner for its step-DSL grammar — adapted here from a
// step-body grammar to the much smaller request/response block grammar.
package httpsfile

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockKind distinguishes a request block (`>>>`) from a response block
// (`<<<`).
type BlockKind string

const (
	KindRequest  BlockKind = "request"
	KindResponse BlockKind = "response"
)

// Header is one preserved header line, in original order and case.
type Header struct {
	Name  string
	Value string
}

// Block is one `>>>`/`<<<` delimited section.
type Block struct {
	Kind    BlockKind
	Line    string // request-line ("METHOD pathOrURL") or status-line ("200 OK")
	Headers []Header
	Outcome string // from a "?outcome: name" header line, response blocks only
	Body    string
}

// File is a parsed `.https` document: an optional YAML configuration
// header plus the ordered block sequence.
type File struct {
	Config map[string]any
	Blocks []Block
}

// HeaderValue returns h's first header named name (case-insensitive), or
// "" if absent.
func (b Block) HeaderValue(name string) string {
	for _, h := range b.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Parse reads a `.https` document from source.
func Parse(source string) (*File, error) {
	lines := strings.Split(source, "\n")

	i := 0
	var headerLines []string
	for i < len(lines) && !isDelimiter(lines[i]) {
		headerLines = append(headerLines, lines[i])
		i++
	}

	f := &File{}
	if header := strings.TrimRight(strings.Join(headerLines, "\n"), "\n \t"); header != "" {
		cfg := map[string]any{}
		if err := yaml.Unmarshal([]byte(header), &cfg); err != nil {
			return nil, fmt.Errorf("httpsfile: configuration header: %w", err)
		}
		f.Config = cfg
	}

	for i < len(lines) {
		kind := KindRequest
		switch strings.TrimSpace(lines[i]) {
		case ">>>":
			kind = KindRequest
		case "<<<":
			kind = KindResponse
		default:
			return nil, fmt.Errorf("httpsfile: expected >>> or <<< at line %d, got %q", i+1, lines[i])
		}
		i++

		var line string
		if i < len(lines) {
			line = lines[i]
			i++
		}

		var headers []Header
		outcome := ""
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			h, ok := parseHeaderLine(lines[i])
			i++
			if !ok {
				continue
			}
			if strings.EqualFold(h.Name, "?outcome") {
				outcome = h.Value
				continue
			}
			headers = append(headers, h)
		}
		if i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++ // consume the blank separator line
		}

		var bodyLines []string
		for i < len(lines) && !isDelimiter(lines[i]) {
			bodyLines = append(bodyLines, lines[i])
			i++
		}
		body := strings.Join(bodyLines, "\n")
		body = strings.TrimSuffix(body, "\n")

		f.Blocks = append(f.Blocks, Block{
			Kind:    kind,
			Line:    line,
			Headers: headers,
			Outcome: outcome,
			Body:    body,
		})
	}

	return f, nil
}

func isDelimiter(line string) bool {
	t := strings.TrimSpace(line)
	return t == ">>>" || t == "<<<"
}

func parseHeaderLine(line string) (Header, bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return Header{}, false
	}
	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	return Header{Name: name, Value: value}, true
}

// Print serializes f back to `.https` text, round-tripping byte-for-byte
// bodies, spec §6 "parsing must preserve body text byte-for-byte".
func Print(f *File) (string, error) {
	var b strings.Builder
	if len(f.Config) > 0 {
		cfg, err := yaml.Marshal(f.Config)
		if err != nil {
			return "", fmt.Errorf("httpsfile: marshal configuration header: %w", err)
		}
		b.Write(cfg)
	}
	for _, block := range f.Blocks {
		switch block.Kind {
		case KindRequest:
			b.WriteString(">>>\n")
		case KindResponse:
			b.WriteString("<<<\n")
		}
		b.WriteString(block.Line)
		b.WriteString("\n")
		if block.Outcome != "" {
			b.WriteString("?outcome: ")
			b.WriteString(block.Outcome)
			b.WriteString("\n")
		}
		for _, h := range block.Headers {
			b.WriteString(h.Name)
			b.WriteString(": ")
			b.WriteString(h.Value)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(block.Body)
		b.WriteString("\n")
	}
	return b.String(), nil
}
