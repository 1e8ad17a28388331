package collection

import (
	"path/filepath"
	"strings"
)

// AssetKind is one row of spec §4.10's classification table.
type AssetKind string

const (
	KindConfiguration AssetKind = "configuration"
	KindData          AssetKind = "data"
	KindMixin         AssetKind = "mixin"
	KindEndpoint      AssetKind = "endpoint"
	KindScript        AssetKind = "script"
)

// classify assigns relPath a kind per spec §4.10's table, checked in an
// order that matters: `service.yaml`/`config.yaml` is a more specific
// subset of the generic `*.yaml` rule, and `*.mix.https`/`*.mux.https`
// is a more specific subset of the generic `*.https` rule, so the
// specific rules must be tried first. Grounded on the teacher's
// cli/internal/detector.DetectPluginType's rule-ordered, first-match
// classification.
func classify(relPath string) (AssetKind, bool) {
	base := filepath.Base(relPath)
	switch {
	case base == "service.yaml" || base == "config.yaml":
		return KindConfiguration, true
	case strings.HasSuffix(base, ".mix.https"), strings.HasSuffix(base, ".mux.https"):
		return KindMixin, true
	case strings.HasSuffix(base, ".https"):
		return KindEndpoint, true
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"), strings.HasSuffix(base, ".json"):
		return KindData, true
	case strings.HasSuffix(base, ".ts"), strings.HasSuffix(base, ".js"):
		return KindScript, true
	default:
		return "", false
	}
}

// idFor derives the asset id that same-id assets are collected under
// across layers: the slash-joined directory plus, for everything but a
// directory-scoped configuration file, the file's base name with its
// kind suffix stripped.
func idFor(kind AssetKind, relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." {
		dir = ""
	}
	if kind == KindConfiguration {
		return dir
	}

	base := filepath.Base(relPath)
	name := base
	switch kind {
	case KindMixin:
		name = strings.TrimSuffix(strings.TrimSuffix(base, ".mix.https"), ".mux.https")
	case KindEndpoint:
		name = strings.TrimSuffix(base, ".https")
	case KindData:
		name = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml"), ".json")
	case KindScript:
		name = strings.TrimSuffix(strings.TrimSuffix(base, ".ts"), ".js")
	}

	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// dirOf returns the directory part of an id, i.e. the id with its final
// path segment removed — "" for a root-level id.
func dirOf(id string) string {
	idx := strings.LastIndex(id, "/")
	if idx < 0 {
		return ""
	}
	return id[:idx]
}

// ancestorDirs returns every directory from the root ("") down to and
// including dir, in outer-to-inner order, spec §4.10 "service/config
// layers ancestral to the endpoint's path are merged".
func ancestorDirs(dir string) []string {
	if dir == "" {
		return []string{""}
	}
	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts)+1)
	out = append(out, "")
	acc := ""
	for _, p := range parts {
		if acc == "" {
			acc = p
		} else {
			acc = acc + "/" + p
		}
		out = append(out, acc)
	}
	return out
}
