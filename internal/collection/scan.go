package collection

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pardon-http/pardon/internal/httpsfile"
	"github.com/pardon-http/pardon/internal/pardonerr"
	"gopkg.in/yaml.v3"
)

// asset is one classified file, still attached to the layer it came
// from (layer index, for merge ordering: later layers override/extend
// earlier ones).
type asset struct {
	Kind  AssetKind
	ID    string
	Path  string
	Layer int
	Data  map[string]any  // decoded YAML/JSON, for configuration/data
	File  *httpsfile.File // parsed .https, for mixin/endpoint
	Text  string          // raw source, for script
}

func (a asset) HTTPS() (*httpsfile.File, bool) { return a.File, a.File != nil }

type kindID struct {
	Kind AssetKind
	ID   string
}

// scanLayers walks each layer directory in order and classifies,
// parses, and groups every file it recognizes. Grounded on the
// teacher's cli/internal/workspace.Workspace.CopyFlows, which walks a
// single directory with os.ReadDir and an extension check; generalized
// here to filepath.WalkDir over an ordered stack of directories with a
// priority-ordered classification table.
func scanLayers(layerDirs []string) ([]asset, []error) {
	var assets []asset
	var errs []error

	for layerIdx, root := range layerDirs {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, &pardonerr.ParseError{Path: path, Cause: err})
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				errs = append(errs, &pardonerr.ParseError{Path: path, Cause: err})
				return nil
			}
			kind, ok := classify(rel)
			if !ok {
				return nil
			}

			a, err := loadAsset(kind, path, rel, layerIdx)
			if err != nil {
				errs = append(errs, &pardonerr.ParseError{Path: path, Cause: err})
				return nil
			}
			assets = append(assets, a)
			return nil
		})
	}

	return assets, errs
}

func loadAsset(kind AssetKind, path, rel string, layerIdx int) (asset, error) {
	a := asset{Kind: kind, ID: idFor(kind, rel), Path: path, Layer: layerIdx}

	switch kind {
	case KindConfiguration, KindData:
		raw, err := os.ReadFile(path)
		if err != nil {
			return asset{}, err
		}
		data := map[string]any{}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return asset{}, err
		}
		a.Data = expandDottedKeys(data)
	case KindMixin, KindEndpoint:
		raw, err := os.ReadFile(path)
		if err != nil {
			return asset{}, err
		}
		f, err := httpsfile.Parse(string(raw))
		if err != nil {
			return asset{}, err
		}
		a.File = f
	case KindScript:
		raw, err := os.ReadFile(path)
		if err != nil {
			return asset{}, err
		}
		a.Text = string(raw)
	}

	return a, nil
}

// groupByKindID buckets assets by (kind, id), each bucket sorted by
// layer index so "later layer wins/extends" merges can just walk the
// slice in order.
func groupByKindID(assets []asset) map[kindID][]asset {
	out := map[kindID][]asset{}
	for _, a := range assets {
		key := kindID{a.Kind, a.ID}
		out[key] = append(out[key], a)
	}
	for key := range out {
		group := out[key]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Layer < group[j].Layer })
		out[key] = group
	}
	return out
}

func idsForKind(byKindID map[kindID][]asset, kind AssetKind) []string {
	var ids []string
	for key := range byKindID {
		if key.Kind == kind {
			ids = append(ids, key.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// mergeLayersAtID deep-merges every layer's asset at (kind, id) in layer
// order, spec §4.10 "assets with the same id across layers ... are
// merged" — a later layer's values win wherever both declare the same
// key, recursing into nested maps.
func mergeLayersAtID(byKindID map[kindID][]asset, kind AssetKind, id string) map[string]any {
	result := map[string]any{}
	for _, a := range byKindID[kindID{kind, id}] {
		result = deepMerge(result, a.Data)
	}
	return result
}

// deepMerge returns a new map with src merged over dst: scalar and
// list leaves in src replace dst's; nested maps recurse.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok2 := out[k].(map[string]any); ok2 {
				out[k] = deepMerge(dm, sm)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// expandDottedKeys turns any key containing "." into a nested map path
// before merging, spec §4.10 "dotted keys combine" — e.g. {"a.b": 1}
// becomes {"a": {"b": 1}}, recursively, so it combines with a sibling
// asset that declared {"a": {"c": 2}} directly.
func expandDottedKeys(m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = expandDottedKeys(nested)
		}
		segments := splitDotted(k)
		if len(segments) == 1 {
			out[k] = mergeDottedValue(out[k], v)
			continue
		}
		leaf := map[string]any{segments[len(segments)-1]: v}
		for i := len(segments) - 2; i >= 1; i-- {
			leaf = map[string]any{segments[i]: leaf}
		}
		out[segments[0]] = mergeDottedValue(out[segments[0]], leaf)
	}
	return out
}

func mergeDottedValue(existing, v any) any {
	em, eok := existing.(map[string]any)
	vm, vok := v.(map[string]any)
	if eok && vok {
		return deepMerge(em, vm)
	}
	return v
}

func splitDotted(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	return parts
}
