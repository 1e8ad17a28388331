// Package collection implements spec.md §4.10 (C10): building an
// immutable, queryable collection of endpoints/configurations/mixins/
// data/scripts by scanning and merging one or more ordered *layer*
// directories.
//
// Grounded on the teacher's cli/internal/workspace (which scans a
// project directory for flow assets by extension) and cli/internal/
// detector (rule-ordered classification returning an enum), generalized
// from "one flat directory of flow YAML files" to "an ordered stack of
// layer trees, each file classified by a priority table and merged
// ancestrally by directory".
package collection

import (
	"sort"

	"github.com/pardon-http/pardon/internal/httpsfile"
	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pipeline"
)

// Collection is the immutable snapshot spec §3 describes as
// `{endpoints, configurations, data, mixins, scripts, resolutions,
// errors}`, built once per workspace root by Build.
type Collection struct {
	Endpoints      map[string]*Endpoint
	Configurations map[string]map[string]any
	Data           map[string]map[string]any
	Mixins         map[string]*httpsfile.File
	Scripts        map[string]string
	Resolutions    map[string]string
	Errors         []error
}

// Labels returns the collection's endpoint ids in sorted order, for
// deterministic iteration (diagnostics, candidate lookup).
func (c *Collection) Labels() []string {
	labels := make([]string, 0, len(c.Endpoints))
	for id := range c.Endpoints {
		labels = append(labels, id)
	}
	sort.Strings(labels)
	return labels
}

// Build scans layerDirs in order and assembles a Collection, spec
// §4.10/§5 "collection loads scan the filesystem once and produce an
// immutable collection snapshot". A per-asset ParseError is recorded in
// Errors and that asset is dropped; the remainder still loads.
func Build(layerDirs ...string) (*Collection, error) {
	assets, errs := scanLayers(layerDirs)

	col := &Collection{
		Endpoints:      map[string]*Endpoint{},
		Configurations: map[string]map[string]any{},
		Data:           map[string]map[string]any{},
		Mixins:         map[string]*httpsfile.File{},
		Scripts:        map[string]string{},
		Resolutions:    map[string]string{},
		Errors:         errs,
	}

	byKindID := groupByKindID(assets)

	configIDs := idsForKind(byKindID, KindConfiguration)
	for _, id := range configIDs {
		merged := mergeLayersAtID(byKindID, KindConfiguration, id)
		col.Configurations[id] = merged
		if export, ok := merged["export"].(string); ok && export != "" {
			col.Resolutions[export] = id
		}
	}

	dataIDs := idsForKind(byKindID, KindData)
	for _, id := range dataIDs {
		col.Data[id] = mergeLayersAtID(byKindID, KindData, id)
	}

	mixinIDs := idsForKind(byKindID, KindMixin)
	for _, id := range mixinIDs {
		group := byKindID[kindID{KindMixin, id}]
		last := group[len(group)-1]
		f, ok := last.HTTPS()
		if !ok {
			continue
		}
		col.Mixins[id] = f
	}

	scriptIDs := idsForKind(byKindID, KindScript)
	for _, id := range scriptIDs {
		group := byKindID[kindID{KindScript, id}]
		col.Scripts[id] = group[len(group)-1].Text
	}

	endpointIDs := idsForKind(byKindID, KindEndpoint)
	for _, id := range endpointIDs {
		group := byKindID[kindID{KindEndpoint, id}]
		last := group[len(group)-1]
		f, ok := last.HTTPS()
		if !ok {
			continue
		}
		ep, err := assembleEndpoint(col, id, f)
		if err != nil {
			col.Errors = append(col.Errors, &pardonerr.ParseError{Path: last.Path, Cause: err})
			continue
		}
		col.Endpoints[id] = ep
	}

	return col, nil
}

// Candidates returns every assembled endpoint, in deterministic (sorted
// by id) order, for use as internal/pipeline's match candidate list.
func (c *Collection) Candidates() []pipeline.Endpoint {
	out := make([]pipeline.Endpoint, 0, len(c.Endpoints))
	for _, label := range c.Labels() {
		out = append(out, c.Endpoints[label])
	}
	return out
}
