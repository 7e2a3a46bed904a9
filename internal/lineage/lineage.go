package lineage

import (
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
)

// Opaque ID prefixes that produce edges. Other prefixes (seeds, snapshots,
// metrics) are ignored.
const (
	sourcePrefix = "source."
	modelPrefix  = "model."
)

// Index resolves opaque IDs of one manifest.
type Index struct {
	// Sources maps source IDs to dataset EntityIDs
	Sources map[string]core.EntityID
	// Models maps model IDs to virtual view EntityIDs
	Models map[string]core.EntityID
	// Targets maps model IDs to the dataset the model materializes, for
	// persisted models only
	Targets map[string]core.EntityID
	// Macros maps macro IDs to full macro records
	Macros map[string]core.DbtMacro
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Sources: make(map[string]core.EntityID),
		Models:  make(map[string]core.EntityID),
		Targets: make(map[string]core.EntityID),
		Macros:  make(map[string]core.DbtMacro),
	}
}

// Edges are the resolved upstreams of one node.
type Edges struct {
	SourceDatasets []string
	SourceModels   []string
	Macros         []core.DbtMacro
}

// Empty reports whether no edge was resolved.
func (e Edges) Empty() bool {
	return len(e.SourceDatasets) == 0 && len(e.SourceModels) == 0 && len(e.Macros) == 0
}

// Build resolves the node and macro dependencies of referrer. Unresolvable
// IDs are returned as *core.DanglingReferenceError and left out of Edges.
func Build(referrer string, nodes, macros []string, idx *Index) (Edges, []error) {
	var (
		edges Edges
		errs  []error
	)
	for _, id := range nodes {
		switch {
		case strings.HasPrefix(id, sourcePrefix):
			entity, ok := idx.Sources[id]
			if !ok {
				errs = append(errs, &core.DanglingReferenceError{Node: referrer, Missing: id})
				continue
			}
			edges.SourceDatasets = registry.AppendUnique(edges.SourceDatasets, string(entity))
		case strings.HasPrefix(id, modelPrefix):
			entity, ok := idx.Models[id]
			if !ok {
				errs = append(errs, &core.DanglingReferenceError{Node: referrer, Missing: id})
				continue
			}
			edges.SourceModels = registry.AppendUnique(edges.SourceModels, string(entity))
		}
	}
	for _, id := range macros {
		macro, ok := idx.Macros[id]
		if !ok {
			errs = append(errs, &core.DanglingReferenceError{Node: referrer, Missing: id})
			continue
		}
		edges.Macros = registry.MergeMacro(edges.Macros, macro)
	}
	return edges, errs
}

// DatasetUpstream returns the physical upstream of a materialized node: the
// source datasets it reads plus the target datasets of the persisted models
// it reads, in first-seen order. Ephemeral models contribute nothing.
func DatasetUpstream(nodes []string, idx *Index) []string {
	var out []string
	for _, id := range nodes {
		switch {
		case strings.HasPrefix(id, sourcePrefix):
			if entity, ok := idx.Sources[id]; ok {
				out = registry.AppendUnique(out, string(entity))
			}
		case strings.HasPrefix(id, modelPrefix):
			if entity, ok := idx.Targets[id]; ok {
				out = registry.AppendUnique(out, string(entity))
			}
		}
	}
	return out
}

// Collect flattens the upstream lists of finalized entities into edges.
func Collect(e registry.Entities) []core.LineageEdge {
	var edges []core.LineageEdge
	add := func(to core.EntityID, from []string, kind core.EdgeKind) {
		for _, f := range from {
			edges = append(edges, core.LineageEdge{From: core.EntityID(f), To: to, Kind: kind})
		}
	}
	for _, d := range e.Datasets {
		if d.Upstream != nil {
			add(identity.Of(d.LogicalID), d.Upstream.SourceDatasets, core.EdgeDatasetUpstream)
		}
	}
	for _, v := range e.VirtualViews {
		if v.DbtModel == nil {
			continue
		}
		to := identity.Of(v.LogicalID)
		add(to, v.DbtModel.SourceDatasets, core.EdgeSourceDataset)
		add(to, v.DbtModel.SourceModels, core.EdgeSourceModel)
	}
	for _, m := range e.Metrics {
		if m.DbtMetric == nil {
			continue
		}
		to := identity.Of(m.LogicalID)
		add(to, m.DbtMetric.SourceDatasets, core.EdgeSourceDataset)
		add(to, m.DbtMetric.SourceModels, core.EdgeSourceModel)
	}
	return edges
}
