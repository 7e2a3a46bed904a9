package engine

import (
	"time"

	"github.com/leapstack-labs/leapmeta/internal/dag"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// RunView is the JSON representation of a run.
type RunView struct {
	ID            string         `json:"id"`
	Status        core.RunStatus `json:"status"`
	ManifestURI   string         `json:"manifestUri"`
	ManifestHash  string         `json:"manifestHash,omitempty"`
	SchemaVersion string         `json:"schemaVersion,omitempty"`
	StartedAt     time.Time      `json:"startedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	DurationMS    int64          `json:"durationMs,omitempty"`
	Warnings      int            `json:"warnings"`
	Error         *string        `json:"error,omitempty"`
}

// NewRunView converts a run.
func NewRunView(run *core.Run) RunView {
	v := RunView{
		ID:            run.ID,
		Status:        run.Status,
		ManifestURI:   run.ManifestURI,
		ManifestHash:  run.ManifestHash,
		SchemaVersion: run.SchemaVersion,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		DurationMS:    Elapsed(run).Milliseconds(),
		Warnings:      run.Warnings,
	}
	if run.Error != "" {
		v.Error = &run.Error
	}
	return v
}

// EntityView is the JSON summary of a stored entity.
type EntityView struct {
	ID   core.EntityID   `json:"id"`
	Type core.EntityType `json:"type"`
	Name string          `json:"name"`
}

// NewEntityViews converts records, keeping those of type typ (all when empty).
func NewEntityViews(records []*core.EntityRecord, typ core.EntityType) []EntityView {
	out := make([]EntityView, 0, len(records))
	for _, rec := range records {
		if typ != "" && rec.Type != typ {
			continue
		}
		out = append(out, EntityView{ID: rec.ID, Type: rec.Type, Name: rec.Name})
	}
	return out
}

// LineageView is the JSON representation of an entity's lineage.
type LineageView struct {
	Root       EntityView         `json:"root"`
	Upstream   []EntityView       `json:"upstream"`
	Downstream []EntityView       `json:"downstream"`
	Edges      []core.LineageEdge `json:"edges"`
}

// Direction selects which side of an entity's lineage to walk.
type Direction string

// Lineage directions.
const (
	DirectionBoth       Direction = "both"
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
)

// NewLineageView walks the lineage of root up to depth hops (unlimited when
// depth <= 0). Edges are those among the visited entities.
func NewLineageView(g *dag.Graph, root *dag.Node, dir Direction, depth int) LineageView {
	v := LineageView{
		Root:       nodeView(root),
		Upstream:   []EntityView{},
		Downstream: []EntityView{},
	}
	ids := []core.EntityID{root.ID}
	if dir != DirectionDownstream {
		up := g.Upstream(root.ID, depth)
		v.Upstream = nodeViews(g, up)
		ids = append(ids, up...)
	}
	if dir != DirectionUpstream {
		down := g.Downstream(root.ID, depth)
		v.Downstream = nodeViews(g, down)
		ids = append(ids, down...)
	}
	v.Edges = g.Subgraph(ids).Edges()
	if v.Edges == nil {
		v.Edges = []core.LineageEdge{}
	}
	return v
}

func nodeView(n *dag.Node) EntityView {
	return EntityView{ID: n.ID, Type: n.Type(), Name: n.Name}
}

func nodeViews(g *dag.Graph, ids []core.EntityID) []EntityView {
	out := make([]EntityView, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			out = append(out, nodeView(n))
		}
	}
	return out
}
