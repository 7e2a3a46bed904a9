package engine

import (
	"fmt"

	"github.com/leapstack-labs/leapmeta/internal/dag"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// LoadGraph builds the lineage graph of a stored run. Nodes carry the
// entity names recorded for the run.
func LoadGraph(store core.Store, runID string) (*dag.Graph, error) {
	records, err := store.ListEntities(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	edges, err := store.ListEdges(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	nodes := make([]dag.Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, dag.Node{ID: rec.ID, Name: rec.Name})
	}
	return dag.FromEdges(nodes, edges), nil
}

// FindEntity resolves ref to an entity of the graph. ref is either an
// entity ID or an entity name; a name must be unambiguous.
func FindEntity(g *dag.Graph, ref string) (*dag.Node, error) {
	if n, ok := g.Node(core.EntityID(ref)); ok {
		return n, nil
	}
	var matches []*dag.Node
	for _, n := range g.Nodes() {
		if n.Name == ref {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("entity %w: %s", core.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("entity name %s is ambiguous (%d matches); use an entity ID", ref, len(matches))
	}
}
