// Package dag is the entity lineage graph. Nodes are catalog entities;
// an edge runs from an upstream entity to the entity that reads it.
// It supports upstream and downstream traversal, cycle detection and
// topological ordering.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Node is an entity in the graph.
type Node struct {
	ID core.EntityID
	// Name is the entity's logical name; empty for entities only known
	// through an edge
	Name string
}

// Type returns the entity type encoded in the ID.
func (n *Node) Type() core.EntityType {
	return n.ID.Type()
}

type edgeKey struct {
	from, to core.EntityID
}

// Graph is a directed lineage graph. It may contain cycles; HasCycle
// reports them.
type Graph struct {
	nodes    map[core.EntityID]*Node
	children map[core.EntityID][]core.EntityID
	parents  map[core.EntityID][]core.EntityID
	kinds    map[edgeKey]core.EdgeKind
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[core.EntityID]*Node),
		children: make(map[core.EntityID][]core.EntityID),
		parents:  make(map[core.EntityID][]core.EntityID),
		kinds:    make(map[edgeKey]core.EdgeKind),
	}
}

// FromEdges builds a graph from named nodes and edges. Edge endpoints
// missing from nodes are added unnamed.
func FromEdges(nodes []Node, edges []core.LineageEdge) *Graph {
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n.ID, n.Name)
	}
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// AddNode adds a node, or names an existing one.
func (g *Graph) AddNode(id core.EntityID, name string) {
	if n, exists := g.nodes[id]; exists {
		if name != "" {
			n.Name = name
		}
		return
	}
	g.nodes[id] = &Node{ID: id, Name: name}
}

// AddEdge adds e, creating its endpoints when needed. Duplicate edges are
// ignored; the first kind wins. Self-loops are kept so HasCycle can report them.
func (g *Graph) AddEdge(e core.LineageEdge) {
	g.AddNode(e.From, "")
	g.AddNode(e.To, "")
	key := edgeKey{e.From, e.To}
	if _, exists := g.kinds[key]; exists {
		return
	}
	g.kinds[key] = e.Kind
	g.children[e.From] = append(g.children[e.From], e.To)
	g.parents[e.To] = append(g.parents[e.To], e.From)
}

// Node returns a node by ID.
func (g *Graph) Node(id core.EntityID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct upstreams of id.
func (g *Graph) Parents(id core.EntityID) []core.EntityID {
	return g.parents[id]
}

// Children returns the direct downstreams of id.
func (g *Graph) Children(id core.EntityID) []core.EntityID {
	return g.children[id]
}

// Kind returns the kind of the edge from -> to.
func (g *Graph) Kind(from, to core.EntityID) (core.EdgeKind, bool) {
	k, ok := g.kinds[edgeKey{from, to}]
	return k, ok
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges ordered by source, then target.
func (g *Graph) Edges() []core.LineageEdge {
	edges := make([]core.LineageEdge, 0, len(g.kinds))
	for k, kind := range g.kinds {
		edges = append(edges, core.LineageEdge{From: k.from, To: k.to, Kind: kind})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.kinds)
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []core.EntityID) {
	visited := make(map[core.EntityID]bool)
	onStack := make(map[core.EntityID]bool)
	via := make(map[core.EntityID]core.EntityID)

	var cycle []core.EntityID
	var dfs func(id core.EntityID) bool
	dfs = func(id core.EntityID) bool {
		visited[id] = true
		onStack[id] = true
		for _, child := range g.children[id] {
			if !visited[child] {
				via[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				cycle = []core.EntityID{child}
				for curr := id; curr != child; curr = via[curr] {
					cycle = append([]core.EntityID{curr}, cycle...)
				}
				cycle = append([]core.EntityID{child}, cycle...)
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for _, n := range g.Nodes() {
		if !visited[n.ID] && dfs(n.ID) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns nodes upstream-first.
// Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if hasCycle, cycle := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	visited := make(map[core.EntityID]bool)
	var result []*Node
	var visit func(id core.EntityID)
	visit = func(id core.EntityID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.parents[id] {
			visit(parent)
		}
		result = append(result, g.nodes[id])
	}
	for _, n := range g.Nodes() {
		visit(n.ID)
	}
	return result, nil
}

// Upstream returns the entities id reads from, transitively, up to depth
// hops. A depth of zero or less means unlimited.
func (g *Graph) Upstream(id core.EntityID, depth int) []core.EntityID {
	return g.walk(id, depth, g.parents)
}

// Downstream returns the entities reading id, transitively, up to depth
// hops. A depth of zero or less means unlimited.
func (g *Graph) Downstream(id core.EntityID, depth int) []core.EntityID {
	return g.walk(id, depth, g.children)
}

func (g *Graph) walk(start core.EntityID, depth int, next map[core.EntityID][]core.EntityID) []core.EntityID {
	seen := map[core.EntityID]bool{start: true}
	frontier := []core.EntityID{start}
	var result []core.EntityID
	for hop := 1; len(frontier) > 0 && (depth <= 0 || hop <= depth); hop++ {
		var following []core.EntityID
		for _, id := range frontier {
			for _, n := range next[id] {
				if seen[n] {
					continue
				}
				seen[n] = true
				result = append(result, n)
				following = append(following, n)
			}
		}
		frontier = following
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Roots returns entities with no upstream.
func (g *Graph) Roots() []core.EntityID {
	var roots []core.EntityID
	for _, n := range g.Nodes() {
		if len(g.parents[n.ID]) == 0 {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Leaves returns entities nothing reads from.
func (g *Graph) Leaves() []core.EntityID {
	var leaves []core.EntityID
	for _, n := range g.Nodes() {
		if len(g.children[n.ID]) == 0 {
			leaves = append(leaves, n.ID)
		}
	}
	return leaves
}

// Subgraph returns a new graph containing only ids and the edges between them.
func (g *Graph) Subgraph(ids []core.EntityID) *Graph {
	sub := NewGraph()
	keep := make(map[core.EntityID]bool, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			keep[id] = true
			sub.AddNode(id, n.Name)
		}
	}
	for k, kind := range g.kinds {
		if keep[k.from] && keep[k.to] {
			sub.AddEdge(core.LineageEdge{From: k.from, To: k.to, Kind: kind})
		}
	}
	return sub
}

// Neighborhood returns the subgraph of id with its upstream and downstream
// entities up to depth hops.
func (g *Graph) Neighborhood(id core.EntityID, depth int) *Graph {
	ids := append([]core.EntityID{id}, g.Upstream(id, depth)...)
	ids = append(ids, g.Downstream(id, depth)...)
	return g.Subgraph(ids)
}
