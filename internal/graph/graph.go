// Package graph models "depends-on" relationships between declared
// dependencies: cycle detection, reachability and ranking.
//
// The node set is fixed at construction to exactly the declared names.
// Edges are optional; without a lock file the graph is node-only, which is a
// valid state, not an error.
package graph

import (
	"fmt"
)

// Edge is a directed "depends-on" edge.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a sparse directed graph over dependency names.
type Graph struct {
	// Node IDs (for index lookup), in declaration order
	nodes   []string
	nodeIdx map[string]int

	// Adjacency lists in edge insertion order
	outEdges [][]int
	inEdges  [][]int // Reverse edges for path backtracking

	numEdges int
}

// New creates a graph whose node set is names. Duplicate names collapse to
// one node.
func New(names []string) *Graph {
	g := &Graph{
		nodes:   make([]string, 0, len(names)),
		nodeIdx: make(map[string]int, len(names)),
	}
	for _, n := range names {
		if _, ok := g.nodeIdx[n]; ok {
			continue
		}
		g.nodeIdx[n] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	g.outEdges = make([][]int, len(g.nodes))
	g.inEdges = make([][]int, len(g.nodes))
	return g
}

// AddEdge adds a directed edge from -> to. Both ends must already be nodes;
// the node set never grows. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	src, ok := g.nodeIdx[from]
	if !ok {
		return fmt.Errorf("unknown dependency %q", from)
	}
	dst, ok := g.nodeIdx[to]
	if !ok {
		return fmt.Errorf("unknown dependency %q", to)
	}

	for _, t := range g.outEdges[src] {
		if t == dst {
			return nil
		}
	}

	g.outEdges[src] = append(g.outEdges[src], dst)
	g.inEdges[dst] = append(g.inEdges[dst], src)
	g.numEdges++
	return nil
}

// AddEdges adds multiple edges, stopping at the first unknown node.
func (g *Graph) AddEdges(edges []Edge) error {
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the node names in declaration order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every edge, grouped by source in node order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.numEdges)
	for src, targets := range g.outEdges {
		for _, dst := range targets {
			out = append(out, Edge{From: g.nodes[src], To: g.nodes[dst]})
		}
	}
	return out
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the total number of edges.
func (g *Graph) NumEdges() int {
	return g.numEdges
}

// HasNode checks if a node exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeIdx[id]
	return ok
}

// Neighbors returns the outgoing neighbors of a node.
func (g *Graph) Neighbors(id string) []string {
	idx, ok := g.nodeIdx[id]
	if !ok {
		return nil
	}
	out := make([]string, len(g.outEdges[idx]))
	for i, t := range g.outEdges[idx] {
		out[i] = g.nodes[t]
	}
	return out
}

// Dependents returns the nodes with an edge into id.
func (g *Graph) Dependents(id string) []string {
	idx, ok := g.nodeIdx[id]
	if !ok {
		return nil
	}
	out := make([]string, len(g.inEdges[idx]))
	for i, s := range g.inEdges[idx] {
		out[i] = g.nodes[s]
	}
	return out
}

// Stats summarizes the graph.
type Stats struct {
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
	Cycles int `json:"cycles"`
}

// Stats returns graph statistics.
func (g *Graph) Stats() Stats {
	return Stats{Nodes: g.NumNodes(), Edges: g.NumEdges(), Cycles: len(g.Cycles())}
}
