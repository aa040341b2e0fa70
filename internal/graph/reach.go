package graph

import "sort"

// HasPath reports whether to is reachable from from along directed edges.
// Every node reaches itself; unknown nodes reach nothing.
func (g *Graph) HasPath(from, to string) bool {
	src, ok := g.nodeIdx[from]
	if !ok {
		return false
	}
	dst, ok := g.nodeIdx[to]
	if !ok {
		return false
	}
	if src == dst {
		return true
	}

	seen := make([]bool, len(g.nodes))
	seen[src] = true
	queue := []int{src}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.outEdges[v] {
			if w == dst {
				return true
			}
			if !seen[w] {
				seen[w] = true
				queue = append(queue, w)
			}
		}
	}
	return false
}

// Reachable returns the nodes reachable from id through at least one edge,
// sorted by name. id itself is included only when it lies on a cycle.
func (g *Graph) Reachable(id string) []string {
	src, ok := g.nodeIdx[id]
	if !ok {
		return nil
	}

	seen := make([]bool, len(g.nodes))
	queue := append([]int(nil), g.outEdges[src]...)
	for _, w := range queue {
		seen[w] = true
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.outEdges[v] {
			if !seen[w] {
				seen[w] = true
				queue = append(queue, w)
			}
		}
	}

	out := []string{}
	for i, s := range seen {
		if s {
			out = append(out, g.nodes[i])
		}
	}
	sort.Strings(out)
	return out
}

// Transitive maps every node to its sorted reachable set.
func (g *Graph) Transitive() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		out[n] = g.Reachable(n)
	}
	return out
}
