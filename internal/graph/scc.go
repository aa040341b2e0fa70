package graph

// tarjan holds the state of one strongly-connected-components pass.
type tarjan struct {
	g       *Graph
	index   []int // discovery index, -1 when unvisited
	low     []int
	onStack []bool
	stack   []int
	next    int
	comps   [][]int
}

// StronglyConnected returns every strongly connected component, in the order
// Tarjan's algorithm completes them. Nodes within a component are in
// discovery order. Roots are tried in declaration order and neighbors in
// edge insertion order, so the result is deterministic.
func (g *Graph) StronglyConnected() [][]string {
	n := len(g.nodes)
	t := &tarjan{
		g:       g,
		index:   make([]int, n),
		low:     make([]int, n),
		onStack: make([]bool, n),
	}
	for i := range t.index {
		t.index[i] = -1
	}

	for v := 0; v < n; v++ {
		if t.index[v] < 0 {
			t.connect(v)
		}
	}

	out := make([][]string, len(t.comps))
	for i, comp := range t.comps {
		names := make([]string, len(comp))
		for j, v := range comp {
			names[j] = g.nodes[v]
		}
		out[i] = names
	}
	return out
}

func (t *tarjan) connect(v int) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.outEdges[v] {
		if t.index[w] < 0 {
			t.connect(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}

	// v is a root: everything above it on the stack is its component.
	// The stack holds nodes in discovery order, so the slice already is.
	i := len(t.stack) - 1
	for t.stack[i] != v {
		i--
	}
	comp := make([]int, len(t.stack)-i)
	copy(comp, t.stack[i:])
	for _, w := range comp {
		t.onStack[w] = false
	}
	t.stack = t.stack[:i]
	t.comps = append(t.comps, comp)
}

// Cycles returns the circular-dependency groups: components with more than
// one node. A self-loop alone is not a group.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, comp := range g.StronglyConnected() {
		if len(comp) > 1 {
			out = append(out, comp)
		}
	}
	return out
}
