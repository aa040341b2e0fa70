package graph

import (
	"context"
	"fmt"
	"sort"
)

// PPROptions configures Personalized PageRank computation.
type PPROptions struct {
	// Damping is the probability of following an edge vs teleporting (default: 0.85)
	Damping float64

	// MaxIterations is the maximum number of power iterations (default: 20)
	MaxIterations int

	// Tolerance for convergence detection (default: 1e-6)
	Tolerance float64

	// TopK is the number of top results to return (default: 20)
	TopK int

	// Undirected follows edges both ways, so dependents rank as well as
	// dependencies
	Undirected bool

	// IncludePaths enables backtracking to explain why nodes were reached
	IncludePaths bool
}

// DefaultPPROptions returns sensible defaults for PPR.
func DefaultPPROptions() PPROptions {
	return PPROptions{
		Damping:       0.85,
		MaxIterations: 20,
		Tolerance:     1e-6,
		TopK:          20,
		IncludePaths:  true,
	}
}

// PPRResult represents a ranked node from PPR computation.
type PPRResult struct {
	Name  string   `json:"name"`
	Score float64  `json:"score"`
	Path  []string `json:"path,omitempty"` // Path from seed to this node
}

// PPROutput contains the full PPR computation result.
type PPROutput struct {
	Results    []PPRResult `json:"results"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
	SeedNodes  []string    `json:"seedNodes"`
	TotalNodes int         `json:"totalNodes"`
	TotalEdges int         `json:"totalEdges"`
}

// PPR computes Personalized PageRank with the given seed nodes. Seeds that
// are not nodes are ignored. Ties are broken by name.
func (g *Graph) PPR(ctx context.Context, seeds []string, opts PPROptions) (*PPROutput, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed nodes provided")
	}

	// Apply defaults
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = 0.85
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.TopK <= 0 {
		opts.TopK = 20
	}

	n := len(g.nodes)
	seedIndices := make([]int, 0, len(seeds))
	validSeeds := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if idx, ok := g.nodeIdx[s]; ok {
			seedIndices = append(seedIndices, idx)
			validSeeds = append(validSeeds, s)
		}
	}

	if len(seedIndices) == 0 {
		return &PPROutput{
			Results:    []PPRResult{},
			SeedNodes:  validSeeds,
			TotalNodes: n,
			TotalEdges: g.numEdges,
		}, nil
	}

	adj := g.outEdges
	if opts.Undirected {
		adj = make([][]int, n)
		for i := range adj {
			adj[i] = append(append([]int(nil), g.outEdges[i]...), g.inEdges[i]...)
		}
	}

	// Initialize teleport vector (uniform over seeds)
	teleport := make([]float64, n)
	teleportWeight := 1.0 / float64(len(seedIndices))
	for _, idx := range seedIndices {
		teleport[idx] = teleportWeight
	}

	scores := make([]float64, n)
	copy(scores, teleport)
	newScores := make([]float64, n)

	var iterations int
	var converged bool

	for iter := range opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter + 1

		for i := range newScores {
			newScores[i] = 0
		}

		// Propagate scores along edges
		for i, targets := range adj {
			if len(targets) == 0 {
				continue
			}
			contrib := scores[i] / float64(len(targets))
			for _, t := range targets {
				newScores[t] += contrib
			}
		}

		// Apply damping and teleport
		maxDiff := 0.0
		for i := range newScores {
			newScores[i] = opts.Damping*newScores[i] + (1-opts.Damping)*teleport[i]
			if diff := abs(newScores[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, newScores = newScores, scores

		if maxDiff < opts.Tolerance {
			converged = true
			break
		}
	}

	type scoredNode struct {
		idx   int
		score float64
	}
	ranked := make([]scoredNode, 0, n)
	for i, s := range scores {
		if s > 0 {
			ranked = append(ranked, scoredNode{idx: i, score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return g.nodes[ranked[i].idx] < g.nodes[ranked[j].idx]
	})
	if len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	seedSet := make(map[int]bool, len(seedIndices))
	for _, idx := range seedIndices {
		seedSet[idx] = true
	}

	results := make([]PPRResult, len(ranked))
	for i, sn := range ranked {
		result := PPRResult{Name: g.nodes[sn.idx], Score: sn.score}
		if opts.IncludePaths && !seedSet[sn.idx] {
			result.Path = g.backtrackPath(sn.idx, seedSet, 5, opts.Undirected)
		}
		results[i] = result
	}

	return &PPROutput{
		Results:    results,
		Iterations: iterations,
		Converged:  converged,
		SeedNodes:  validSeeds,
		TotalNodes: n,
		TotalEdges: g.numEdges,
	}, nil
}

// Related ranks the dependencies most tied to seed, following edges in both
// directions. The seed itself is left out. An unknown seed is an error.
func (g *Graph) Related(ctx context.Context, seed string, topK int) ([]PPRResult, error) {
	if !g.HasNode(seed) {
		return nil, fmt.Errorf("unknown dependency %q", seed)
	}

	opts := DefaultPPROptions()
	opts.Undirected = true
	opts.TopK = topK + 1

	out, err := g.PPR(ctx, []string{seed}, opts)
	if err != nil {
		return nil, err
	}

	related := make([]PPRResult, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Name != seed {
			related = append(related, r)
		}
	}
	if topK > 0 && len(related) > topK {
		related = related[:topK]
	}
	return related, nil
}

// backtrackPath finds a path from the target back to any seed node,
// following the first unvisited predecessor at each step.
func (g *Graph) backtrackPath(target int, seedSet map[int]bool, maxDepth int, undirected bool) []string {
	path := []string{g.nodes[target]}
	current := target
	visited := map[int]bool{target: true}

	for depth := 0; depth < maxDepth; depth++ {
		prev := g.inEdges[current]
		if undirected {
			prev = append(append([]int(nil), prev...), g.outEdges[current]...)
		}

		bestPrev := -1
		for _, p := range prev {
			if visited[p] {
				continue
			}
			if seedSet[p] {
				bestPrev = p
				break
			}
			if bestPrev < 0 {
				bestPrev = p
			}
		}
		if bestPrev < 0 {
			break
		}

		path = append(path, g.nodes[bestPrev])
		visited[bestPrev] = true
		if seedSet[bestPrev] {
			break
		}
		current = bestPrev
	}

	// Reverse path to go from seed to target
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
