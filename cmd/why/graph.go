package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"why/internal/analyzer"
	"why/internal/graph"
)

var (
	graphDot     string
	graphRelated string
	graphTop     int
	graphFormat  string
	graphNoCache bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the dependency graph, its cycles and related dependencies",
	Long: `Show the graph of declared dependencies built from the lock file.

Without flags, prints the edges and every dependency cycle. --dot writes the
graph in Graphviz format ("-" for stdout); removal candidates are drawn red
and cycle members orange. --related ranks the dependencies most closely tied
to one dependency by personalized PageRank.

Examples:
  why graph
  why graph --dot deps.dot
  why graph --dot - | dot -Tsvg > deps.svg
  why graph --related tokio --top 5`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	addPathFlag(graphCmd)
	graphCmd.Flags().StringVar(&graphDot, "dot", "", "Write Graphviz DOT to this file (\"-\" for stdout)")
	graphCmd.Flags().StringVar(&graphRelated, "related", "", "Rank dependencies related to this one")
	graphCmd.Flags().IntVar(&graphTop, "top", 10, "Number of related dependencies to show")
	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "human", "Output format (human, json)")
	graphCmd.Flags().BoolVar(&graphNoCache, "no-cache", false, "Do not read or write the scan cache")
	rootCmd.AddCommand(graphCmd)
}

// graphResponse is the JSON output of graph.
type graphResponse struct {
	Nodes   []string          `json:"nodes"`
	Edges   []graph.Edge      `json:"edges"`
	Cycles  [][]string        `json:"cycles"`
	Related []graph.PPRResult `json:"related,omitempty"`
}

func runGraph(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(graphFormat)
	if err != nil {
		return err
	}

	s, err := newSession(!graphNoCache)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext()
	defer cancel()

	res, err := s.analyze(ctx, "")
	if err != nil {
		return err
	}
	g := res.Graph
	out := cmd.OutOrStdout()

	if graphDot != "" {
		style := dotStyle(res)
		if graphDot == "-" {
			return g.WriteDOT(out, style)
		}
		f, err := os.Create(graphDot)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", graphDot, err)
		}
		if err := g.WriteDOT(f, style); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d nodes and %d edges to %s\n", g.NumNodes(), g.NumEdges(), graphDot)
		return nil
	}

	var related []graph.PPRResult
	if graphRelated != "" {
		related, err = g.Related(ctx, graphRelated, graphTop)
		if err != nil {
			return err
		}
	}

	if format == FormatJSON {
		text, err := formatJSON(graphResponse{
			Nodes:   g.Nodes(),
			Edges:   res.Edges,
			Cycles:  res.Cycles,
			Related: related,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	if graphRelated != "" {
		fmt.Fprint(out, formatRelatedHuman(graphRelated, related))
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dependency graph: %d nodes, %d edges\n", g.NumNodes(), g.NumEdges())
	for _, e := range res.Edges {
		fmt.Fprintf(&b, "  %s -> %s\n", e.From, e.To)
	}
	b.WriteString(formatCycles(res.Cycles))
	fmt.Fprint(out, b.String())
	return nil
}

// dotStyle colors removal candidates red and cycle members orange.
func dotStyle(res *analyzer.AnalysisResult) graph.NodeStyle {
	inCycle := make(map[string]bool)
	for _, c := range res.Cycles {
		for _, n := range c {
			inCycle[n] = true
		}
	}
	return func(name string) string {
		switch {
		case res.Metrics.IsRemovable(name):
			return "color=red"
		case inCycle[name]:
			return "color=orange"
		default:
			return ""
		}
	}
}
