package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"why/internal/analyzer"
	"why/internal/graph"
)

var (
	analyzeDep     string
	analyzeDeps    bool
	analyzeSort    string
	analyzeFilter  string
	analyzeFormat  string
	analyzeNoCache bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze how the project's dependencies are used",
	Long: `Analyze the project's declared dependencies.

Finds every usage site of each dependency, computes an importance score
and lists removal candidates.

Examples:
  why analyze
  why analyze --path ./crates/app --sort importance
  why analyze --dep serde
  why analyze --filter removable --format json
  why analyze --deps`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	addPathFlag(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeDep, "dep", "d", "", "Show only this dependency, with its usage sites")
	analyzeCmd.Flags().BoolVar(&analyzeDeps, "deps", false, "Include the dependency graph and cycles")
	analyzeCmd.Flags().StringVar(&analyzeSort, "sort", "", "Sort rows by name, usage, importance, class or removable (default: manifest order)")
	analyzeCmd.Flags().StringVar(&analyzeFilter, "filter", "all", "Show all, runtime, dev, build, unused or removable rows")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "human", "Output format (human, json)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Do not read or write the scan cache")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeResponse is the JSON output of analyze.
type analyzeResponse struct {
	*analyzer.Analysis
	Edges []graph.Edge `json:"edges,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(analyzeFormat)
	if err != nil {
		return err
	}
	filter, err := analyzer.ParseFilter(analyzeFilter)
	if err != nil {
		return err
	}
	var sortBy analyzer.SortBy
	if analyzeSort != "" {
		if sortBy, err = analyzer.ParseSortBy(analyzeSort); err != nil {
			return err
		}
	}

	s, err := newSession(!analyzeNoCache)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext()
	defer cancel()

	res, err := s.analyze(ctx, analyzeDep)
	if err != nil {
		return err
	}

	view := res.View()
	view.Rows = analyzer.FilterRows(view.Rows, filter)
	if sortBy != "" {
		analyzer.SortRows(view.Rows, sortBy)
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		resp := analyzeResponse{Analysis: view}
		if analyzeDeps {
			resp.Edges = res.Edges
		}
		text, err := formatJSON(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	// Header counts cover every row; the table shows the selection
	full := res.View()
	fmt.Fprint(out, formatAnalysisHuman(full, view.Rows, res.Edges, analyzeDeps))
	return nil
}
