package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"why/internal/analyzer"
	whyerrors "why/internal/errors"
	"why/internal/export"
	"why/internal/graph"
	"why/internal/storage"
	"why/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// parseOutputFormat validates a --format value for terminal output.
func parseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatHuman, "":
		return FormatHuman, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want human or json)", s)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatAnalysisHuman renders the analysis table. showGraph adds the
// dependency edges and cycles.
func formatAnalysisHuman(view *analyzer.Analysis, rows []analyzer.Row, edges []graph.Edge, showGraph bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "why v%s\n", version.Version)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Manifest: %s\n", view.ManifestPath)

	used := 0
	for _, r := range view.Rows {
		if r.Used {
			used++
		}
	}
	fmt.Fprintf(&b, "Dependencies: %d (used %d, removable %d)\n\n", len(view.Rows), used, len(view.Removable))

	if len(rows) == 0 {
		b.WriteString("No dependencies match.\n")
	} else {
		width := len("NAME")
		for _, r := range rows {
			width = max(width, len(r.Name))
		}
		fmt.Fprintf(&b, "%-*s  %-11s  %5s  %5s  %6s  %s\n", width, "NAME", "CLASS", "FILES", "SITES", "SCORE", "STATUS")
		for _, r := range rows {
			fmt.Fprintf(&b, "%-*s  %-11s  %5d  %5d  %6s  %s\n",
				width, r.Name, r.Class, r.FileCount, r.SiteCount, export.FormatScore(r.ImportanceScore), statusLabel(r))
		}
	}

	for _, r := range rows {
		if len(r.UnusedFeatures) > 0 {
			fmt.Fprintf(&b, "\n%s: unused features %s\n", r.Name, strings.Join(r.UnusedFeatures, ", "))
		}
	}

	// Sites are only present when the run was narrowed to one dependency
	for _, r := range rows {
		if len(r.Sites) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nUsage of %s:\n", r.Name)
		for _, s := range r.Sites {
			fmt.Fprintf(&b, "  %s:%d  %-16s  %s\n", s.File, s.Line, s.Kind, s.Symbol)
		}
	}

	if len(view.Removable) > 0 {
		b.WriteString("\nRemoval candidates:\n")
		for _, name := range view.Removable {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}

	if showGraph {
		b.WriteString("\nDependency graph:\n")
		if len(edges) == 0 {
			b.WriteString("  (no edges between declared dependencies)\n")
		}
		for _, e := range edges {
			fmt.Fprintf(&b, "  %s -> %s\n", e.From, e.To)
		}
	}
	if showGraph || len(view.Cycles) > 0 {
		b.WriteString(formatCycles(view.Cycles))
	}

	if len(view.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range view.Warnings {
			if w.File != "" {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", w.Code, w.File, w.Message)
			} else {
				fmt.Fprintf(&b, "  [%s] %s\n", w.Code, w.Message)
			}
		}
	}

	return b.String()
}

func formatCycles(cycles [][]string) string {
	if len(cycles) == 0 {
		return "\nCycles: none\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nCycles (%d):\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(&b, "  %s -> %s\n", strings.Join(c, " -> "), c[0])
	}
	return b.String()
}

// statusLabel summarizes a row's flags.
func statusLabel(r analyzer.Row) string {
	var parts []string
	if r.Used {
		parts = append(parts, "used")
	} else {
		parts = append(parts, "unused")
	}
	if r.PartiallyUsed {
		parts = append(parts, "partial")
	}
	if r.Removable {
		parts = append(parts, "removable")
	}
	if r.Optional {
		parts = append(parts, "optional")
	}
	return strings.Join(parts, ", ")
}

// formatRelatedHuman renders a --related ranking.
func formatRelatedHuman(seed string, results []graph.PPRResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dependencies related to %s:\n", seed)
	if len(results) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	for i, r := range results {
		fmt.Fprintf(&b, "  %2d. %-30s %.4f", i+1, r.Name, r.Score)
		if len(r.Path) > 1 {
			fmt.Fprintf(&b, "  via %s", strings.Join(r.Path, " - "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatHistoryHuman renders recorded runs, newest first.
func formatHistoryHuman(runs []storage.RunRecord) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s  %-8s  %4s  %4s  %9s  %6s  %8s\n", "STARTED", "RUN", "DEPS", "USED", "REMOVABLE", "CYCLES", "DURATION")
	for _, r := range runs {
		id := r.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, "%-20s  %-8s  %4d  %4d  %9d  %6d  %6dms\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), id,
			r.Dependencies, r.Used, r.Removable, r.Cycles, r.DurationMs)
	}
	return b.String()
}

// printError writes a fatal error followed by the suggested fixes for its
// code. WhyError messages already carry the code.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var we *whyerrors.WhyError
	if !errors.As(err, &we) || len(we.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(w, "Suggested fixes:")
	for _, fix := range we.SuggestedFixes {
		switch {
		case fix.Command != "":
			fmt.Fprintf(w, "  $ %s  # %s\n", fix.Command, fix.Description)
		case fix.Path != "":
			fmt.Fprintf(w, "  edit %s: %s\n", fix.Path, fix.Description)
		default:
			fmt.Fprintf(w, "  %s\n", fix.Description)
		}
	}
}
