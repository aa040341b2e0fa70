package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"why/internal/analyzer"
	"why/internal/config"
	"why/internal/usage"
	"why/internal/watcher"
)

var (
	watchDep     string
	watchNoCache bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze whenever sources or the manifest change",
	Long: `Watch the project and re-run the analysis after source, manifest, lock
file or configuration changes. Events are debounced by watch.debounceMs.

Examples:
  why watch
  why watch --path ./crates/app --dep serde`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addPathFlag(watchCmd)
	watchCmd.Flags().StringVarP(&watchDep, "dep", "d", "", "Report only this dependency")
	watchCmd.Flags().BoolVar(&watchNoCache, "no-cache", false, "Do not read or write the scan cache")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(!watchNoCache)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext()
	defer cancel()

	out := cmd.OutOrStdout()
	res, err := s.analyze(ctx, watchDep)
	if err != nil {
		return err
	}
	printWatchSummary(out, res)

	w, err := watcher.New(s.root, watchConfig(s.cfg, res), s.logger, func(ctx context.Context, batch watcher.Batch) {
		for _, ev := range batch.Events {
			s.logger.Debug("Change", "type", ev.Type.String(), "path", ev.Path)
		}
		printWatchChanges(out, batch)
		res, err := s.analyze(ctx, watchDep)
		if err != nil {
			// Keep watching: the manifest may be mid-edit
			printError(cmd.ErrOrStderr(), err)
			return
		}
		printWatchSummary(out, res)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", s.root)
	return w.Run(ctx)
}

// watchConfig triggers on the profile's source extensions plus the manifest,
// lock and configuration files.
func watchConfig(cfg *config.Config, res *analyzer.AnalysisResult) watcher.Config {
	wc := watcher.DefaultConfig()
	wc.DebounceMs = cfg.Watch.DebounceMs
	wc.Extensions = usage.ProfileFor(res.ManifestKind).Extensions
	wc.Files = []string{
		filepath.Base(res.ManifestPath),
		res.ManifestKind.LockFileName(),
		config.FileName,
	}
	wc.IgnorePatterns = append(wc.IgnorePatterns, cfg.Analysis.ExcludePatterns...)
	return wc
}

// printWatchChanges names what triggered a re-run. A manifest change is
// called out since the dependency list itself may have moved.
func printWatchChanges(w io.Writer, batch watcher.Batch) {
	paths := batch.Paths()
	const shown = 3
	list := strings.Join(paths, ", ")
	if len(paths) > shown {
		list = fmt.Sprintf("%s and %d more", strings.Join(paths[:shown], ", "), len(paths)-shown)
	}
	if batch.ManifestChanged {
		fmt.Fprintf(w, "Manifest changed (%s), re-reading dependencies\n", list)
		return
	}
	fmt.Fprintf(w, "Changed: %s\n", list)
}

func printWatchSummary(w io.Writer, res *analyzer.AnalysisResult) {
	sum := res.Summary()
	fmt.Fprintf(w, "[%s] %d dependencies, %d used, %d removable, %d cycles, %d warnings (%s)\n",
		sum.StartedAt.Format("15:04:05"), sum.Dependencies, sum.Used, sum.Removable,
		sum.Cycles, sum.Warnings, sum.Duration.Round(time.Millisecond))

	if res.Dependency != "" {
		if row, ok := res.Row(res.Dependency); ok {
			fmt.Fprintf(w, "  %s: %d files, %d sites, score %.4f, %s\n",
				row.Name, row.FileCount, row.SiteCount, row.ImportanceScore, statusLabel(row))
		}
		return
	}
	for _, name := range res.Metrics.Removable {
		fmt.Fprintf(w, "  removable: %s\n", name)
	}
}
