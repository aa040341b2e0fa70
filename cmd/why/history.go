package main

import (
	"fmt"

	"github.com/spf13/cobra"

	whyerrors "why/internal/errors"
	"why/internal/paths"
	"why/internal/storage"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	Long: `List the analysis runs recorded in the project's cache database,
newest first. Runs are only recorded while the cache is enabled.

Examples:
  why history
  why history --limit 5 --format json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	addPathFlag(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "human", "Output format (human, json)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(historyFormat)
	if err != nil {
		return err
	}

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	path := paths.ResolveInProject(s.root, s.cfg.Cache.Path)
	db, err := storage.Open(path, s.logger)
	if err != nil {
		return whyerrors.New(whyerrors.CacheUnavailable, "cannot open "+path, err)
	}
	defer db.Close()

	ctx, cancel := newContext()
	defer cancel()

	runs, err := db.RecentRuns(ctx, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		if runs == nil {
			runs = []storage.RunRecord{}
		}
		text, err := formatJSON(runs)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}
	fmt.Fprint(out, formatHistoryHuman(runs))
	return nil
}
