package main

import (
	"github.com/spf13/cobra"

	"why/internal/version"
)

var (
	// configFlag is the global --config flag value
	configFlag string

	// verbosity counts -v flags
	verbosity int
	quietFlag bool

	// pathFlag is shared by every command that analyzes a project
	pathFlag string
)

var rootCmd = &cobra.Command{
	Use:   "why",
	Short: "why - explain why each dependency is in your project",
	Long: `why analyzes a project's declared dependencies (Cargo.toml or package.json),
finds where each one is used in the source tree, scores how important it is,
and flags the ones that look safe to remove.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("why version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Path to the configuration file (default: <project>/.why.toml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress all log output")
}

// addPathFlag registers --path on a command.
func addPathFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "",
		"Path to the project directory (default: current directory)")
}
