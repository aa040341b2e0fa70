package main

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"why/internal/config"
	whyerrors "why/internal/errors"
	"why/internal/paths"
)

var (
	configOutput string
	configForce  bool
	configShow   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or show the why configuration",
	Long: `Write a default .why.toml, or print the effective configuration.

Examples:
  why config                        # write ./.why.toml
  why config --output ci/why.toml
  why config --show                 # effective config, env overrides applied`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	addPathFlag(configCmd)
	configCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Where to write the file (default: ./"+config.FileName+")")
	configCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Print the effective configuration instead of writing one")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if configShow {
		start := pathFlag
		if start == "" {
			start = "."
		}
		root, err := paths.ResolveProjectRoot(start)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(root)
		if err != nil {
			return err
		}
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	path := configOutput
	if path == "" {
		path = config.FileName
		if pathFlag != "" {
			path = filepath.Join(pathFlag, config.FileName)
		}
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return whyerrors.New(whyerrors.ConfigInvalid, path+" already exists (use --force to overwrite)", nil)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Wrote default configuration to %s\n", path)
	return nil
}
