package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"why/internal/analyzer"
	"why/internal/export"
)

var (
	exportOutput  string
	exportFormat  string
	exportDep     string
	exportSort    string
	exportFilter  string
	exportNoCache bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dependency analysis to a file",
	Long: `Export the dependency analysis as JSON, CSV or YAML.

The format is taken from --format, then from the output file extension,
then from export.defaultFormat in the configuration. Relative output paths
are resolved against export.outputDir.

Examples:
  why export --output deps.json
  why export --output deps.csv --filter removable
  why export --output report --format yaml --dep serde`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	addPathFlag(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (required)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format (json, csv, yaml)")
	exportCmd.Flags().StringVarP(&exportDep, "dep", "d", "", "Export only this dependency, with its usage sites")
	exportCmd.Flags().StringVar(&exportSort, "sort", "", "Sort rows by name, usage, importance, class or removable")
	exportCmd.Flags().StringVar(&exportFilter, "filter", "all", "Export all, runtime, dev, build, unused or removable rows")
	exportCmd.Flags().BoolVar(&exportNoCache, "no-cache", false, "Do not read or write the scan cache")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	opts := export.Options{}
	var err error
	if opts.Filter, err = analyzer.ParseFilter(exportFilter); err != nil {
		return err
	}
	if exportSort != "" {
		if opts.Sort, err = analyzer.ParseSortBy(exportSort); err != nil {
			return err
		}
	}

	s, err := newSession(!exportNoCache)
	if err != nil {
		return err
	}
	defer s.Close()

	opts.Format, err = resolveExportFormat(exportFormat, exportOutput, s.cfg.Export.DefaultFormat)
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	res, err := s.analyze(ctx, exportDep)
	if err != nil {
		return err
	}

	path := exportOutput
	if !filepath.IsAbs(path) && s.cfg.Export.OutputDir != "" {
		path = filepath.Join(s.cfg.Export.OutputDir, path)
	}

	view := res.View()
	if err := export.NewExporter(s.logger).WriteFile(path, view, opts); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d dependencies to %s (%s)\n", len(view.Rows), path, opts.Format)
	return nil
}

// resolveExportFormat applies flag, then extension, then configured default.
func resolveExportFormat(flag, output, configured string) (export.Format, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if f, ok := export.DetectFormat(output); ok {
		return f, nil
	}
	return export.ParseFormat(configured)
}
