package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"why/internal/analyzer"
	"why/internal/slogutil"
	"why/internal/version"
)

// csvHeader is the column order of CSV exports.
var csvHeader = []string{
	"name",
	"version",
	"class",
	"optional",
	"used",
	"file_count",
	"site_count",
	"importance_score",
	"removable",
	"partially_used",
	"used_features",
	"unused_features",
}

// Exporter turns an Analysis view into export documents.
type Exporter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(logger *slog.Logger) *Exporter {
	return &Exporter{
		logger: slogutil.OrDiscard(logger),
		now:    time.Now,
	}
}

// Build assembles the export document. Rows are filtered, then sorted when
// opts.Sort is set; otherwise manifest order is kept.
func (e *Exporter) Build(view *analyzer.Analysis, opts Options) *Document {
	rows := analyzer.FilterRows(view.Rows, opts.Filter)
	if opts.Sort != "" {
		analyzer.SortRows(rows, opts.Sort)
	}

	doc := &Document{
		Metadata: Metadata{
			Tool:         "why",
			Version:      version.Version,
			Timestamp:    e.now().UTC().Format(time.RFC3339),
			RunID:        view.RunID,
			ProjectRoot:  view.ProjectRoot,
			ManifestPath: view.ManifestPath,
			Dependencies: len(view.Rows),
			Removable:    len(view.Removable),
			Cycles:       len(view.Cycles),
		},
		Classes:   NewOrganizer(view.Rows).Organize(),
		Rows:      rows,
		Removable: view.Removable,
		Cycles:    view.Cycles,
		Warnings:  view.Warnings,
	}
	for _, r := range view.Rows {
		if r.Used {
			doc.Metadata.Used++
		}
	}
	return doc
}

// Write encodes the view to w in opts.Format.
func (e *Exporter) Write(w io.Writer, view *analyzer.Analysis, opts Options) error {
	doc := e.Build(view, opts)

	switch opts.Format {
	case FormatJSON, "":
		return WriteJSON(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc.Rows)
	case FormatYAML:
		return WriteYAML(w, doc)
	default:
		return fmt.Errorf("unsupported export format %q", opts.Format)
	}
}

// WriteFile exports the view to path, creating parent directories. An empty
// opts.Format is detected from the file extension and falls back to JSON.
func (e *Exporter) WriteFile(path string, view *analyzer.Analysis, opts Options) error {
	if opts.Format == "" {
		if f, ok := DetectFormat(path); ok {
			opts.Format = f
		} else {
			opts.Format = FormatJSON
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := e.Write(bw, view, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	e.logger.Info("Exported analysis",
		"path", path,
		"format", string(opts.Format),
		"rows", len(view.Rows),
	)
	return nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// WriteCSV writes one line per row. Feature lists are joined with ";".
func WriteCSV(w io.Writer, rows []analyzer.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(csvRecord(r)); err != nil {
			return fmt.Errorf("failed to write CSV row %s: %w", r.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func csvRecord(r analyzer.Row) []string {
	return []string{
		r.Name,
		r.Version,
		string(r.Class),
		strconv.FormatBool(r.Optional),
		strconv.FormatBool(r.Used),
		strconv.Itoa(r.FileCount),
		strconv.Itoa(r.SiteCount),
		FormatScore(r.ImportanceScore),
		strconv.FormatBool(r.Removable),
		strconv.FormatBool(r.PartiallyUsed),
		strings.Join(r.UsedFeatures, ";"),
		strings.Join(r.UnusedFeatures, ";"),
	}
}

// FormatScore renders an importance score with four decimals.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 4, 64)
}
