// Package export writes the Analysis view of a run as JSON, CSV or YAML.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"why/internal/analyzer"
	"why/internal/usage"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json, csv or yaml)", s)
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, bool) {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	return f, err == nil
}

// Document is the exported structure
type Document struct {
	Metadata  Metadata        `json:"metadata" yaml:"metadata"`
	Classes   []ClassSummary  `json:"classes" yaml:"classes"`
	Rows      []analyzer.Row  `json:"rows" yaml:"rows"`
	Removable []string        `json:"removable" yaml:"removable"`
	Cycles    [][]string      `json:"cycles" yaml:"cycles"`
	Warnings  []usage.Warning `json:"warnings" yaml:"warnings"`
}

// Metadata describes the run an export came from
type Metadata struct {
	Tool         string `json:"tool" yaml:"tool"`
	Version      string `json:"version" yaml:"version"`
	Timestamp    string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // RFC 3339
	RunID        string `json:"runId" yaml:"runId"`
	ProjectRoot  string `json:"projectRoot" yaml:"projectRoot"`
	ManifestPath string `json:"manifestPath" yaml:"manifestPath"`
	Dependencies int    `json:"dependencies" yaml:"dependencies"`
	Used         int    `json:"used" yaml:"used"`
	Removable    int    `json:"removable" yaml:"removable"`
	Cycles       int    `json:"cycles" yaml:"cycles"`
}

// Options configures an export
type Options struct {
	Format Format          // Output format; detected from the file name when empty
	Sort   analyzer.SortBy // Row order (default: manifest order)
	Filter analyzer.Filter // Row selection (default: all)
}
