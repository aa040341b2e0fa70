package analyzer

import (
	"time"

	"why/internal/graph"
	"why/internal/manifest"
	"why/internal/metrics"
	"why/internal/usage"
)

// AnalysisResult owns everything one run produced.
type AnalysisResult struct {
	RunID        string                      `json:"runId"`
	ProjectRoot  string                      `json:"projectRoot"`
	ManifestPath string                      `json:"manifestPath"`
	ManifestKind manifest.Kind               `json:"manifestKind"`
	Dependency   string                      `json:"dependency,omitempty"`
	Records      []manifest.DependencyRecord `json:"records"`
	Usage        *usage.Index                `json:"usage"`
	Metrics      *metrics.Report             `json:"metrics"`
	Graph        *graph.Graph                `json:"-"`
	Edges        []graph.Edge                `json:"edges"`
	Cycles       [][]string                  `json:"cycles"`
	Warnings     []usage.Warning             `json:"warnings"`
	StartedAt    time.Time                   `json:"startedAt"`
	Duration     time.Duration               `json:"duration"`
}

// Analysis is the flattened, serializable view of a run: one row per
// dependency, in manifest order.
type Analysis struct {
	RunID        string          `json:"runId" yaml:"runId"`
	ProjectRoot  string          `json:"projectRoot" yaml:"projectRoot"`
	ManifestPath string          `json:"manifestPath" yaml:"manifestPath"`
	Rows         []Row           `json:"rows" yaml:"rows"`
	Removable    []string        `json:"removable" yaml:"removable"`
	Cycles       [][]string      `json:"cycles" yaml:"cycles"`
	Warnings     []usage.Warning `json:"warnings" yaml:"warnings"`
}

// Row is one dependency in the Analysis view.
type Row struct {
	Name            string             `json:"name" yaml:"name"`
	Version         string             `json:"version" yaml:"version"`
	Class           manifest.Class     `json:"class" yaml:"class"`
	Optional        bool               `json:"optional" yaml:"optional"`
	Used            bool               `json:"used" yaml:"used"`
	FileCount       int                `json:"fileCount" yaml:"fileCount"`
	SiteCount       int                `json:"siteCount" yaml:"siteCount"`
	ImportanceScore float64            `json:"importanceScore" yaml:"importanceScore"`
	Removable       bool               `json:"removable" yaml:"removable"`
	PartiallyUsed   bool               `json:"partiallyUsed" yaml:"partiallyUsed"`
	UsedFeatures    []string           `json:"usedFeatures" yaml:"usedFeatures"`
	UnusedFeatures  []string           `json:"unusedFeatures" yaml:"unusedFeatures"`
	KindCounts      map[usage.Kind]int `json:"kindCounts" yaml:"kindCounts"`

	// Sites is filled only when the run was narrowed to this dependency
	Sites []usage.Site `json:"sites,omitempty" yaml:"sites,omitempty"`
}

// View flattens the result. When the run was narrowed to one dependency the
// view holds that dependency's row, with its sites, and nothing else.
func (r *AnalysisResult) View() *Analysis {
	a := &Analysis{
		RunID:        r.RunID,
		ProjectRoot:  r.ProjectRoot,
		ManifestPath: r.ManifestPath,
		Rows:         make([]Row, 0, len(r.Records)),
		Removable:    []string{},
		Cycles:       r.Cycles,
		Warnings:     r.Warnings,
	}
	if a.Cycles == nil {
		a.Cycles = [][]string{}
	}
	if a.Warnings == nil {
		a.Warnings = []usage.Warning{}
	}

	for _, rec := range r.Records {
		if r.Dependency != "" && rec.Name != r.Dependency {
			continue
		}
		row := r.row(rec)
		if r.Dependency != "" {
			row.Sites = r.Usage.Sites(rec.Name)
		}
		a.Rows = append(a.Rows, row)
		if row.Removable {
			a.Removable = append(a.Removable, row.Name)
		}
	}
	return a
}

// Row returns the row for one dependency.
func (r *AnalysisResult) Row(name string) (Row, bool) {
	rec, ok := manifest.Lookup(r.Records, name)
	if !ok {
		return Row{}, false
	}
	return r.row(rec), true
}

func (r *AnalysisResult) row(rec manifest.DependencyRecord) Row {
	m := r.Metrics.Get(rec.Name)
	kinds := m.KindCounts
	if kinds == nil {
		kinds = map[usage.Kind]int{}
	}
	return Row{
		Name:            rec.Name,
		Version:         rec.VersionConstraint,
		Class:           rec.Class,
		Optional:        rec.Optional,
		Used:            m.IsUsed,
		FileCount:       m.FileCount,
		SiteCount:       m.SiteCount,
		ImportanceScore: m.ImportanceScore,
		Removable:       m.Removable,
		PartiallyUsed:   m.PartiallyUsed,
		UsedFeatures:    m.UsedFeatures(rec),
		UnusedFeatures:  m.UnusedFeatures(rec),
		KindCounts:      kinds,
	}
}

// Summary condenses a run for the history table.
type Summary struct {
	RunID        string
	ProjectRoot  string
	ManifestPath string
	Dependencies int
	Used         int
	Removable    int
	Cycles       int
	Warnings     int
	StartedAt    time.Time
	Duration     time.Duration
}

// Summary returns the run's headline numbers.
func (r *AnalysisResult) Summary() Summary {
	s := Summary{
		RunID:        r.RunID,
		ProjectRoot:  r.ProjectRoot,
		ManifestPath: r.ManifestPath,
		Dependencies: len(r.Records),
		Removable:    len(r.Metrics.Removable),
		Cycles:       len(r.Cycles),
		Warnings:     len(r.Warnings),
		StartedAt:    r.StartedAt,
		Duration:     r.Duration,
	}
	for _, rec := range r.Records {
		if r.Metrics.Get(rec.Name).IsUsed {
			s.Used++
		}
	}
	return s
}
