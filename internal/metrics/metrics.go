// Package metrics turns usage sites into per-dependency signals, a bounded
// importance score and a removability verdict.
package metrics

import (
	"fmt"
	"math"
	"strings"

	whyerrors "why/internal/errors"
	"why/internal/manifest"
	"why/internal/usage"
)

// Scoring caps. Counts above a cap add nothing.
const (
	maxFiles      = 20
	maxFunctions  = 10
	maxTypes      = 10
	maxTraits     = 5
	maxMacros     = 10
	optionalScale = 0.7
)

// Thresholds decide removability.
type Thresholds struct {
	// LowImportance flags any dependency scoring below it
	LowImportance float64 `json:"lowImportance"`
	// PartialImportance flags partially used dependencies scoring below it
	PartialImportance float64 `json:"partialImportance"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{LowImportance: 0.1, PartialImportance: 0.3}
}

// Factors are the components the importance score is built from.
//   - Base: usage breadth, min(files, 20) / 20
//   - Variety: distinct scored kinds / 5
//   - Depth: per-kind weights, capped at 1
//   - Class: runtime 1.0, build 0.7, development 0.5
//   - Optional: 0.7 for optional dependencies, else 1.0
type Factors struct {
	Base     float64 `json:"base"`
	Variety  float64 `json:"variety"`
	Depth    float64 `json:"depth"`
	Class    float64 `json:"class"`
	Optional float64 `json:"optional"`
}

// Score combines factors multiplicatively, so one weak factor pulls the
// score down rather than one strong factor saturating it.
func (f Factors) Score() float64 {
	return math.Min(1.0, f.Base*(1+f.Variety)*(1+f.Depth)*f.Class*f.Optional)
}

// DependencyMetrics are the computed signals for one dependency.
type DependencyMetrics struct {
	IsUsed bool `json:"isUsed"`

	// FileCount is the number of distinct files with at least one site
	FileCount int `json:"fileCount"`
	SiteCount int `json:"siteCount"`

	KindCounts map[usage.Kind]int `json:"kindCounts"`

	// FeatureUsage is a textual heuristic: a feature counts as used when
	// any site's symbol contains its name.
	FeatureUsage map[string]bool `json:"featureUsage"`

	Factors         Factors `json:"factors"`
	ImportanceScore float64 `json:"importanceScore"`
	PartiallyUsed   bool    `json:"partiallyUsed"`
	Removable       bool    `json:"removable"`
}

// UsedFeatures returns the used features in declaration order.
func (m DependencyMetrics) UsedFeatures(rec manifest.DependencyRecord) []string {
	return m.features(rec, true)
}

// UnusedFeatures returns the unused features in declaration order.
func (m DependencyMetrics) UnusedFeatures(rec manifest.DependencyRecord) []string {
	return m.features(rec, false)
}

func (m DependencyMetrics) features(rec manifest.DependencyRecord, used bool) []string {
	out := []string{}
	for _, f := range rec.Features {
		if m.FeatureUsage[f] == used {
			out = append(out, f)
		}
	}
	return out
}

// Report holds the metrics of one run.
type Report struct {
	ByName map[string]DependencyMetrics `json:"byName"`

	// Removable lists removal candidates in record order
	Removable []string `json:"removable"`
}

// Get returns the metrics for name, or zero metrics for an unknown name.
func (r *Report) Get(name string) DependencyMetrics {
	return r.ByName[name]
}

// IsRemovable reports whether name is a removal candidate.
func (r *Report) IsRemovable(name string) bool {
	return r.ByName[name].Removable
}

// Compute derives metrics for every record. It is deterministic. An index
// key without a record breaks the scan contract and is returned as
// INTERNAL_ERROR.
func Compute(records []manifest.DependencyRecord, index *usage.Index, th Thresholds) (*Report, error) {
	declared := make(map[string]bool, len(records))
	for _, r := range records {
		declared[r.Name] = true
	}
	for _, name := range index.Names() {
		if !declared[name] {
			return nil, whyerrors.New(whyerrors.InternalError,
				fmt.Sprintf("usage index has sites for undeclared dependency %q", name), nil)
		}
	}

	report := &Report{
		ByName:    make(map[string]DependencyMetrics, len(records)),
		Removable: []string{},
	}
	for _, rec := range records {
		m := ForDependency(rec, index.Sites(rec.Name), th)
		report.ByName[rec.Name] = m
		if m.Removable {
			report.Removable = append(report.Removable, rec.Name)
		}
	}
	return report, nil
}

// ForDependency computes the metrics of one dependency from its sites.
func ForDependency(rec manifest.DependencyRecord, sites []usage.Site, th Thresholds) DependencyMetrics {
	m := DependencyMetrics{
		IsUsed:       len(sites) > 0,
		SiteCount:    len(sites),
		KindCounts:   make(map[usage.Kind]int),
		FeatureUsage: make(map[string]bool, len(rec.Features)),
	}

	files := make(map[string]struct{})
	for _, s := range sites {
		files[s.File] = struct{}{}
		m.KindCounts[s.Kind]++
	}
	m.FileCount = len(files)

	for _, f := range rec.Features {
		m.FeatureUsage[f] = false
		for _, s := range sites {
			if strings.Contains(s.Symbol, f) {
				m.FeatureUsage[f] = true
				break
			}
		}
		if !m.FeatureUsage[f] {
			m.PartiallyUsed = true
		}
	}

	if m.IsUsed {
		m.Factors = ComputeFactors(rec, m.FileCount, m.KindCounts)
		m.ImportanceScore = m.Factors.Score()
	}

	m.Removable = !m.IsUsed ||
		m.ImportanceScore < th.LowImportance ||
		(m.PartiallyUsed && m.ImportanceScore < th.PartialImportance)

	return m
}

// ComputeFactors derives the score factors from a file count and kind tally.
func ComputeFactors(rec manifest.DependencyRecord, fileCount int, kinds map[usage.Kind]int) Factors {
	f := Factors{
		Base:     float64(min(fileCount, maxFiles)) / maxFiles,
		Class:    ClassFactor(rec.Class),
		Optional: 1.0,
	}
	if rec.Optional {
		f.Optional = optionalScale
	}

	present := 0
	for _, k := range usage.ScoredKinds {
		if kinds[k] > 0 {
			present++
		}
	}
	f.Variety = float64(present) / float64(len(usage.ScoredKinds))

	if kinds[usage.Import] > 0 {
		f.Depth += 0.1
	}
	if n := kinds[usage.FunctionCall]; n > 0 {
		f.Depth += 0.3 * float64(min(n, maxFunctions)) / maxFunctions
	}
	if n := kinds[usage.TypeReference]; n > 0 {
		f.Depth += 0.3 * float64(min(n, maxTypes)) / maxTypes
	}
	if n := kinds[usage.TraitOrInterfaceReference]; n > 0 {
		f.Depth += 0.3 * float64(min(n, maxTraits)) / maxTraits
	}
	if n := kinds[usage.MacroInvocation]; n > 0 {
		f.Depth += 0.2 * float64(min(n, maxMacros)) / maxMacros
	}
	f.Depth = math.Min(f.Depth, 1.0)

	return f
}

// ClassFactor weights a declaration class.
func ClassFactor(c manifest.Class) float64 {
	switch c {
	case manifest.Development:
		return 0.5
	case manifest.BuildTime:
		return 0.7
	default:
		return 1.0
	}
}
