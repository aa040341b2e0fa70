// Package analyzer sequences one analysis run: manifest, scan, metrics,
// graph. It owns no algorithms of its own.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"why/internal/config"
	whyerrors "why/internal/errors"
	"why/internal/graph"
	"why/internal/manifest"
	"why/internal/metrics"
	"why/internal/paths"
	"why/internal/slogutil"
	"why/internal/usage"
)

// Options configures one run.
type Options struct {
	// Path is the project directory; "" means the working directory
	Path string

	// ManifestPath skips discovery when set
	ManifestPath   string
	MaxSearchDepth int

	IncludeDev   bool
	IncludeBuild bool

	// Dependency narrows the view to one declared dependency
	Dependency string

	Thresholds       metrics.Thresholds
	Threads          int
	FollowSymlinks   bool
	ExcludePatterns  []string
	MaxFileSizeBytes int64

	// Cache is optional
	Cache usage.Cache
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig maps a loaded configuration onto run options. The cache
// is left unset; callers open it separately.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Path:           cfg.General.ProjectDir,
		MaxSearchDepth: cfg.General.MaxSearchDepth,
		IncludeDev:     cfg.General.IncludeDevDependencies,
		IncludeBuild:   cfg.General.IncludeBuildDependencies,
		Thresholds: metrics.Thresholds{
			LowImportance:     cfg.Analysis.RemovalThreshold,
			PartialImportance: cfg.Analysis.PartialThreshold,
		},
		Threads:          cfg.Analysis.Threads,
		FollowSymlinks:   cfg.Analysis.FollowSymlinks,
		ExcludePatterns:  append([]string(nil), cfg.Analysis.ExcludePatterns...),
		MaxFileSizeBytes: cfg.Analysis.MaxFileSizeBytes,
	}
}

// pruner is implemented by caches that can drop rows for deleted files.
type pruner interface {
	Prune(ctx context.Context, keep []string) (int64, error)
}

// Analyzer runs analyses. It holds no per-run state and is safe to reuse.
type Analyzer struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates an analyzer.
func New(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: slogutil.OrDiscard(logger), now: time.Now}
}

// Analyze runs the pipeline. Only fatal conditions are returned as errors:
// an unreadable project, a missing or invalid manifest, an unknown
// Options.Dependency, cancellation, and broken internal invariants.
// Everything else is collected into AnalysisResult.Warnings.
func (a *Analyzer) Analyze(ctx context.Context, opts Options) (*AnalysisResult, error) {
	started := a.now()
	runID := uuid.New().String()
	logger := a.logger.With(slogutil.AttrRun, runID)

	root, err := paths.ResolveProjectRoot(opts.Path)
	if err != nil {
		return nil, err
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath, err = manifest.Find(root, opts.MaxSearchDepth)
		if err != nil {
			return nil, err
		}
	} else {
		manifestPath = paths.ResolveInProject(root, manifestPath)
	}

	m, err := manifest.Parse(manifestPath, logger)
	if err != nil {
		return nil, err
	}
	records := manifest.Filter(m.Records, opts.IncludeDev, opts.IncludeBuild)

	if opts.Dependency != "" {
		if _, ok := manifest.Lookup(records, opts.Dependency); !ok {
			msg := fmt.Sprintf("dependency %q is not declared in %s", opts.Dependency, manifestPath)
			if _, declared := manifest.Lookup(m.Records, opts.Dependency); declared {
				msg = fmt.Sprintf("dependency %q is excluded by the class filter", opts.Dependency)
			}
			return nil, whyerrors.New(whyerrors.UnknownDependency, msg, nil)
		}
	}

	// Sources are scanned relative to the manifest's directory
	scanRoot := filepath.Dir(manifestPath)

	scanner := usage.NewScanner(usage.Options{
		Profile:          usage.ProfileFor(m.Kind),
		Threads:          opts.Threads,
		FollowSymlinks:   opts.FollowSymlinks,
		ExcludePatterns:  opts.ExcludePatterns,
		MaxFileSizeBytes: opts.MaxFileSizeBytes,
		Cache:            opts.Cache,
		Logger:           logger,
	})
	index, warnings, err := scanner.Scan(ctx, scanRoot, records)
	if err != nil {
		return nil, err
	}

	if p, ok := opts.Cache.(pruner); ok {
		if _, err := p.Prune(ctx, index.Files()); err != nil {
			logger.Debug("Scan cache prune failed", "error", err.Error())
		}
	}

	report, err := metrics.Compute(records, index, opts.Thresholds)
	if err != nil {
		return nil, err
	}

	g := graph.New(manifest.Names(records))
	edges, err := manifest.LoadEdges(scanRoot, m.Kind, records)
	if err != nil {
		logger.Warn("Ignoring lock file", slogutil.AttrCode, usage.WarnLockfileInvalid, "error", err.Error())
		warnings = append(warnings, usage.Warning{
			Code:    usage.WarnLockfileInvalid,
			File:    m.Kind.LockFileName(),
			Message: err.Error(),
		})
		edges = nil
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, whyerrors.New(whyerrors.InternalError, "lock edge outside the declared set", err)
		}
	}
	cycles := g.Cycles()

	result := &AnalysisResult{
		RunID:        runID,
		ProjectRoot:  root,
		ManifestPath: manifestPath,
		ManifestKind: m.Kind,
		Dependency:   opts.Dependency,
		Records:      records,
		Usage:        index,
		Metrics:      report,
		Graph:        g,
		Edges:        g.Edges(),
		Cycles:       cycles,
		Warnings:     warnings,
		StartedAt:    started,
		Duration:     a.now().Sub(started),
	}
	if result.Warnings == nil {
		result.Warnings = []usage.Warning{}
	}

	logger.Info("Analysis complete",
		"dependencies", len(records),
		"removable", len(report.Removable),
		"edges", g.NumEdges(),
		"cycles", len(cycles),
		"warnings", len(result.Warnings),
		"duration", result.Duration,
	)
	return result, nil
}
