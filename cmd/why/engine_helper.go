package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"why/internal/analyzer"
	"why/internal/config"
	whyerrors "why/internal/errors"
	"why/internal/paths"
	"why/internal/slogutil"
	"why/internal/storage"
	"why/internal/usage"
)

// runRetention is how long run history is kept.
const runRetention = 90 * 24 * time.Hour

// session holds everything a command needs to analyze one project.
type session struct {
	cfg    *config.Config
	root   string
	logger *slog.Logger

	db       *storage.DB
	cache    *storage.ScanCache
	cacheErr error

	logFile *os.File
}

// newSession resolves the project, loads and validates its configuration,
// builds the logger and, when useCache is set, opens the scan cache. A cache
// that cannot be opened is not fatal; analyze reports it as a warning.
func newSession(useCache bool) (*session, error) {
	start := pathFlag
	if start == "" {
		start = "."
	}
	root, err := paths.ResolveProjectRoot(start)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	// Without --path, a configured projectDir selects the project
	if pathFlag == "" && cfg.General.ProjectDir != "" {
		root, err = paths.ResolveProjectRoot(paths.ResolveInProject(root, cfg.General.ProjectDir))
		if err != nil {
			return nil, err
		}
	}

	s := &session{cfg: cfg, root: root}
	if err := s.initLogger(); err != nil {
		return nil, err
	}

	if useCache && cfg.Cache.Enabled {
		s.openCache()
	}
	return s, nil
}

func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadConfigFromPath(configFlag)
	} else {
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		return nil, whyerrors.New(whyerrors.ConfigInvalid, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, whyerrors.New(whyerrors.ConfigInvalid, "invalid configuration", err)
	}
	return cfg, nil
}

// logLevel resolves the effective level: -v and --quiet win over the
// configured level.
func logLevel(cfg *config.Config) slog.Level {
	if verbosity > 0 || quietFlag {
		return slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	return slogutil.LevelFromString(cfg.Logging.Level)
}

func (s *session) initLogger() error {
	level := logLevel(s.cfg)
	handler := slogutil.NewHandler(os.Stderr, level, s.cfg.Logging.Format)

	if s.cfg.Logging.File != "" {
		path := paths.ResolveInProject(s.root, s.cfg.Logging.File)
		fileLogger, f, err := slogutil.NewFileLogger(path, slog.LevelDebug, "json")
		if err != nil {
			return whyerrors.New(whyerrors.ConfigInvalid, "cannot open log file "+path, err)
		}
		s.logFile = f
		handler = slogutil.NewTeeHandler(handler, fileLogger.Handler())
	}

	s.logger = slog.New(handler)
	return nil
}

func (s *session) openCache() {
	path := paths.ResolveInProject(s.root, s.cfg.Cache.Path)

	db, err := storage.Open(path, s.logger)
	if err != nil {
		s.cacheErr = err
		s.logger.Warn("Scan cache unavailable", slogutil.AttrCode, usage.WarnCacheUnavailable, "path", path, "error", err.Error())
		return
	}
	cache, err := storage.NewScanCache(db, s.cfg.Cache.MemoryEntries)
	if err != nil {
		_ = db.Close()
		s.cacheErr = err
		s.logger.Warn("Scan cache unavailable", slogutil.AttrCode, usage.WarnCacheUnavailable, "path", path, "error", err.Error())
		return
	}
	s.db = db
	s.cache = cache
}

// Close releases the cache and the log file.
func (s *session) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Debug("Failed to close cache database", "error", err.Error())
		}
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// options maps the session onto analyzer options.
func (s *session) options(dep string) analyzer.Options {
	opts := analyzer.OptionsFromConfig(s.cfg)
	opts.Path = s.root
	opts.Dependency = dep
	if s.cache != nil {
		opts.Cache = s.cache
	}
	return opts
}

// analyze runs one analysis and records it in the run history when the
// cache database is open.
func (s *session) analyze(ctx context.Context, dep string) (*analyzer.AnalysisResult, error) {
	res, err := analyzer.New(s.logger).Analyze(ctx, s.options(dep))
	if err != nil {
		return nil, err
	}

	if s.cacheErr != nil {
		res.Warnings = append(res.Warnings, usage.Warning{
			Code:    usage.WarnCacheUnavailable,
			Message: s.cacheErr.Error(),
		})
	}

	if s.db != nil {
		s.record(ctx, res)
	}
	return res, nil
}

func (s *session) record(ctx context.Context, res *analyzer.AnalysisResult) {
	sum := res.Summary()
	err := s.db.RecordRun(ctx, storage.RunRecord{
		RunID:        sum.RunID,
		ProjectRoot:  sum.ProjectRoot,
		ManifestPath: sum.ManifestPath,
		Dependencies: sum.Dependencies,
		Used:         sum.Used,
		Removable:    sum.Removable,
		Cycles:       sum.Cycles,
		Warnings:     sum.Warnings,
		DurationMs:   sum.Duration.Milliseconds(),
		StartedAt:    sum.StartedAt,
	})
	if err != nil {
		s.logger.Debug("Failed to record run", "error", err.Error())
		return
	}
	if n, err := s.db.CleanupOldRuns(ctx, runRetention); err == nil && n > 0 {
		s.logger.Debug("Pruned run history", "removed", n)
	}
}

// newContext returns a context cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
