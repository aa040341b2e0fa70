package usage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	whyerrors "why/internal/errors"
	"why/internal/manifest"
	"why/internal/slogutil"
)

// ErrNoCGO is returned when syntax-tree scanning is unavailable due to missing CGO.
var ErrNoCGO = errors.New("syntax-tree scanning requires CGO (tree-sitter)")

// scannerVersion is mixed into cache fingerprints; bump it whenever scan
// output changes for unchanged input.
const scannerVersion = "why-scan-1"

// CacheKey identifies one file's scan result.
type CacheKey struct {
	// Path is the root-relative slash path
	Path string
	// Hash is the hex blake2b-256 of the file content
	Hash string
	// Fingerprint identifies the dependency set and scanner version
	Fingerprint string
}

// Cache stores per-file scan results across runs. Errors are treated as
// misses; a broken cache never fails a scan.
type Cache interface {
	Get(ctx context.Context, key CacheKey) ([]Match, bool, error)
	Put(ctx context.Context, key CacheKey, matches []Match) error
}

// Options configures a Scanner.
type Options struct {
	Profile Profile

	// Threads bounds parallel file scans; 0 means GOMAXPROCS
	Threads int

	FollowSymlinks  bool
	ExcludePatterns []string

	// MaxFileSizeBytes skips larger files with a warning; 0 means no limit
	MaxFileSizeBytes int64

	Cache  Cache
	Logger *slog.Logger
}

// Scanner produces a usage index for a project tree.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// NewScanner creates a scanner.
func NewScanner(opts Options) *Scanner {
	if opts.Threads <= 0 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	if opts.Profile.Language == "" {
		opts.Profile = ProfileFor(manifest.KindCargo)
	}
	return &Scanner{opts: opts, logger: slogutil.OrDiscard(opts.Logger)}
}

// sourceFile is an enumerated candidate file.
type sourceFile struct {
	abs string
	rel string
}

type fileResult struct {
	matches  []Match
	warnings []Warning
}

// Scan walks root and records every reference to records. Files are scanned
// in parallel but merged in lexicographic path order, so the index is
// identical to a sequential scan. Only an unreadable root or cancellation
// fails the scan.
func (s *Scanner) Scan(ctx context.Context, root string, records []manifest.DependencyRecord) (*Index, []Warning, error) {
	if _, err := os.ReadDir(root); err != nil {
		return nil, nil, whyerrors.New(whyerrors.ProjectUnreadable, "cannot read project root "+root, err)
	}

	files, warnings, err := s.enumerate(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	m := newMatcher(records)
	fingerprint := m.fingerprint(s.opts.Profile)

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Threads)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.scanFile(gctx, f, m, fingerprint)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	index := NewIndex(records)
	index.files = make([]string, len(files))
	for i, f := range files {
		index.files[i] = f.rel
	}
	for _, r := range results {
		warnings = append(warnings, r.warnings...)
		for _, match := range r.matches {
			index.Add(match.Dependency, match.Site)
		}
	}

	s.logger.Info("Scan finished",
		"root", root,
		"files", len(files),
		"sites", index.Total(),
		"warnings", len(warnings),
	)

	return index, warnings, nil
}

// enumerate lists candidate files in lexicographic order.
func (s *Scanner) enumerate(ctx context.Context, root string) ([]sourceFile, []Warning, error) {
	ex := newExcluder(s.opts.ExcludePatterns)
	var (
		files    []sourceFile
		warnings []Warning
	)
	visited := map[string]bool{}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		visited[real] = true
	}

	var walk func(dir, relBase string) error
	walk = func(dir, relBase string) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			rel := relBase
			if p, relErr := filepath.Rel(dir, path); relErr == nil && p != "." {
				rel = joinRel(relBase, filepath.ToSlash(p))
			}

			if err != nil {
				if path == dir && relBase == "" {
					return err
				}
				warnings = append(warnings, Warning{Code: WarnDirUnreadable, File: rel, Message: err.Error()})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != dir && ex.skipDir(rel, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if !s.opts.FollowSymlinks {
					return nil
				}
				return s.followSymlink(path, rel, ex, visited, walk, &files)
			}

			if !d.Type().IsRegular() || !s.opts.Profile.Matches(path) || ex.skipFile(rel) {
				return nil
			}
			files = append(files, sourceFile{abs: path, rel: rel})
			return nil
		})
	}

	if err := walk(root, ""); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, whyerrors.New(whyerrors.ProjectUnreadable, "cannot walk project root "+root, err)
	}

	// Symlinked subtrees are appended out of order
	sortFiles(files)
	return files, warnings, nil
}

// followSymlink resolves a symlink found during the walk. Directory targets
// are walked once per real path, so link cycles terminate.
func (s *Scanner) followSymlink(path, rel string, ex *excluder, visited map[string]bool,
	walk func(dir, relBase string) error, files *[]sourceFile) error {

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.logger.Debug("Skipping dangling symlink", "path", rel, "error", err.Error())
		return nil
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil
	}

	if info.IsDir() {
		if visited[real] || ex.skipDir(rel, filepath.Base(path)) {
			return nil
		}
		visited[real] = true
		return walk(real, rel)
	}

	if info.Mode().IsRegular() && s.opts.Profile.Matches(path) && !ex.skipFile(rel) {
		*files = append(*files, sourceFile{abs: real, rel: rel})
	}
	return nil
}

// scanFile scans one file. Failures become warnings.
func (s *Scanner) scanFile(ctx context.Context, f sourceFile, m *matcher, fingerprint string) fileResult {
	if limit := s.opts.MaxFileSizeBytes; limit > 0 {
		if info, err := os.Stat(f.abs); err == nil && info.Size() > limit {
			s.logger.Warn("Skipping file: too large",
				slogutil.AttrCode, WarnFileTooLarge, "file", f.rel, "size", info.Size())
			return fileResult{warnings: []Warning{{
				Code:    WarnFileTooLarge,
				File:    f.rel,
				Message: fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), limit),
			}}}
		}
	}

	source, err := os.ReadFile(f.abs)
	if err != nil {
		s.logger.Warn("Skipping unreadable file",
			slogutil.AttrCode, WarnFileUnreadable, "file", f.rel, "error", err.Error())
		return fileResult{warnings: []Warning{{Code: WarnFileUnreadable, File: f.rel, Message: err.Error()}}}
	}

	key := CacheKey{Path: f.rel, Hash: contentHash(source), Fingerprint: fingerprint}
	if s.opts.Cache != nil {
		matches, ok, err := s.opts.Cache.Get(ctx, key)
		if err != nil {
			s.logger.Debug("Scan cache read failed", "file", f.rel, "error", err.Error())
		} else if ok {
			return fileResult{matches: matches}
		}
	}

	var result fileResult
	switch s.opts.Profile.Language {
	case LangRust:
		matches, err := scanSyntax(ctx, f.rel, source, m)
		if err != nil {
			if ctx.Err() != nil {
				return fileResult{}
			}
			if errors.Is(err, ErrNoCGO) {
				s.logger.Debug("Tree-sitter unavailable, using line heuristic", "file", f.rel)
			} else {
				s.logger.Warn("Parse failed, using line heuristic",
					slogutil.AttrCode, WarnParseFallback, "file", f.rel, "error", err.Error())
				result.warnings = append(result.warnings, Warning{
					Code:    WarnParseFallback,
					File:    f.rel,
					Message: err.Error(),
				})
			}
			matches = scanRustLines(f.rel, source, m)
		}
		result.matches = matches
	default:
		result.matches = scanJSLines(f.rel, source, m)
	}

	// Fallback results are not cached so the warning repeats on the next run
	if s.opts.Cache != nil && len(result.warnings) == 0 {
		if err := s.opts.Cache.Put(ctx, key, result.matches); err != nil {
			s.logger.Debug("Scan cache write failed", "file", f.rel, "error", err.Error())
		}
	}
	return result
}

func sortFiles(files []sourceFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
}

func contentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func joinRel(base, rel string) string {
	if base == "" {
		return rel
	}
	return base + "/" + rel
}
