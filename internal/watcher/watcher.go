// Package watcher re-runs analysis when a project's sources or manifest
// change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"why/internal/paths"
	"why/internal/slogutil"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a file system event. Path is relative to the project root
// and slash-separated.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler is called with each debounced batch of relevant changes. It
// runs on the watcher's goroutine, so batches never overlap.
type ChangeHandler func(ctx context.Context, batch Batch)

// Config contains watcher configuration
type Config struct {
	DebounceMs int

	// Extensions are the source extensions that trigger a run, e.g. ".rs"
	Extensions []string

	// Files are base names that always trigger a run (manifest, lock, config)
	Files []string

	// IgnorePatterns are doublestar globs over root-relative paths
	IgnorePatterns []string
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceMs: 500,
		IgnorePatterns: []string{
			"**/target/**",
			"**/node_modules/**",
			"**/.git/**",
			"**/" + paths.WhyDirName + "/**",
		},
	}
}

// skipDirs are never watched.
var skipDirs = map[string]bool{
	"target":         true,
	"node_modules":   true,
	".git":           true,
	paths.WhyDirName: true,
}

// Watcher watches a project tree with fsnotify.
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler

	fs      *fsnotify.Watcher
	changes *changeSet
	batches chan []Event
	dirs    int
}

// New creates a watcher over root. Call Run to start delivering events.
func New(root string, config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		config:  config,
		logger:  slogutil.OrDiscard(logger),
		handler: handler,
		fs:      fw,
		batches: make(chan []Event, 1),
	}
	w.changes = newChangeSet(time.Duration(config.DebounceMs)*time.Millisecond, w.enqueue)

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batches to the handler until ctx is done. It closes the
// underlying fsnotify watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer w.changes.Cancel()

	w.logger.Info("Watching project",
		"root", w.root,
		"directories", w.dirs,
		"debounceMs", w.config.DebounceMs,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("File watcher stopped")
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err.Error())

		case events := <-w.batches:
			// Batches merged while the handler ran can cancel out
			batch := w.newBatch(events)
			if len(batch.Events) == 0 {
				continue
			}
			w.logger.Debug("Changes detected",
				"paths", len(batch.Events),
				"manifestChanged", batch.ManifestChanged,
			)
			if w.handler != nil {
				w.handler(ctx, batch)
			}
		}
	}
}

// enqueue hands a batch to Run. A batch still waiting is merged with the
// new one rather than blocking the debounce timer.
func (w *Watcher) enqueue(events []Event) {
	for {
		select {
		case w.batches <- events:
			return
		case pending := <-w.batches:
			events = append(pending, events...)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = paths.NormalizePath(rel)

	// New directories are watched as they appear
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(rel, info.Name()) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Error watching new directory", "path", rel, "error", err.Error())
				}
			}
			return
		}
	}

	if !w.Relevant(rel) {
		return
	}
	w.changes.Add(Event{Type: eventType(ev.Op), Path: rel, Timestamp: time.Now()})
}

// Relevant reports whether a change to the root-relative path should trigger
// a run.
func (w *Watcher) Relevant(rel string) bool {
	for _, p := range w.config.IgnorePatterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	base := filepath.Base(rel)
	for _, f := range w.config.Files {
		if base == f {
			return true
		}
	}
	ext := filepath.Ext(rel)
	for _, e := range w.config.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignoredDir(rel, name string) bool {
	if skipDirs[name] || (strings.HasPrefix(name, ".") && rel != ".") {
		return true
	}
	for _, p := range w.config.IgnorePatterns {
		if ok, _ := doublestar.Match(p, rel+"/x"); ok {
			return true
		}
	}
	return false
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		rel = paths.NormalizePath(rel)
		if path != w.root && w.ignoredDir(rel, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.dirs++
		return nil
	})
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreate
	case op&fsnotify.Remove != 0:
		return EventDelete
	case op&fsnotify.Rename != 0:
		return EventRename
	default:
		return EventModify
	}
}
