package watcher

import (
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Batch is one debounced set of changes handed to the ChangeHandler.
type Batch struct {
	// Events holds one event per path, sorted by path
	Events []Event

	// ManifestChanged is set when a manifest, lock or configuration file
	// changed, so the declared dependency set may differ from the last run
	ManifestChanged bool
}

// Paths returns the changed paths in order.
func (b Batch) Paths() []string {
	out := make([]string, len(b.Events))
	for i, e := range b.Events {
		out[i] = e.Path
	}
	return out
}

// changeSet holds at most one pending event per path and emits them once the
// tree has been quiet for the delay.
type changeSet struct {
	delay   time.Duration
	emit    func([]Event)
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]Event
}

func newChangeSet(delay time.Duration, emit func([]Event)) *changeSet {
	return &changeSet{
		delay:   delay,
		emit:    emit,
		pending: make(map[string]Event),
	}
}

// Add folds the event into the pending set and restarts the quiet period.
func (c *changeSet) Add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mergeInto(c.pending, e)

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.flush)
}

func (c *changeSet) flush() {
	c.mu.Lock()
	events := sortedEvents(c.pending)
	c.pending = make(map[string]Event)
	c.timer = nil
	c.mu.Unlock()

	if len(events) > 0 && c.emit != nil {
		c.emit(events)
	}
}

// Flush emits pending events now.
func (c *changeSet) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.flush()
}

// Cancel drops pending events without emitting them.
func (c *changeSet) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = make(map[string]Event)
}

// Len returns the number of paths with a pending change.
func (c *changeSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// mergeEvent folds next into the event already pending for the same path.
// A file created and removed inside one window never existed as far as the
// analyzer is concerned, so keep is false.
func mergeEvent(prev, next Event) (merged Event, keep bool) {
	switch {
	case prev.Type == EventCreate && (next.Type == EventDelete || next.Type == EventRename):
		return Event{}, false
	case prev.Type == EventCreate:
		next.Type = EventCreate
	case prev.Type == EventDelete && next.Type == EventCreate:
		// Editors that save by replace
		next.Type = EventModify
	}
	return next, true
}

func mergeInto(pending map[string]Event, e Event) {
	prev, ok := pending[e.Path]
	if !ok {
		pending[e.Path] = e
		return
	}
	merged, keep := mergeEvent(prev, e)
	if !keep {
		delete(pending, e.Path)
		return
	}
	pending[e.Path] = merged
}

func sortedEvents(pending map[string]Event) []Event {
	out := make([]Event, 0, len(pending))
	for _, e := range pending {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Coalesce merges events per path in arrival order and returns them sorted
// by path.
func Coalesce(events []Event) []Event {
	pending := make(map[string]Event, len(events))
	for _, e := range events {
		mergeInto(pending, e)
	}
	return sortedEvents(pending)
}

// newBatch coalesces events and flags declaration changes.
func (w *Watcher) newBatch(events []Event) Batch {
	b := Batch{Events: Coalesce(events)}
	for _, e := range b.Events {
		base := filepath.Base(e.Path)
		for _, f := range w.config.Files {
			if base == f {
				b.ManifestChanged = true
			}
		}
	}
	return b
}
