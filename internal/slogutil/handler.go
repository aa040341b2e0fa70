// Package slogutil provides the slog handler and level helpers used by why.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Attribute keys the human format lifts out of the key=value tail.
const (
	// AttrRun carries the analysis run ID
	AttrRun = "run"
	// AttrCode carries a warning or error code such as PARSE_FALLBACK
	AttrCode = "code"
)

// runTagLen is how much of a run ID the human format prints.
const runTagLen = 8

// WhyHandler formats records for a terminal:
//
//	TIMESTAMP [level] RUN CODE: Message | key=value key=value
//
// RUN and CODE are printed only when the record (or the logger it came from)
// carries the run and code attributes. Watch mode interleaves several runs in
// one stream, and the tag tells them apart.
type WhyHandler struct {
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

// NewWhyHandler creates a new log handler.
func NewWhyHandler(w io.Writer, opts *slog.HandlerOptions) *WhyHandler {
	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	return &WhyHandler{
		w:     w,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *WhyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
func (h *WhyHandler) Handle(_ context.Context, r slog.Record) error {
	var run, code string
	tail := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	collect := func(a slog.Attr) {
		switch a.Key {
		case "":
		case AttrRun:
			run = a.Value.String()
		case AttrCode:
			code = a.Value.String()
		default:
			tail = append(tail, a)
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(h.resolveAttr(a))
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(r.Time.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(levelString(r.Level))
	buf.WriteString("] ")
	if run != "" {
		buf.WriteString(runTag(run))
		buf.WriteByte(' ')
	}
	if code != "" {
		buf.WriteString(code)
		buf.WriteString(": ")
	}
	buf.WriteString(r.Message)

	if len(tail) > 0 {
		buf.WriteString(" |")
		for _, a := range tail {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteByte('=')
			buf.WriteString(formatValue(a.Value))
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *WhyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)

	for _, a := range attrs {
		newAttrs = append(newAttrs, h.resolveAttr(a))
	}

	return &WhyHandler{
		w:      h.w,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
		mu:     h.mu,
	}
}

// WithGroup returns a new handler with the given group name added.
func (h *WhyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name

	return &WhyHandler{
		w:      h.w,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
		mu:     h.mu,
	}
}

// resolveAttr applies group prefixes to attribute keys.
func (h *WhyHandler) resolveAttr(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	// Prefix key with group names
	key := a.Key
	for i := len(h.groups) - 1; i >= 0; i-- {
		key = h.groups[i] + "." + key
	}
	return slog.Attr{Key: key, Value: a.Value}
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// runTag shortens a run ID to its leading characters.
func runTag(run string) string {
	if len(run) > runTagLen {
		return run[:runTagLen]
	}
	return run
}

// formatValue formats a slog.Value for display. Strings holding spaces or
// '=' (error messages, paths with spaces) are quoted so the tail stays
// splittable.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if strings.ContainsAny(s, " =\"") {
		return strconv.Quote(s)
	}
	return s
}
