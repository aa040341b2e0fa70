package usage

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultSkipDirs are never scanned, whatever the configured patterns.
var defaultSkipDirs = map[string]bool{
	"target":       true,
	".git":         true,
	"node_modules": true,
}

// excluder matches root-relative slash paths against doublestar globs.
type excluder struct {
	patterns []string
}

func newExcluder(patterns []string) *excluder {
	valid := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if doublestar.ValidatePattern(p) {
			valid = append(valid, p)
		}
	}
	return &excluder{patterns: valid}
}

// skipDir reports whether a whole subtree is excluded. A pattern of the form
// "X/**" excludes every directory matching X.
func (e *excluder) skipDir(rel, name string) bool {
	if defaultSkipDirs[name] {
		return true
	}
	for _, p := range e.patterns {
		if !strings.HasSuffix(p, "/**") {
			continue
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/**"), rel); ok {
			return true
		}
	}
	return false
}

// skipFile reports whether a file is excluded.
func (e *excluder) skipFile(rel string) bool {
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
