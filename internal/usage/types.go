// Package usage finds where declared dependencies are referenced in a
// project's source tree.
//
// Rust sources are parsed with tree-sitter and walked with a per-file alias
// table; files that fail to parse, and JavaScript/TypeScript sources, go
// through a line-oriented import heuristic instead. Classification is
// textual: it looks at path shape, not at resolved semantics.
package usage

import (
	"encoding/json"
	"sort"

	"why/internal/manifest"
)

// Kind classifies a usage site.
type Kind string

const (
	Import                    Kind = "import"
	FunctionCall              Kind = "function_call"
	TypeReference             Kind = "type_reference"
	TraitOrInterfaceReference Kind = "trait_reference"
	MacroInvocation           Kind = "macro_invocation"
	Other                     Kind = "other"
)

// ScoredKinds are the kinds that count towards usage variety.
var ScoredKinds = []Kind{Import, FunctionCall, TypeReference, TraitOrInterfaceReference, MacroInvocation}

// Site is one place a dependency is referenced.
type Site struct {
	// File is slash-separated and relative to the project root
	File string `json:"file" yaml:"file"`
	// Line is 1-based; 0 means unknown
	Line int `json:"line" yaml:"line"`
	// Symbol is the qualified path or import text observed, with local
	// aliases expanded
	Symbol string `json:"symbol" yaml:"symbol"`
	Kind   Kind   `json:"kind" yaml:"kind"`
}

// Match is a site attributed to a dependency. It is the unit a single file
// scan produces and the unit the scan cache stores.
type Match struct {
	Dependency string `json:"dependency"`
	Site       Site   `json:"site"`
}

// Index maps every declared dependency to its sites in insertion order.
type Index struct {
	sites map[string][]Site
	files []string
}

// NewIndex creates an index with an empty entry for every record, so a
// declared but unreferenced dependency has a key with no sites.
func NewIndex(records []manifest.DependencyRecord) *Index {
	ix := &Index{sites: make(map[string][]Site, len(records))}
	for _, r := range records {
		ix.sites[r.Name] = []Site{}
	}
	return ix
}

// Add appends a site for name.
func (ix *Index) Add(name string, site Site) {
	ix.sites[name] = append(ix.sites[name], site)
}

// Sites returns the sites recorded for name, or nil when name is unknown.
func (ix *Index) Sites(name string) []Site {
	return ix.sites[name]
}

// Has reports whether name is a key of the index.
func (ix *Index) Has(name string) bool {
	_, ok := ix.sites[name]
	return ok
}

// Names returns the index keys in sorted order.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.sites))
	for name := range ix.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns the root-relative paths of every scanned file, sorted.
func (ix *Index) Files() []string {
	return ix.files
}

// Total returns the number of sites across all dependencies.
func (ix *Index) Total() int {
	n := 0
	for _, s := range ix.sites {
		n += len(s)
	}
	return n
}

// MarshalJSON encodes the index as a name -> sites object.
func (ix *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.sites)
}

// WarningCode identifies a recoverable condition.
type WarningCode string

const (
	WarnParseFallback  WarningCode = "PARSE_FALLBACK"
	WarnFileUnreadable WarningCode = "FILE_UNREADABLE"
	WarnFileTooLarge   WarningCode = "FILE_TOO_LARGE"
	WarnDirUnreadable  WarningCode = "DIR_UNREADABLE"

	// Raised by the orchestrator rather than the scanner
	WarnLockfileInvalid  WarningCode = "LOCKFILE_INVALID"
	WarnCacheUnavailable WarningCode = "CACHE_UNAVAILABLE"
)

// Warning is a recoverable condition met during analysis. It never aborts
// the run.
type Warning struct {
	Code    WarningCode `json:"code" yaml:"code"`
	File    string      `json:"file,omitempty" yaml:"file,omitempty"`
	Message string      `json:"message" yaml:"message"`
}
