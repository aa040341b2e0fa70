// Package manifest reads dependency declarations from project manifests and
// normalizes them into DependencyRecord values.
package manifest

import (
	"fmt"
	"strings"
)

// Class is the declaration class of a dependency.
type Class string

const (
	// Runtime dependencies are linked into the shipped artifact.
	Runtime Class = "runtime"
	// Development dependencies are only used by tests, examples and benches.
	Development Class = "development"
	// BuildTime dependencies are only used by build scripts.
	BuildTime Class = "build"
)

// ParseClass converts a class name (or a common alias) into a Class.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "runtime", "normal", "":
		return Runtime, nil
	case "development", "dev":
		return Development, nil
	case "build", "buildtime", "build-time":
		return BuildTime, nil
	default:
		return "", fmt.Errorf("unknown dependency class %q", s)
	}
}

// DependencyRecord describes one declared dependency.
type DependencyRecord struct {
	// Name is the key under which the dependency is declared. Unique within a run.
	Name string `json:"name"`

	// VersionConstraint is the raw version requirement, empty when absent
	VersionConstraint string `json:"version,omitempty"`

	// Features are the feature flags enabled in the manifest, in declaration order
	Features []string `json:"features,omitempty"`

	Optional bool  `json:"optional"`
	Class    Class `json:"class"`

	// DeclaredIn identifies the manifest (and table) the record came from
	DeclaredIn string `json:"declaredIn"`

	// Package is the upstream package name when the manifest renames it
	Package string `json:"package,omitempty"`
}

// SourceName returns the identifier used for the dependency in source code.
// Rust crates declared with dashes are referenced with underscores.
func (r DependencyRecord) SourceName() string {
	return strings.ReplaceAll(r.Name, "-", "_")
}

// HasFeature reports whether the record declares the given feature.
func (r DependencyRecord) HasFeature(feature string) bool {
	for _, f := range r.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Names returns the record names in order.
func Names(records []DependencyRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the record with the given name.
func Lookup(records []DependencyRecord, name string) (DependencyRecord, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return DependencyRecord{}, false
}

// Filter drops development or build-time records when they are not wanted.
func Filter(records []DependencyRecord, includeDev, includeBuild bool) []DependencyRecord {
	out := make([]DependencyRecord, 0, len(records))
	for _, r := range records {
		if r.Class == Development && !includeDev {
			continue
		}
		if r.Class == BuildTime && !includeBuild {
			continue
		}
		out = append(out, r)
	}
	return out
}

// dedupe keeps the first record for every name. It returns the names that
// were dropped so callers can log them.
func dedupe(records []DependencyRecord) ([]DependencyRecord, []string) {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	var dropped []string
	for _, r := range records {
		if seen[r.Name] {
			dropped = append(dropped, r.Name)
			continue
		}
		seen[r.Name] = true
		out = append(out, r)
	}
	return out, dropped
}
