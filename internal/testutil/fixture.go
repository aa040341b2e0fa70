// Package testutil provides fixture projects and golden-file helpers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Project is a throwaway project tree under t.TempDir().
type Project struct {
	// Root is the absolute, symlink-resolved project directory
	Root string
}

// WriteProject creates a project from a map of slash-separated relative
// paths to file contents, failing the test on error.
func WriteProject(t *testing.T, files map[string]string) *Project {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}

	p := &Project{Root: root}

	// Deterministic creation order keeps failures reproducible
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p.Write(t, name, files[name])
	}
	return p
}

// Path returns the absolute path of a project-relative file.
func (p *Project) Path(rel string) string {
	return filepath.Join(append([]string{p.Root}, strings.Split(rel, "/")...)...)
}

// Write creates or replaces a project file.
func (p *Project) Write(t *testing.T, rel, content string) {
	t.Helper()

	path := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

// Remove deletes a project file.
func (p *Project) Remove(t *testing.T, rel string) {
	t.Helper()

	if err := os.Remove(p.Path(rel)); err != nil {
		t.Fatalf("Failed to remove %s: %v", rel, err)
	}
}

// CargoManifest renders a minimal Cargo.toml. deps is appended verbatim
// after the [package] table.
func CargoManifest(deps string) string {
	return "[package]\nname = \"fixture\"\nversion = \"0.1.0\"\nedition = \"2021\"\n\n" + deps
}
