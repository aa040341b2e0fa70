// Package paths resolves the project root and converts between absolute and
// project-relative paths. Project-relative paths always use forward slashes.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	whyerrors "why/internal/errors"
)

// WhyDirName is the per-project state directory (scan cache and friends).
const WhyDirName = ".why"

// ResolveProjectRoot returns the absolute, symlink-resolved project root.
// A missing or non-directory root is reported as PROJECT_UNREADABLE.
func ResolveProjectRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", whyerrors.New(whyerrors.ProjectUnreadable, "cannot resolve "+path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", whyerrors.New(whyerrors.ProjectUnreadable, "cannot resolve "+abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", whyerrors.New(whyerrors.ProjectUnreadable, "cannot stat "+resolved, err)
	}
	if !info.IsDir() {
		return "", whyerrors.New(whyerrors.ProjectUnreadable, resolved+" is not a directory", nil)
	}

	return resolved, nil
}

// CanonicalizePath converts an absolute path to a project-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to project root
// - Returns project-relative path with forward slashes
func CanonicalizePath(absolutePath string, projectRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(projectRoot)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = projectRoot
		} else {
			return "", err
		}
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(rel), nil
}

// IsWithinProject checks if a path is within the project root
func IsWithinProject(path string, projectRoot string) bool {
	canonical, err := CanonicalizePath(path, projectRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
}

// JoinProjectPath joins a project root with a canonical path
func JoinProjectPath(projectRoot string, canonicalPath string) string {
	parts := strings.Split(NormalizePath(canonicalPath), "/")
	return filepath.Join(append([]string{projectRoot}, parts...)...)
}

// ResolveInProject returns p unchanged when it is absolute and joined onto
// the project root otherwise. Config paths such as the cache location are
// relative to the project.
func ResolveInProject(projectRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return JoinProjectPath(projectRoot, p)
}

// WhyDir returns the state directory for a project.
func WhyDir(projectRoot string) string {
	return filepath.Join(projectRoot, WhyDirName)
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
