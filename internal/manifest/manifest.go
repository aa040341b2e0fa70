package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	whyerrors "why/internal/errors"
	"why/internal/slogutil"
)

// Kind identifies a supported manifest format.
type Kind string

const (
	KindCargo Kind = "cargo"
	KindNPM   Kind = "npm"
)

// Well-known manifest and lock file names
const (
	CargoToml       = "Cargo.toml"
	CargoLock       = "Cargo.lock"
	PackageJSON     = "package.json"
	PackageLockJSON = "package-lock.json"
)

// searchOrder is the order manifests are looked for inside one directory.
var searchOrder = []string{CargoToml, PackageJSON}

// skipDirs are never descended into while searching for a manifest.
var skipDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	".git":         true,
}

// DetectKind resolves the manifest kind from a file name.
func DetectKind(path string) (Kind, error) {
	switch filepath.Base(path) {
	case CargoToml:
		return KindCargo, nil
	case PackageJSON:
		return KindNPM, nil
	default:
		return "", fmt.Errorf("unsupported manifest file: %s", path)
	}
}

// FileName returns the manifest file name for a kind.
func (k Kind) FileName() string {
	switch k {
	case KindCargo:
		return CargoToml
	case KindNPM:
		return PackageJSON
	default:
		return ""
	}
}

// LockFileName returns the lock file name for a kind.
func (k Kind) LockFileName() string {
	switch k {
	case KindCargo:
		return CargoLock
	case KindNPM:
		return PackageLockJSON
	default:
		return ""
	}
}

// Manifest is a parsed manifest.
type Manifest struct {
	Path    string
	Kind    Kind
	Records []DependencyRecord
}

// Find locates the project manifest. The root directory is checked first;
// subdirectories are then searched breadth-first up to maxDepth levels.
func Find(root string, maxDepth int) (string, error) {
	level := []string{root}
	for depth := 0; depth <= maxDepth && len(level) > 0; depth++ {
		var next []string
		for _, dir := range level {
			for _, name := range searchOrder {
				candidate := filepath.Join(dir, name)
				if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
					return candidate, nil
				}
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if !e.IsDir() || skipDirs[e.Name()] || strings.HasPrefix(e.Name(), ".") {
					continue
				}
				next = append(next, filepath.Join(dir, e.Name()))
			}
		}
		level = next
	}

	return "", whyerrors.New(whyerrors.ManifestNotFound,
		fmt.Sprintf("no %s or %s found in %s", CargoToml, PackageJSON, root), nil)
}

// Parse reads the manifest at path. The format is resolved once from the file
// name and every format is normalized into the same record shape.
func Parse(path string, logger *slog.Logger) (*Manifest, error) {
	logger = slogutil.OrDiscard(logger)

	kind, err := DetectKind(path)
	if err != nil {
		return nil, whyerrors.New(whyerrors.ManifestInvalid, "cannot determine manifest format", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, whyerrors.New(whyerrors.ManifestInvalid, "failed to read "+path, err)
	}

	var records []DependencyRecord
	switch kind {
	case KindCargo:
		records, err = parseCargo(data)
	case KindNPM:
		records, err = parsePackageJSON(data)
	}
	if err != nil {
		return nil, whyerrors.New(whyerrors.ManifestInvalid, "failed to parse "+path, err)
	}

	records, dropped := dedupe(records)
	for _, name := range dropped {
		logger.Debug("Dependency declared more than once, keeping first declaration",
			"dependency", name,
			"manifest", path,
		)
	}

	logger.Info("Parsed manifest",
		"path", path,
		"kind", string(kind),
		"dependencies", len(records),
	)

	return &Manifest{Path: path, Kind: kind, Records: records}, nil
}
