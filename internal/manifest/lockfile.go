package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	whyerrors "why/internal/errors"
)

// Edge is a resolved "depends-on" relationship between two declared
// dependencies, taken from a lock file.
type Edge struct {
	From string
	To   string
}

// cargoLock is the subset of Cargo.lock the analyzer reads.
type cargoLock struct {
	Package []struct {
		Name         string   `toml:"name"`
		Version      string   `toml:"version"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"package"`
}

// packageLock is the subset of a lockfileVersion >= 2 package-lock.json.
type packageLock struct {
	LockfileVersion int `json:"lockfileVersion"`
	Packages        map[string]struct {
		Dependencies         map[string]string `json:"dependencies"`
		OptionalDependencies map[string]string `json:"optionalDependencies"`
	} `json:"packages"`
}

// LoadEdges reads the lock file next to the manifest and returns the direct
// edges between declared dependencies, sorted by (From, To). A missing lock
// file yields no edges and no error. An unreadable or malformed lock file is
// reported as LOCKFILE_INVALID; callers treat it as recoverable.
func LoadEdges(projectRoot string, kind Kind, records []DependencyRecord) ([]Edge, error) {
	path := filepath.Join(projectRoot, kind.LockFileName())
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, whyerrors.New(whyerrors.LockfileInvalid, "cannot stat "+path, err)
	}

	declared := declaredPackages(records)

	var (
		edges []Edge
		err   error
	)
	switch kind {
	case KindCargo:
		edges, err = cargoLockEdges(path, declared)
	case KindNPM:
		edges, err = packageLockEdges(path, declared)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, whyerrors.New(whyerrors.LockfileInvalid, "failed to read "+path, err)
	}

	return sortEdges(edges), nil
}

// declaredPackages maps every upstream package name to the declared record
// name. Renamed Cargo dependencies are known by their package name in the lock.
func declaredPackages(records []DependencyRecord) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.Name] = r.Name
		if r.Package != "" {
			m[r.Package] = r.Name
		}
	}
	return m
}

func cargoLockEdges(path string, declared map[string]string) ([]Edge, error) {
	var lock cargoLock
	if _, err := toml.DecodeFile(path, &lock); err != nil {
		return nil, err
	}

	var edges []Edge
	for _, pkg := range lock.Package {
		from, ok := declared[pkg.Name]
		if !ok {
			continue
		}
		for _, dep := range pkg.Dependencies {
			// "name", "name version" or "name version (source)"
			depName := strings.Fields(dep)
			if len(depName) == 0 {
				continue
			}
			if to, ok := declared[depName[0]]; ok {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges, nil
}

func packageLockEdges(path string, declared map[string]string) ([]Edge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lock packageLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, err
	}

	var edges []Edge
	for key, pkg := range lock.Packages {
		idx := strings.LastIndex(key, "node_modules/")
		if idx < 0 {
			// "" is the root project itself
			continue
		}
		from, ok := declared[key[idx+len("node_modules/"):]]
		if !ok {
			continue
		}
		for dep := range pkg.Dependencies {
			if to, ok := declared[dep]; ok {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
		for dep := range pkg.OptionalDependencies {
			if to, ok := declared[dep]; ok {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges, nil
}

// sortEdges orders edges and drops duplicates. Lock files may list several
// versions of one package, each producing the same edge.
func sortEdges(edges []Edge) []Edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	out := edges[:0]
	for _, e := range edges {
		if len(out) > 0 && out[len(out)-1] == e {
			continue
		}
		out = append(out, e)
	}
	return out
}
