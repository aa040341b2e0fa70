package manifest

import (
	"encoding/json"
	"sort"
)

// packageJSON is the subset of package.json the analyzer reads.
type packageJSON struct {
	Dependencies         map[string]interface{} `json:"dependencies"`
	DevDependencies      map[string]interface{} `json:"devDependencies"`
	OptionalDependencies map[string]interface{} `json:"optionalDependencies"`
}

// parsePackageJSON normalizes package.json dependency maps into records.
// Non-string versions are skipped; peerDependencies are not the project's
// own dependencies and are ignored. A name listed in both dependencies and
// optionalDependencies is optional, with the optionalDependencies version,
// as npm resolves it.
func parsePackageJSON(data []byte) ([]DependencyRecord, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	required := make(map[string]interface{}, len(pkg.Dependencies))
	for name, version := range pkg.Dependencies {
		if _, optional := pkg.OptionalDependencies[name]; !optional {
			required[name] = version
		}
	}

	var records []DependencyRecord
	records = append(records, npmRecords(required, Runtime, false)...)
	records = append(records, npmRecords(pkg.DevDependencies, Development, false)...)
	records = append(records, npmRecords(pkg.OptionalDependencies, Runtime, true)...)
	return records, nil
}

func npmRecords(deps map[string]interface{}, class Class, optional bool) []DependencyRecord {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]DependencyRecord, 0, len(names))
	for _, name := range names {
		version, ok := deps[name].(string)
		if !ok {
			continue
		}
		records = append(records, DependencyRecord{
			Name:              name,
			VersionConstraint: version,
			Optional:          optional,
			Class:             class,
			DeclaredIn:        PackageJSON,
		})
	}
	return records
}
