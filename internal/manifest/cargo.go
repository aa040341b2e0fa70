package manifest

import (
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// cargoTables maps Cargo dependency table names to record classes, in the
// order records are emitted.
var cargoTables = []struct {
	key   string
	class Class
}{
	{"dependencies", Runtime},
	{"dev-dependencies", Development},
	{"build-dependencies", BuildTime},
}

// parseCargo extracts dependency records from Cargo.toml content.
func parseCargo(data []byte) ([]DependencyRecord, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var records []DependencyRecord
	for _, t := range cargoTables {
		if table, ok := doc[t.key].(map[string]interface{}); ok {
			records = append(records, extractCargoTable(table, t.class, CargoToml)...)
		}
	}

	// [target.'cfg(...)'.dependencies] and friends
	if targets, ok := doc["target"].(map[string]interface{}); ok {
		for _, cfg := range sortedKeys(targets) {
			targetDoc, ok := targets[cfg].(map[string]interface{})
			if !ok {
				continue
			}
			declaredIn := CargoToml + " [target." + cfg + "]"
			for _, t := range cargoTables {
				if table, ok := targetDoc[t.key].(map[string]interface{}); ok {
					records = append(records, extractCargoTable(table, t.class, declaredIn)...)
				}
			}
		}
	}

	return records, nil
}

// extractCargoTable converts one dependency table. Entries are either a bare
// version string or a table; anything else is skipped.
func extractCargoTable(table map[string]interface{}, class Class, declaredIn string) []DependencyRecord {
	records := make([]DependencyRecord, 0, len(table))

	for _, name := range sortedKeys(table) {
		rec := DependencyRecord{
			Name:       name,
			Class:      class,
			DeclaredIn: declaredIn,
		}

		switch v := table[name].(type) {
		case string:
			rec.VersionConstraint = v
		case map[string]interface{}:
			if version, ok := v["version"].(string); ok {
				rec.VersionConstraint = version
			}
			if features, ok := v["features"].([]interface{}); ok {
				for _, f := range features {
					if s, ok := f.(string); ok {
						rec.Features = append(rec.Features, s)
					}
				}
			}
			if optional, ok := v["optional"].(bool); ok {
				rec.Optional = optional
			}
			if pkg, ok := v["package"].(string); ok {
				rec.Package = pkg
			}
		default:
			continue
		}

		records = append(records, rec)
	}

	return records
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
