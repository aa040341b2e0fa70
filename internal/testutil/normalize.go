package testutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// volatileFields differ between runs and are dropped before comparison.
var volatileFields = map[string]bool{
	"runId":     true,
	"startedAt": true,
	"duration":  true,
	"timestamp": true,
}

// Normalize converts data to its generic JSON form, drops volatile fields
// and replaces projectRoot with "<project>". Slice order is preserved:
// usage-site order is part of the result.
func Normalize(t *testing.T, projectRoot string, data any) any {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}

	return normalizeValue(generic, projectRoot)
}

func normalizeValue(v any, projectRoot string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if volatileFields[k] {
				continue
			}
			out[k] = normalizeValue(item, projectRoot)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item, projectRoot)
		}
		return out
	case string:
		if projectRoot != "" {
			val = strings.ReplaceAll(val, projectRoot, "<project>")
		}
		return strings.ReplaceAll(val, "\\", "/")
	default:
		return v
	}
}

// MarshalNormalized normalizes data and marshals it to stable JSON bytes
// with 2-space indentation and a trailing newline. encoding/json sorts map
// keys, so output is canonical. HTML characters are not escaped.
func MarshalNormalized(t *testing.T, projectRoot string, data any) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Normalize(t, projectRoot, data)); err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return buf.Bytes()
}
