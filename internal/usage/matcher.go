package usage

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"why/internal/manifest"
)

// matcher resolves source identifiers to declared dependency names. It is
// built once per scan and shared read-only by every worker.
type matcher struct {
	// names in declaration order
	names []string
	// idents[i] are the spellings of names[i] as they appear in source
	idents [][]string
	// byIdent maps an exact spelling to its dependency name
	byIdent map[string]string
}

func newMatcher(records []manifest.DependencyRecord) *matcher {
	m := &matcher{
		names:   make([]string, 0, len(records)),
		idents:  make([][]string, 0, len(records)),
		byIdent: make(map[string]string, 2*len(records)),
	}
	for _, r := range records {
		spellings := []string{r.Name}
		if src := r.SourceName(); src != r.Name {
			spellings = append(spellings, src)
		}
		m.names = append(m.names, r.Name)
		m.idents = append(m.idents, spellings)
		for _, s := range spellings {
			if _, taken := m.byIdent[s]; !taken {
				m.byIdent[s] = r.Name
			}
		}
	}
	return m
}

// resolve returns the dependency a path segment names exactly.
func (m *matcher) resolve(segment string) (string, bool) {
	name, ok := m.byIdent[segment]
	return name, ok
}

// matchMacro attributes a macro by its leading segment: an exact match
// first, then the first dependency in declaration order whose name occurs
// in the segment. A dependency whose name is a substring of another
// identifier can capture that identifier's macros.
func (m *matcher) matchMacro(segment string) (string, bool) {
	if name, ok := m.resolve(segment); ok {
		return name, true
	}
	for i, spellings := range m.idents {
		for _, s := range spellings {
			if s != "" && strings.Contains(segment, s) {
				return m.names[i], true
			}
		}
	}
	return "", false
}

// packageName extracts the package part of a JavaScript module specifier:
// "lodash/fp" -> "lodash", "@scope/pkg/sub" -> "@scope/pkg". Relative,
// absolute and node: specifiers have none.
func packageName(specifier string) string {
	if specifier == "" || strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, "node:") {
		return ""
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// fingerprint identifies the dependency set, profile and scan mode a cached
// file result was computed against. Results from a build without tree-sitter
// hold import sites only and must not be reused by one with it.
func (m *matcher) fingerprint(p Profile) string {
	return m.fingerprintFor(p, SyntaxAvailable())
}

func (m *matcher) fingerprintFor(p Profile, syntax bool) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(scannerVersion))
	h.Write([]byte{0})
	h.Write([]byte(p.Language))
	h.Write([]byte{0})
	if syntax {
		h.Write([]byte("syntax"))
	} else {
		h.Write([]byte("lines"))
	}
	for _, name := range m.names {
		h.Write([]byte{0})
		h.Write([]byte(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}
