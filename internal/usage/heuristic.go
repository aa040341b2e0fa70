package usage

import (
	"bufio"
	"bytes"
	"regexp"
	"sort"
	"strings"
)

// Patterns for the degraded pass. Each captures the imported path or
// module specifier.
var (
	rustPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:pub(?:\s*\([^)]*\))?\s+)?use\s+([^;{]+)`),
		regexp.MustCompile(`^\s*(?:pub(?:\s*\([^)]*\))?\s+)?extern\s+crate\s+([A-Za-z_][A-Za-z0-9_]*)`),
	}

	// JavaScript statements may span lines (formatted import lists), so these
	// run over the whole source. The from-clause patterns stop at ';' or a
	// quote, which keeps them inside one statement.
	jsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bimport\s+[^;'"]*?\bfrom\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`\bexport\s+[^;'"]*?\bfrom\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`(?m)^[ \t]*import\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	}
)

// scanRustLines is the fallback for Rust files the parser rejected. Only
// import-style lines are recognized and every hit is an Import site.
func scanRustLines(file string, source []byte, m *matcher) []Match {
	var matches []Match
	forEachLine(source, func(lineNum int, line string) {
		for _, re := range rustPatterns {
			sub := re.FindStringSubmatch(line)
			if len(sub) < 2 {
				continue
			}
			path := strings.TrimSpace(sub[1])
			if i := strings.Index(path, " as "); i >= 0 {
				path = strings.TrimSpace(path[:i])
			}
			path = strings.TrimSuffix(strings.TrimPrefix(path, "::"), "::")
			if path == "" {
				continue
			}
			lead := strings.SplitN(path, "::", 2)[0]
			if dep, ok := m.resolve(lead); ok {
				matches = append(matches, Match{
					Dependency: dep,
					Site:       Site{File: file, Line: lineNum, Symbol: path, Kind: Import},
				})
			}
			break
		}
	})
	return matches
}

// scanJSLines finds import, export-from, require and dynamic import
// statements in JavaScript and TypeScript sources. A site's line is the line
// the statement starts on.
func scanJSLines(file string, source []byte, m *matcher) []Match {
	type hit struct {
		start int
		match Match
	}

	// Keyed by the specifier's offset so a statement two patterns agree on
	// is counted once
	seen := make(map[int]bool)
	var hits []hit
	for _, re := range jsPatterns {
		for _, loc := range re.FindAllSubmatchIndex(source, -1) {
			if seen[loc[2]] {
				continue
			}
			seen[loc[2]] = true
			specifier := strings.TrimSpace(string(source[loc[2]:loc[3]]))
			dep, ok := m.resolve(packageName(specifier))
			if !ok {
				continue
			}
			hits = append(hits, hit{start: loc[0], match: Match{
				Dependency: dep,
				Site:       Site{File: file, Line: lineAt(source, loc[0]), Symbol: specifier, Kind: Import},
			}})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, h.match)
	}
	return matches
}

// lineAt returns the 1-based line holding byte offset off.
func lineAt(source []byte, off int) int {
	return bytes.Count(source[:off], []byte{'\n'}) + 1
}

func forEachLine(source []byte, fn func(lineNum int, line string)) {
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), len(source)+1)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fn(lineNum, scanner.Text())
	}
}
