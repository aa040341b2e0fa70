package usage

import (
	"path/filepath"
	"strings"

	"why/internal/manifest"
)

// Language selects the per-file scan strategy.
type Language string

const (
	LangRust       Language = "rust"
	LangJavaScript Language = "javascript"
)

// Profile describes which files a project's sources live in.
type Profile struct {
	Language   Language
	Extensions []string
}

// ProfileFor returns the source profile for a manifest kind.
func ProfileFor(kind manifest.Kind) Profile {
	switch kind {
	case manifest.KindNPM:
		return Profile{
			Language:   LangJavaScript,
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"},
		}
	default:
		return Profile{Language: LangRust, Extensions: []string{".rs"}}
	}
}

// Matches reports whether path has one of the profile's extensions.
func (p Profile) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
