//go:build !cgo

package usage

import "context"

// SyntaxAvailable reports whether tree-sitter parsing is compiled in.
// Returns false when CGO is disabled.
func SyntaxAvailable() bool {
	return false
}

// scanSyntax always fails in non-CGO builds; every file takes the heuristic pass.
func scanSyntax(ctx context.Context, file string, source []byte, m *matcher) ([]Match, error) {
	return nil, ErrNoCGO
}
