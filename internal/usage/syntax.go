//go:build cgo

package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// errSyntax marks a file whose tree contains ERROR nodes.
var errSyntax = errors.New("syntax tree contains errors")

// SyntaxAvailable reports whether tree-sitter parsing is compiled in.
func SyntaxAvailable() bool {
	return true
}

// scanSyntax parses a Rust file and walks its tree. A tree with ERROR nodes
// is rejected so the caller can fall back to the line heuristic.
func scanSyntax(ctx context.Context, file string, source []byte, m *matcher) ([]Match, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, errSyntax
	}

	v := &visitor{
		deps:    m,
		file:    file,
		source:  source,
		aliases: make(map[string]string),
	}
	v.collectAliases(root)
	v.record = true
	v.walk(root)
	return v.matches, nil
}

// visitor walks one file. The matcher is shared and read-only; the alias
// table and matches belong to this file alone.
type visitor struct {
	deps   *matcher
	file   string
	source []byte

	// aliases maps a locally bound name to its qualified origin, for names
	// whose origin resolves to a dependency
	aliases map[string]string

	// record is false during the alias pre-pass
	record  bool
	matches []Match
}

func (v *visitor) text(n *sitter.Node) string {
	return n.Content(v.source)
}

func (v *visitor) add(dep string, n *sitter.Node, symbol string, kind Kind) {
	if !v.record {
		return
	}
	v.matches = append(v.matches, Match{
		Dependency: dep,
		Site: Site{
			File:   v.file,
			Line:   int(n.StartPoint().Row) + 1,
			Symbol: symbol,
			Kind:   kind,
		},
	})
}

// collectAliases binds every imported name before references are visited,
// since Rust items may be used before the use declaration that brings them
// into scope.
func (v *visitor) collectAliases(n *sitter.Node) {
	switch n.Type() {
	case "use_declaration":
		if arg := n.ChildByFieldName("argument"); arg != nil {
			v.visitUse(arg, nil)
		}
		return
	case "extern_crate_declaration":
		v.visitExternCrate(n)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		v.collectAliases(n.NamedChild(i))
	}
}

func (v *visitor) walk(n *sitter.Node) {
	switch n.Type() {
	case "use_declaration":
		if arg := n.ChildByFieldName("argument"); arg != nil {
			v.visitUse(arg, nil)
		}
		return

	case "extern_crate_declaration":
		v.visitExternCrate(n)
		return

	case "macro_invocation":
		macro := n.ChildByFieldName("macro")
		if macro != nil {
			v.visitMacro(macro)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "token_tree" {
				v.walk(child)
			}
		}
		return

	case "scoped_identifier", "scoped_type_identifier":
		v.visitPath(n, n, false)
		return

	case "generic_function":
		if fn := n.ChildByFieldName("function"); fn != nil {
			v.visitPath(n, fn, true)
		}
		if args := n.ChildByFieldName("type_arguments"); args != nil {
			v.walk(args)
		}
		return

	case "generic_type":
		if typ := n.ChildByFieldName("type"); typ != nil {
			v.visitPath(n, typ, true)
		}
		if args := n.ChildByFieldName("type_arguments"); args != nil {
			v.walk(args)
		}
		return

	case "identifier", "type_identifier":
		// Bare names count only when an import bound them
		if _, bound := v.aliases[v.text(n)]; bound {
			v.visitPath(n, n, false)
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		v.walk(n.NamedChild(i))
	}
}

// visitUse handles one use tree under prefix. Leaves resolving to a
// dependency produce an Import site and an alias binding.
func (v *visitor) visitUse(n *sitter.Node, prefix []string) {
	switch n.Type() {
	case "use_list":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			v.visitUse(n.NamedChild(i), prefix)
		}

	case "scoped_use_list":
		p := prefix
		if path := n.ChildByFieldName("path"); path != nil {
			p = join(prefix, v.segments(path))
		}
		if list := n.ChildByFieldName("list"); list != nil {
			v.visitUse(list, p)
		}

	case "use_as_clause":
		path := n.ChildByFieldName("path")
		alias := n.ChildByFieldName("alias")
		if path == nil {
			return
		}
		full := trimSelf(join(prefix, v.segments(path)))
		local := ""
		if alias != nil {
			local = v.text(alias)
		}
		v.importLeaf(n, full, local)

	case "use_wildcard":
		var full []string
		if n.NamedChildCount() > 0 {
			full = join(prefix, v.segments(n.NamedChild(0)))
		} else {
			full = prefix
		}
		if len(full) == 0 {
			return
		}
		expanded := v.expand(full)
		if dep, ok := v.deps.resolve(expanded[0]); ok {
			v.add(dep, n, strings.Join(expanded, "::")+"::*", Import)
		}

	default:
		full := trimSelf(join(prefix, v.segments(n)))
		if len(full) == 0 {
			return
		}
		v.importLeaf(n, full, full[len(full)-1])
	}
}

// importLeaf records one imported path and binds local to it. An empty or
// "_" local name binds nothing.
func (v *visitor) importLeaf(n *sitter.Node, full []string, local string) {
	if len(full) == 0 {
		return
	}
	expanded := v.expand(full)
	dep, ok := v.deps.resolve(expanded[0])
	if !ok {
		return
	}
	origin := strings.Join(expanded, "::")
	v.add(dep, n, origin, Import)
	if local != "" && local != "_" && !v.record {
		v.aliases[local] = origin
	}
}

func (v *visitor) visitExternCrate(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	crate := v.text(name)
	dep, ok := v.deps.resolve(crate)
	if !ok {
		return
	}
	v.add(dep, n, crate, Import)

	if v.record {
		return
	}
	local := crate
	if alias := n.ChildByFieldName("alias"); alias != nil {
		local = v.text(alias)
	}
	if local != "_" {
		v.aliases[local] = crate
	}
}

func (v *visitor) visitMacro(macro *sitter.Node) {
	segs := v.segments(macro)
	if len(segs) == 0 {
		return
	}
	expanded := v.expand(segs)
	if dep, ok := v.deps.matchMacro(expanded[0]); ok {
		v.add(dep, macro, strings.Join(expanded, "::"), MacroInvocation)
	}
}

// visitPath classifies the outermost path node pathNode, reporting the site
// at at. generic is set when the path carries type arguments.
func (v *visitor) visitPath(at, pathNode *sitter.Node, generic bool) {
	segs := v.segments(pathNode)
	if len(segs) == 0 {
		// Not an identifier chain, e.g. <serde_json::Value as Default>::default;
		// dependency paths can still sit inside it
		for i := 0; i < int(pathNode.NamedChildCount()); i++ {
			v.walk(pathNode.NamedChild(i))
		}
		return
	}
	expanded := v.expand(segs)
	dep, ok := v.deps.resolve(expanded[0])
	if !ok {
		return
	}
	v.add(dep, at, strings.Join(expanded, "::"), classify(segs, generic))
}

// segments flattens a path node into its textual segments. Paths that are
// not plain identifier chains (qualified self types, for instance) yield nil.
func (v *visitor) segments(n *sitter.Node) []string {
	switch n.Type() {
	case "identifier", "type_identifier", "self", "super", "crate", "metavariable":
		return []string{v.text(n)}
	case "scoped_identifier", "scoped_type_identifier":
		var segs []string
		if path := n.ChildByFieldName("path"); path != nil {
			segs = v.segments(path)
			if segs == nil {
				return nil
			}
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return append(segs, v.text(name))
	case "generic_type":
		if typ := n.ChildByFieldName("type"); typ != nil {
			return v.segments(typ)
		}
	}
	return nil
}

// expand replaces a leading alias with its qualified origin.
func (v *visitor) expand(segs []string) []string {
	origin, ok := v.aliases[segs[0]]
	if !ok {
		return segs
	}
	out := strings.Split(origin, "::")
	return append(out, segs[1:]...)
}

// classify applies the path-shape heuristic to the observed segments.
func classify(segs []string, generic bool) Kind {
	last := segs[len(segs)-1]
	if last == "" {
		return Other
	}
	first := []rune(last)[0]
	switch {
	case unicode.IsLower(first) && !generic:
		return FunctionCall
	case unicode.IsUpper(first) && len(segs) > 1:
		return TraitOrInterfaceReference
	case unicode.IsUpper(first):
		return TypeReference
	default:
		return Other
	}
}

func join(prefix, segs []string) []string {
	out := make([]string, 0, len(prefix)+len(segs))
	out = append(out, prefix...)
	return append(out, segs...)
}

// trimSelf turns "a::b::self" into "a::b".
func trimSelf(segs []string) []string {
	if n := len(segs); n > 1 && segs[n-1] == "self" {
		return segs[:n-1]
	}
	return segs
}
