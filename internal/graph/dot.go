package graph

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// NodeStyle returns extra Graphviz attributes for a node, such as
// `color=red`, or "" for none.
type NodeStyle func(name string) string

// WriteDOT writes the graph in Graphviz DOT format. Nodes appear in
// declaration order and edges grouped by source.
func (g *Graph) WriteDOT(w io.Writer, style NodeStyle) error {
	if _, err := fmt.Fprintln(w, "digraph dependencies {"); err != nil {
		return err
	}
	for _, n := range g.nodes {
		attrs := ""
		if style != nil {
			if s := style(n); s != "" {
				attrs = " [" + s + "]"
			}
		}
		if _, err := fmt.Fprintf(w, "  %s%s;\n", strconv.Quote(n), attrs); err != nil {
			return err
		}
	}
	for _, e := range g.Edges() {
		if _, err := fmt.Fprintf(w, "  %s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// DOT returns the graph in Graphviz DOT format.
func (g *Graph) DOT() string {
	var buf bytes.Buffer
	_ = g.WriteDOT(&buf, nil)
	return buf.String()
}
