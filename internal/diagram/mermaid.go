// File path: internal/diagram/mermaid.go
package diagram

import (
	"strings"

	"github.com/legacylens/legacylens/internal/cobol"
)

// Mermaid renders a call graph as a mermaid flowchart. Edges come first, one
// per PERFORM occurrence, followed by a definition line per node so isolated
// paragraphs still show up. A nil or empty graph renders an empty chart.
func Mermaid(graph *cobol.CallGraph) string {
	var b strings.Builder
	b.WriteString("graph TD;\n")
	if graph == nil {
		return b.String()
	}
	for _, edge := range graph.Edges {
		b.WriteString("    ")
		b.WriteString(nodeID(edge.From))
		b.WriteString(" --> ")
		b.WriteString(nodeID(edge.To))
		b.WriteString(";\n")
	}
	for _, node := range graph.Nodes {
		b.WriteString("    ")
		b.WriteString(nodeID(node))
		b.WriteString("[\"")
		b.WriteString(node)
		b.WriteString("\"];\n")
	}
	return b.String()
}

// nodeID converts a paragraph name into a mermaid-safe identifier.
func nodeID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
