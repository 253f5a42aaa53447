// File path: internal/cobol/callgraph.go
package cobol

// buildCallGraph derives the directed call graph for a PROCEDURE division.
// Nodes are every defined paragraph name plus every referenced PERFORM
// target, in order of first appearance; a target with no matching paragraph
// stays in the node set as a dangling reference. Edges keep one entry per
// PERFORM occurrence, so a paragraph calling the same target twice yields
// two edges.
func buildCallGraph(division Division) *CallGraph {
	graph := &CallGraph{}
	seen := make(map[string]struct{})
	addNode := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		graph.Nodes = append(graph.Nodes, name)
	}
	for _, section := range division.Sections {
		for _, paragraph := range section.Paragraphs {
			addNode(paragraph.Name)
			for _, callee := range paragraph.Calls {
				addNode(callee)
				graph.Edges = append(graph.Edges, Edge{From: paragraph.Name, To: callee})
			}
		}
	}
	return graph
}
