// File path: internal/diagram/mermaid_test.go
package diagram

import (
	"strings"
	"testing"

	"github.com/legacylens/legacylens/internal/cobol"
)

func TestMermaidRendersEdgesAndNodes(t *testing.T) {
	graph := &cobol.CallGraph{
		Nodes: []string{"MAIN-PARA", "SUB-PARA", "LONELY-PARA"},
		Edges: []cobol.Edge{{From: "MAIN-PARA", To: "SUB-PARA"}},
	}
	out := Mermaid(graph)
	if !strings.HasPrefix(out, "graph TD;\n") {
		t.Fatalf("missing chart header: %q", out)
	}
	if !strings.Contains(out, "MAIN_PARA --> SUB_PARA;") {
		t.Fatalf("missing edge: %q", out)
	}
	if !strings.Contains(out, `LONELY_PARA["LONELY-PARA"];`) {
		t.Fatalf("isolated node missing: %q", out)
	}
}

func TestMermaidDuplicateEdges(t *testing.T) {
	graph := &cobol.CallGraph{
		Nodes: []string{"A", "B"},
		Edges: []cobol.Edge{{From: "A", To: "B"}, {From: "A", To: "B"}},
	}
	out := Mermaid(graph)
	if strings.Count(out, "A --> B;") != 2 {
		t.Fatalf("expected one line per PERFORM occurrence: %q", out)
	}
}

func TestMermaidNilGraph(t *testing.T) {
	if out := Mermaid(nil); out != "graph TD;\n" {
		t.Fatalf("unexpected empty chart: %q", out)
	}
}
