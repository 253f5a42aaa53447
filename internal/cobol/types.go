// File path: internal/cobol/types.go
package cobol

// Canonical division names. The parser normalizes any procedure-division
// header variant (USING/CHAINING parameter clauses) to DivisionProcedure.
const (
	DivisionIdentification = "IDENTIFICATION"
	DivisionEnvironment    = "ENVIRONMENT"
	DivisionData           = "DATA"
	DivisionProcedure      = "PROCEDURE"
)

// Program is the parsed representation of one COBOL source file. It owns its
// divisions exclusively; the tree carries no back-references and is immutable
// once ParseProgram returns.
type Program struct {
	Filename    string     `json:"filename"`
	ProgramName string     `json:"program_name"`
	Content     string     `json:"content"`
	Divisions   []Division `json:"divisions"`
}

// Division is a top-level structural block. CallGraph is populated only for
// the PROCEDURE division.
type Division struct {
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	Sections  []Section  `json:"sections"`
	CallGraph *CallGraph `json:"call_graph,omitempty"`
}

// Section is a named sub-block within a division. Paragraphs are populated
// only inside the PROCEDURE division.
type Section struct {
	Name       string      `json:"name"`
	Code       string      `json:"code"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
}

// Paragraph is the unit of control-transfer targeting. Calls lists PERFORM
// targets in order of occurrence, uppercased, duplicates preserved.
type Paragraph struct {
	Name  string   `json:"name"`
	Code  string   `json:"code"`
	Calls []string `json:"calls,omitempty"`
}

// CallGraph is the derived node/edge view over a PROCEDURE division. Nodes
// are paragraph names plus every referenced call target, deduplicated in
// order of first appearance; edges keep one entry per PERFORM occurrence.
// The graph is keyed by name on purpose: it holds no references into the
// Paragraph tree, so dangling targets are ordinary nodes.
type CallGraph struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Edge is a single caller -> callee control-transfer reference.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}
