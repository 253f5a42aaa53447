// File path: internal/cobol/parser_test.go
package cobol

import (
	"strings"
	"testing"
)

const sampleProgram = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. PAYROLL.
       ENVIRONMENT DIVISION.
       DATA DIVISION.
       WORKING-STORAGE SECTION.
       01 WS-TOTAL PIC 9(7)V99.
       PROCEDURE DIVISION.
       MAIN-PARA.
           PERFORM INIT-PARA.
           PERFORM CALC-PARA UNTIL WS-DONE = 'Y'.
           STOP RUN.
       INIT-PARA.
           MOVE ZERO TO WS-TOTAL.
       CALC-PARA.
           ADD 1 TO WS-TOTAL.
           PERFORM INIT-PARA.
`

func TestParseProgramSequenceNumberedIdentification(t *testing.T) {
	content := "123456 IDENTIFICATION DIVISION.\n123456 PROGRAM-ID. FOO.\n"
	program := ParseProgram("foo.cbl", content)
	if program.ProgramName != "FOO" {
		t.Fatalf("expected program name FOO, got %s", program.ProgramName)
	}
	if len(program.Divisions) != 1 {
		t.Fatalf("expected 1 division, got %d", len(program.Divisions))
	}
	if program.Divisions[0].Name != DivisionIdentification {
		t.Fatalf("expected IDENTIFICATION division, got %s", program.Divisions[0].Name)
	}
}

func TestParseProgramProcedureParagraphsAndCalls(t *testing.T) {
	content := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. SAMPLE.",
		"       PROCEDURE DIVISION.",
		"       MAIN-PARA.",
		"           PERFORM SUB-PARA.",
		"       SUB-PARA.",
		"           DISPLAY 'DONE'.",
	}, "\n")
	program := ParseProgram("sample.cbl", content)

	proc := findDivision(t, program, DivisionProcedure)
	if proc.CallGraph == nil {
		t.Fatal("procedure division must carry a call graph")
	}
	paragraphs := allParagraphs(proc)
	if len(paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %v", len(paragraphs), paragraphNames(paragraphs))
	}
	if paragraphs[0].Name != "MAIN-PARA" || paragraphs[1].Name != "SUB-PARA" {
		t.Fatalf("unexpected paragraph names: %v", paragraphNames(paragraphs))
	}
	if len(paragraphs[0].Calls) != 1 || paragraphs[0].Calls[0] != "SUB-PARA" {
		t.Fatalf("unexpected MAIN-PARA calls: %v", paragraphs[0].Calls)
	}
	if len(proc.CallGraph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %v", proc.CallGraph.Edges)
	}
	edge := proc.CallGraph.Edges[0]
	if edge.From != "MAIN-PARA" || edge.To != "SUB-PARA" {
		t.Fatalf("unexpected edge: %+v", edge)
	}
}

func TestParseProgramDanglingPerformTarget(t *testing.T) {
	content := strings.Join([]string{
		"       PROCEDURE DIVISION.",
		"       MAIN-PARA.",
		"           PERFORM GHOST-PARA.",
	}, "\n")
	program := ParseProgram("ghost.cbl", content)
	proc := findDivision(t, program, DivisionProcedure)
	if !containsNode(proc.CallGraph, "GHOST-PARA") {
		t.Fatalf("dangling target missing from nodes: %v", proc.CallGraph.Nodes)
	}
	if len(proc.CallGraph.Edges) != 1 || proc.CallGraph.Edges[0].To != "GHOST-PARA" {
		t.Fatalf("unexpected edges: %v", proc.CallGraph.Edges)
	}
}

func TestParseProgramIgnoresCommentedPerform(t *testing.T) {
	content := strings.Join([]string{
		"       PROCEDURE DIVISION.",
		"       MAIN-PARA.",
		"123456*    PERFORM DEAD-PARA.",
		"           PERFORM LIVE-PARA.",
		"       LIVE-PARA.",
		"           STOP RUN.",
	}, "\n")
	program := ParseProgram("comment.cbl", content)
	proc := findDivision(t, program, DivisionProcedure)
	if containsNode(proc.CallGraph, "DEAD-PARA") {
		t.Fatalf("commented PERFORM leaked into graph: %v", proc.CallGraph.Nodes)
	}
	if !containsNode(proc.CallGraph, "LIVE-PARA") {
		t.Fatalf("expected LIVE-PARA node, got %v", proc.CallGraph.Nodes)
	}
}

func TestParseProgramUnknownNameAndDefaultDivision(t *testing.T) {
	program := ParseProgram("fragment.cbl", "MOVE A TO B.\nADD 1 TO C.")
	if program.ProgramName != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN, got %s", program.ProgramName)
	}
	if len(program.Divisions) != 1 || program.Divisions[0].Name != segmentDefault {
		t.Fatalf("expected single DEFAULT division, got %+v", program.Divisions)
	}
}

func TestParseProgramFullStructure(t *testing.T) {
	program := ParseProgram("payroll.cbl", sampleProgram)
	if program.ProgramName != "PAYROLL" {
		t.Fatalf("expected PAYROLL, got %s", program.ProgramName)
	}
	if len(program.Divisions) != 4 {
		t.Fatalf("expected 4 divisions, got %d", len(program.Divisions))
	}
	wantOrder := []string{DivisionIdentification, DivisionEnvironment, DivisionData, DivisionProcedure}
	for i, want := range wantOrder {
		if program.Divisions[i].Name != want {
			t.Fatalf("division %d: got %s want %s", i, program.Divisions[i].Name, want)
		}
	}

	data := findDivision(t, program, DivisionData)
	var sectionNames []string
	for _, section := range data.Sections {
		sectionNames = append(sectionNames, section.Name)
	}
	if len(sectionNames) != 1 || sectionNames[0] != "WORKING-STORAGE" {
		t.Fatalf("unexpected data sections: %v", sectionNames)
	}
	for _, section := range data.Sections {
		if section.Paragraphs != nil {
			t.Fatalf("non-procedure section must not carry paragraphs: %s", section.Name)
		}
	}

	proc := findDivision(t, program, DivisionProcedure)
	paragraphs := allParagraphs(proc)
	names := paragraphNames(paragraphs)
	want := []string{"MAIN-PARA", "INIT-PARA", "CALC-PARA"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected paragraphs: %v", names)
	}

	graph := proc.CallGraph
	// Every defined paragraph and every callee must be in the node set.
	for _, paragraph := range paragraphs {
		if !containsNode(graph, paragraph.Name) {
			t.Fatalf("paragraph %s missing from nodes", paragraph.Name)
		}
		for _, callee := range paragraph.Calls {
			if !containsNode(graph, callee) {
				t.Fatalf("callee %s missing from nodes", callee)
			}
		}
	}
	if len(graph.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %v", graph.Edges)
	}
}

func TestParseProgramProcedureWithSectionsAndHeaderParagraph(t *testing.T) {
	content := strings.Join([]string{
		"       PROCEDURE DIVISION.",
		"       CONTROL SECTION.",
		"           PERFORM SETUP-PARA.",
		"       SETUP-PARA.",
		"           MOVE 1 TO X.",
	}, "\n")
	program := ParseProgram("sections.cbl", content)
	proc := findDivision(t, program, DivisionProcedure)
	if len(proc.Sections) != 1 || proc.Sections[0].Name != "CONTROL" {
		t.Fatalf("unexpected sections: %+v", proc.Sections)
	}
	paragraphs := proc.Sections[0].Paragraphs
	if len(paragraphs) != 2 {
		t.Fatalf("expected header paragraph plus SETUP-PARA, got %v", paragraphNames(paragraphs))
	}
	if paragraphs[0].Name != "CONTROL-HEADER" {
		t.Fatalf("expected synthesized CONTROL-HEADER, got %s", paragraphs[0].Name)
	}
	if len(paragraphs[0].Calls) != 1 || paragraphs[0].Calls[0] != "SETUP-PARA" {
		t.Fatalf("header paragraph must keep its PERFORM: %v", paragraphs[0].Calls)
	}
}

func TestParseProgramProcedureUsingClause(t *testing.T) {
	content := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. SUBPROG.",
		"       PROCEDURE USING LNK-AREA DIVISION.",
		"       ENTRY-PARA.",
		"           GOBACK.",
	}, "\n")
	program := ParseProgram("subprog.cbl", content)
	proc := findDivision(t, program, DivisionProcedure)
	if proc.CallGraph == nil {
		t.Fatal("parameterized procedure division must still build a graph")
	}
	if !containsNode(proc.CallGraph, "ENTRY-PARA") {
		t.Fatalf("expected ENTRY-PARA node, got %v", proc.CallGraph.Nodes)
	}
}

// Re-parsing the normalized content must reproduce the same structure.
func TestParseProgramStableUnderReparse(t *testing.T) {
	first := ParseProgram("payroll.cbl", sampleProgram)
	second := ParseProgram("payroll.cbl", first.Content)
	if first.ProgramName != second.ProgramName {
		t.Fatalf("program name drift: %s vs %s", first.ProgramName, second.ProgramName)
	}
	if len(first.Divisions) != len(second.Divisions) {
		t.Fatalf("division count drift: %d vs %d", len(first.Divisions), len(second.Divisions))
	}
	for i := range first.Divisions {
		if first.Divisions[i].Name != second.Divisions[i].Name {
			t.Fatalf("division %d name drift", i)
		}
		if first.Divisions[i].Code != second.Divisions[i].Code {
			t.Fatalf("division %d code drift:\n%q\nvs\n%q", i, first.Divisions[i].Code, second.Divisions[i].Code)
		}
	}
}

// Joining all division codes recovers the normalized source words after the
// division headers are accounted for.
func TestParseProgramRoundTripWords(t *testing.T) {
	program := ParseProgram("payroll.cbl", sampleProgram)
	kept := make(map[string]int)
	for _, word := range strings.Fields(program.Content) {
		kept[word]++
	}
	for _, division := range program.Divisions {
		for _, word := range strings.Fields(division.Code) {
			if kept[word] == 0 {
				t.Fatalf("division %s carries word %q absent from normalized source", division.Name, word)
			}
			kept[word]--
		}
	}
}

func findDivision(t *testing.T, program *Program, name string) Division {
	t.Helper()
	for _, division := range program.Divisions {
		if division.Name == name {
			return division
		}
	}
	t.Fatalf("division %s not found in %s", name, program.Filename)
	return Division{}
}

func allParagraphs(division Division) []Paragraph {
	var paragraphs []Paragraph
	for _, section := range division.Sections {
		paragraphs = append(paragraphs, section.Paragraphs...)
	}
	return paragraphs
}

func paragraphNames(paragraphs []Paragraph) []string {
	names := make([]string, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		names = append(names, paragraph.Name)
	}
	return names
}

func containsNode(graph *CallGraph, name string) bool {
	if graph == nil {
		return false
	}
	for _, node := range graph.Nodes {
		if node == name {
			return true
		}
	}
	return false
}
