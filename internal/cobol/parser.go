// File path: internal/cobol/parser.go
package cobol

import "strings"

// ParseProgram recovers the structural model of one COBOL source file:
// divisions, sections, procedure-division paragraphs, PERFORM references and
// the derived call graph. Parsing is a pure function of the input text; it
// never fails. Malformed or missing boundaries degrade to DEFAULT/HEADER
// sentinel segments instead of raising errors, which suits noisy legacy
// source of unknown dialect.
func ParseProgram(filename, content string) *Program {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	normalized := CleanCode(strings.Split(content, "\n"))

	name := "UNKNOWN"
	if m := programIDRe.FindStringSubmatch(normalized); len(m) > 1 {
		name = strings.ToUpper(m[1])
	}
	program := &Program{Filename: filename, ProgramName: name, Content: normalized}

	for _, part := range splitSegments(normalized, divisionBoundaries(normalized)) {
		if part.Name == segmentHeader {
			continue
		}
		divName := part.Name
		if strings.HasPrefix(divName, DivisionProcedure) {
			divName = DivisionProcedure
		}
		division := Division{
			Name: divName,
			Code: CleanCode(strings.Split(part.Body, "\n")),
		}
		for _, secPart := range splitSegments(division.Code, sectionBoundaries(division.Code)) {
			section := Section{Name: secPart.Name, Code: secPart.Body}
			if division.Name == DivisionProcedure {
				section.Paragraphs = parseParagraphs(section.Name, section.Code)
			}
			division.Sections = append(division.Sections, section)
		}
		if division.Name == DivisionProcedure {
			division.CallGraph = buildCallGraph(division)
		}
		program.Divisions = append(program.Divisions, division)
	}
	return program
}

// parseParagraphs splits a procedure-division section into paragraphs. Text
// before the first paragraph header becomes a synthesized
// "<section-name>-HEADER" paragraph when non-empty, so PERFORM references
// appearing before any header are not lost; an empty leading sentinel is
// discarded. A section with no paragraph boundaries at all yields either a
// single header-call-only paragraph or no paragraphs when its body is empty.
func parseParagraphs(sectionName, code string) []Paragraph {
	parts := splitSegments(code, paragraphBoundaries(code))

	var paragraphs []Paragraph
	if parts[0].Name == segmentDefault || parts[0].Name == segmentHeader {
		if strings.TrimSpace(parts[0].Body) != "" {
			body := parts[0].Body
			paragraphs = append(paragraphs, Paragraph{
				Name:  sectionName + "-HEADER",
				Code:  body,
				Calls: extractCalls(body),
			})
		}
		parts = parts[1:]
	}
	for _, part := range parts {
		paragraphs = append(paragraphs, Paragraph{
			Name:  part.Name,
			Code:  part.Body,
			Calls: extractCalls(part.Body),
		})
	}
	return paragraphs
}
