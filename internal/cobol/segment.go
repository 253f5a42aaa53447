// File path: internal/cobol/segment.go
package cobol

import (
	"regexp"
	"strings"
)

var (
	programIDRe = regexp.MustCompile(`(?im)^[ \t]*PROGRAM-ID\.[ \t]*([A-Z0-9-]+)[ \t]*\.`)
	divisionRe  = regexp.MustCompile(`(?im)^[ \t]*((?:IDENTIFICATION|ENVIRONMENT|DATA)|(?:PROCEDURE[ \t.]+(?:USING|CHAINING)?[ \t]*[A-Z0-9-]+(?:\([A-Z0-9-]+\))?)|PROCEDURE)[ \t]*DIVISION[ \t]*\.`)
	sectionRe   = regexp.MustCompile(`(?im)^[ \t]*([A-Z0-9-]+)[ \t]+SECTION[ \t]*\.`)
	paragraphRe = regexp.MustCompile(`(?im)^[ \t]*([A-Z0-9][A-Z0-9-]*)[ \t]*\.`)
	performRe   = regexp.MustCompile(`(?i)PERFORM[ \t]+([A-Z0-9][A-Z0-9-]*)`)
)

// Sentinel segment names produced by splitSegments when no boundary matches
// (DEFAULT) or when text precedes the first boundary (HEADER).
const (
	segmentHeader  = "HEADER"
	segmentDefault = "DEFAULT"
)

type segment struct {
	Name string
	Body string
}

// splitSegments partitions text into named segments using the ordered,
// non-overlapping boundary matches. Each segment's name is the boundary's
// captured identifier, uppercased and trimmed; its body is the text between
// the end of its boundary and the start of the next. matches must come from
// FindAllStringSubmatchIndex so that leftmost-first order is guaranteed.
func splitSegments(text string, matches [][]int) []segment {
	if len(matches) == 0 {
		return []segment{{Name: segmentDefault, Body: text}}
	}
	parts := make([]segment, 0, len(matches)+1)
	if matches[0][0] > 0 {
		parts = append(parts, segment{Name: segmentHeader, Body: text[:matches[0][0]]})
	}
	for i, m := range matches {
		name := strings.ToUpper(strings.TrimSpace(text[m[2]:m[3]]))
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		parts = append(parts, segment{Name: name, Body: strings.TrimSpace(text[m[1]:end])})
	}
	return parts
}

func divisionBoundaries(text string) [][]int {
	return divisionRe.FindAllStringSubmatchIndex(text, -1)
}

func sectionBoundaries(text string) [][]int {
	return sectionRe.FindAllStringSubmatchIndex(text, -1)
}

// paragraphBoundaries matches a leading identifier followed by a period that
// is not itself followed by another period. RE2 has no lookahead, so the
// guard against end-of-program markers and multi-period artifacts is applied
// after matching; every candidate starts at a line head, so rejecting one
// never hides another on the same line.
func paragraphBoundaries(text string) [][]int {
	matches := paragraphRe.FindAllStringSubmatchIndex(text, -1)
	kept := matches[:0]
	for _, m := range matches {
		rest := strings.TrimLeft(text[m[1]:], " \t")
		if strings.HasPrefix(rest, ".") {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// extractCalls collects every PERFORM target in the code block, uppercased,
// in order of occurrence. Duplicates are preserved; deduplication belongs to
// graph consumers, not the extractor.
func extractCalls(code string) []string {
	matches := performRe.FindAllStringSubmatch(code, -1)
	if len(matches) == 0 {
		return nil
	}
	calls := make([]string, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, strings.ToUpper(m[1]))
	}
	return calls
}
