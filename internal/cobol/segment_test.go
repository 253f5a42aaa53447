// File path: internal/cobol/segment_test.go
package cobol

import (
	"strings"
	"testing"
)

func TestSplitSegmentsNoMatches(t *testing.T) {
	text := "SOME TEXT WITHOUT BOUNDARIES"
	parts := splitSegments(text, sectionBoundaries(text))
	if len(parts) != 1 {
		t.Fatalf("expected single segment, got %d", len(parts))
	}
	if parts[0].Name != segmentDefault {
		t.Fatalf("expected DEFAULT sentinel, got %s", parts[0].Name)
	}
	if parts[0].Body != text {
		t.Fatalf("DEFAULT body must carry the whole text")
	}
}

func TestSplitSegmentsLeadingHeader(t *testing.T) {
	text := "PREAMBLE TEXT\nINIT SECTION.\n    MOVE A TO B.\nWRAP-UP SECTION.\n    STOP RUN."
	parts := splitSegments(text, sectionBoundaries(text))
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(parts), parts)
	}
	if parts[0].Name != segmentHeader {
		t.Fatalf("expected HEADER first, got %s", parts[0].Name)
	}
	if parts[1].Name != "INIT" || parts[2].Name != "WRAP-UP" {
		t.Fatalf("unexpected section names: %s, %s", parts[1].Name, parts[2].Name)
	}
	if parts[1].Body != "MOVE A TO B." {
		t.Fatalf("unexpected INIT body: %q", parts[1].Body)
	}
}

// Splitting must be lossless: header, boundary text and bodies together
// reconstruct the input modulo whitespace.
func TestSplitSegmentsRoundTrip(t *testing.T) {
	text := "HEAD\nALPHA SECTION.\nONE TWO\nBETA SECTION.\nTHREE"
	matches := sectionBoundaries(text)
	var rebuilt strings.Builder
	last := 0
	for _, m := range matches {
		rebuilt.WriteString(text[last:m[0]])
		rebuilt.WriteString(text[m[0]:m[1]])
		last = m[1]
	}
	rebuilt.WriteString(text[last:])
	if rebuilt.String() != text {
		t.Fatalf("boundary matches overlap or reorder: %q", rebuilt.String())
	}

	parts := splitSegments(text, matches)
	var words []string
	for _, part := range parts {
		words = append(words, strings.Fields(part.Body)...)
	}
	got := strings.Join(words, " ")
	want := "HEAD ONE TWO THREE"
	if got != want {
		t.Fatalf("segment bodies lost text: got %q want %q", got, want)
	}
}

func TestParagraphBoundariesRejectDoublePeriods(t *testing.T) {
	text := "MAIN-PARA.\n    DISPLAY 'X'.\nEND-MARK. .\n"
	matches := paragraphBoundaries(text)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.ToUpper(text[m[2]:m[3]]))
	}
	for _, name := range names {
		if name == "END-MARK" {
			t.Fatalf("period-followed-by-period header must be rejected: %v", names)
		}
	}
	if len(names) == 0 || names[0] != "MAIN-PARA" {
		t.Fatalf("expected MAIN-PARA boundary, got %v", names)
	}
}

func TestExtractCallsOrderAndDuplicates(t *testing.T) {
	code := "PERFORM FIRST-PARA.\n    PERFORM SECOND-PARA UNTIL DONE.\n    PERFORM FIRST-PARA."
	calls := extractCalls(code)
	want := []string{"FIRST-PARA", "SECOND-PARA", "FIRST-PARA"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: got %s want %s", i, calls[i], want[i])
		}
	}
}

func TestExtractCallsNone(t *testing.T) {
	if calls := extractCalls("DISPLAY 'NOTHING HERE'."); calls != nil {
		t.Fatalf("expected no calls, got %v", calls)
	}
}
