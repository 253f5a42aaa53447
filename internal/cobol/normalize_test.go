// File path: internal/cobol/normalize_test.go
package cobol

import (
	"strings"
	"testing"
)

func TestCleanLinesDropsCommentAndDebugLines(t *testing.T) {
	lines := []string{
		"123456* THIS IS A COMMENT",
		"123456D DISPLAY 'DEBUG'",
		"123456 MOVE A TO B",
	}
	cleaned := CleanLines(lines)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 surviving line, got %d: %v", len(cleaned), cleaned)
	}
	if cleaned[0] != " MOVE A TO B" {
		t.Fatalf("unexpected line: %q", cleaned[0])
	}
}

func TestCleanLinesTruncatesLongLines(t *testing.T) {
	body := "123456 COMPUTE TOTAL = PRICE * QTY"
	line := body + strings.Repeat(" ", 72-len(body)) + "SEQ00001"
	if len(line) < 80 {
		t.Fatalf("fixture line too short: %d", len(line))
	}
	cleaned := CleanLines([]string{line})
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cleaned))
	}
	if cleaned[0] != " COMPUTE TOTAL = PRICE * QTY" {
		t.Fatalf("sequence area not removed: %q", cleaned[0])
	}
}

func TestCleanLinesKeepsShortAndFreeFormatLines(t *testing.T) {
	cleaned := CleanLines([]string{"STOP.", "MAIN-PARA.", "    PERFORM SUB-PARA."})
	want := []string{"STOP.", "MAIN-PARA.", "    PERFORM SUB-PARA."}
	if len(cleaned) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(cleaned))
	}
	for i := range want {
		if cleaned[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, cleaned[i], want[i])
		}
	}
}

func TestCleanCodeIdempotent(t *testing.T) {
	raw := strings.Join([]string{
		"123456 IDENTIFICATION DIVISION.",
		"123456 PROGRAM-ID. FOO.",
		"123456* A COMMENT",
		"       PROCEDURE DIVISION.",
		"       MAIN-PARA.",
		"           PERFORM SUB-PARA.",
	}, "\n")
	once := CleanCode(strings.Split(raw, "\n"))
	twice := CleanCode(strings.Split(once, "\n"))
	if once != twice {
		t.Fatalf("normalization not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestCleanCodeEmptyInput(t *testing.T) {
	if got := CleanCode([]string{"123456* ONLY A COMMENT"}); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if got := CleanCode(nil); got != "" {
		t.Fatalf("expected empty output for nil input, got %q", got)
	}
}
