// File path: internal/cobol/normalize.go
package cobol

import "strings"

// CleanLines strips fixed-format COBOL columns from raw source lines. A line
// counts as fixed-format when it is 80 columns or longer, or when its leading
// six columns form a sequence-number area (digits and blanks). Fixed-format
// lines whose indicator column (column 7) carries a comment marker '*' or a
// debug marker 'D' are dropped entirely; the survivors keep only the program
// text area, columns 7-72 for full-width lines. Free-format lines pass
// through untouched, which also makes re-normalizing already normalized text
// a no-op.
func CleanLines(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		fixed := len(line) >= 80 || (len(line) > 6 && isSequenceArea(line[:6]))
		if fixed && len(line) > 7 {
			switch line[6] {
			case '*', 'D', 'd':
				continue
			}
		}
		switch {
		case len(line) >= 80:
			cleaned = append(cleaned, strings.TrimRight(line[6:72], " \t\r"))
		case fixed && len(line) > 6:
			cleaned = append(cleaned, strings.TrimRight(line[6:], " \t\r"))
		default:
			cleaned = append(cleaned, strings.TrimRight(line, " \t\r"))
		}
	}
	return cleaned
}

// CleanCode normalizes a block of raw source lines into a single trimmed
// string. It never fails; an input with nothing but comment lines yields an
// empty string.
func CleanCode(lines []string) string {
	return strings.TrimSpace(strings.Join(CleanLines(lines), "\n"))
}

// isSequenceArea reports whether the leading six columns hold only digits
// and blanks.
func isSequenceArea(prefix string) bool {
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c != ' ' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
