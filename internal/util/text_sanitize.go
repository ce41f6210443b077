package util

import (
	"strings"
	"unicode"
)

// SanitizeText prepares page text for storage: CRLF becomes LF, NUL and
// other control or format runes (zero-width spaces, BOMs) are dropped and
// runs of three or more newlines collapse to one blank line.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	newlines := 0
	for _, r := range s {
		switch {
		case r == '\n':
			newlines++
			if newlines > 2 {
				continue
			}
		case r == '\t':
			newlines = 0
		case r == '\r' || r == unicode.ReplacementChar:
			continue
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			continue
		default:
			newlines = 0
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
