package clickup

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"strings"
)

var footnoteMarker = regexp.MustCompile(`\[\^?\d+\]`)

// Normalize prepares page markdown for embedding: parentheticals nested
// inside another parenthetical are dropped, markdown tables become
// comma-separated rows, and [n] / [^n] footnote markers are removed.
func Normalize(s string) string {
	s = stripNestedParens(s)
	s = tablesToCSV(s)
	s = footnoteMarker.ReplaceAllString(s, "")
	return s
}

// stripNestedParens removes any "(...)" opened at depth two or deeper,
// along with one space before it. The "(url)" half of a markdown link does
// not count as a level.
func stripNestedParens(s string) string {
	out := make([]rune, 0, len(s))
	depth := 0
	var links []bool
	var prev rune
	for _, r := range s {
		skip := depth >= 2
		switch r {
		case '(':
			link := prev == ']'
			links = append(links, link)
			if !link {
				depth++
			}
			if depth >= 2 && !skip && len(out) > 0 && out[len(out)-1] == ' ' {
				out = out[:len(out)-1]
			}
			skip = depth >= 2
		case ')':
			if len(links) > 0 {
				if !links[len(links)-1] {
					depth--
				}
				links = links[:len(links)-1]
			}
		}
		prev = r
		if !skip {
			out = append(out, r)
		}
	}
	return string(out)
}

func tablesToCSV(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, "|") {
			out = append(out, line)
			continue
		}
		cells := splitRow(t)
		if isSeparatorRow(cells) {
			continue
		}
		out = append(out, csvRow(cells))
	}
	return strings.Join(out, "\n")
}

func splitRow(row string) []string {
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	parts := strings.Split(row, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, ":-") != "" || !strings.Contains(c, "-") {
			return false
		}
	}
	return len(cells) > 0
}

func csvRow(cells []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(cells)
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
