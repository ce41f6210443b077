package util

import (
	"strings"
	"unicode"
)

const defaultSnippetRunes = 320

var snippetStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {},
	"why": {}, "who": {}, "when": {}, "where": {}, "which": {}, "that": {}, "this": {}, "with": {},
	"from": {}, "does": {}, "our": {}, "can": {}, "should": {}, "about": {}, "into": {}, "have": {},
}

// DisplayEvidenceSnippet picks the passage of a chunk that best matches the
// query: the highest scoring sentence or markdown line, extended with the
// following one while it fits in maxRunes.
func DisplayEvidenceSnippet(chunkText, query string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = defaultSnippetRunes
	}
	units := splitUnits(SanitizeText(chunkText))
	if len(units) == 0 {
		return ""
	}
	terms := queryTerms(query)
	best, bestScore := 0, -1
	for i, u := range units {
		if s := termHits(u, terms); s > bestScore {
			best, bestScore = i, s
		}
	}
	out := units[best]
	if best+1 < len(units) && runeLen(out)+1+runeLen(units[best+1]) <= maxRunes {
		out += " " + units[best+1]
	}
	return truncateRunes(out, maxRunes)
}

// splitUnits breaks text at sentence ends and line breaks and strips list
// and heading markers.
func splitUnits(s string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		u := strings.Join(strings.Fields(b.String()), " ")
		u = strings.TrimLeft(u, "#>-*• ")
		if u != "" {
			out = append(out, u)
		}
		b.Reset()
	}
	rs := []rune(s)
	for i, r := range rs {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(rs) || unicode.IsSpace(rs[i+1])) {
			flush()
		}
	}
	flush()
	return out
}

func queryTerms(q string) []string {
	var terms []string
	seen := map[string]struct{}{}
	for _, f := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := snippetStopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func termHits(unit string, terms []string) int {
	low := strings.ToLower(unit)
	n := 0
	for _, t := range terms {
		if strings.Contains(low, t) {
			n++
		}
	}
	return n
}

func runeLen(s string) int { return len([]rune(s)) }

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
