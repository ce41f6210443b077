package crag

import (
	"strings"

	"cragflow/internal/grading"
)

const unsupportedFallback = "The previous answer made claims that the documents do not support. Use only facts stated in the context."

// GroundingFeedback is the critique carried forward after a hallucination
// check. It replaces whatever feedback came before.
func GroundingFeedback(h grading.Hallucination) string {
	parts := make([]string, 0, 2)
	if e := strings.TrimSpace(h.Explanation); e != "" {
		parts = append(parts, e)
	}
	if len(h.Unsupported) > 0 {
		parts = append(parts, "Unsupported claims:\n- "+strings.Join(h.Unsupported, "\n- "))
	}
	if len(parts) == 0 && !h.Score.Yes() {
		return unsupportedFallback
	}
	return strings.Join(parts, "\n")
}

// ExtendFeedback appends the sufficiency grader's critique to base.
func ExtendFeedback(base string, a grading.Answer) string {
	var b strings.Builder
	b.WriteString(base)
	if len(a.Strengths) > 0 {
		b.WriteString("\nSTRENGTHS:\n- ")
		b.WriteString(strings.Join(a.Strengths, "\n- "))
	}
	if w := a.AllWeaknesses(); len(w) > 0 {
		b.WriteString("\nWEAKNESSES:\n- ")
		b.WriteString(strings.Join(w, "\n- "))
	}
	if s := strings.TrimSpace(a.Suggestion); s != "" {
		b.WriteString("\nSUGGESTION:\n")
		b.WriteString(s)
	}
	out := b.String()
	if out == base {
		out = strings.TrimLeft(base+"\nThe previous answer did not fully resolve the question.", "\n")
	}
	return out
}
