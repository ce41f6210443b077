package mcpserver

import (
	"fmt"
	"strings"

	"cragflow/internal/engine"
	"cragflow/internal/models"
)

func formatAnswer(run models.AnswerRun) string {
	var b strings.Builder
	b.WriteString(run.Answer)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "run: %s (%s)\n", run.RunID, run.Mode)
	if run.Rewritten != "" {
		fmt.Fprintf(&b, "rewritten question: %s\n", run.Rewritten)
	}
	if !run.Converged {
		b.WriteString("warning: the answer did not pass every grading check\n")
	}
	if len(run.Sources) > 0 {
		fmt.Fprintf(&b, "sources: %s\n", strings.Join(run.Sources, ", "))
	}
	return b.String()
}

func formatHits(query string, hits []engine.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No chunks found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q (%d)\n\n", query, len(hits))
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = h.Source
		}
		fmt.Fprintf(&b, "## %d. %s\n", i+1, title)
		fmt.Fprintf(&b, "- chunk: `%s`\n- source: %s (page %d)\n- distance: %.4f\n\n", h.ChunkID, h.Source, h.Page, h.Distance)
		b.WriteString(h.Snippet)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
