package grading

import (
	"strings"

	"cragflow/internal/models"
	"cragflow/internal/providers"
)

const (
	OpGradeRelevance     = "grade_relevance"
	OpGenerate           = "generate"
	OpGradeHallucination = "grade_hallucination"
	OpGradeAnswer        = "grade_answer"
	OpRewrite            = "rewrite_question"
	OpQuickAnswer        = "quick_answer"
)

const graderSystem = "You are a strict evaluator. Reply with a single JSON object and nothing else."

func RelevanceRequest(question string, doc models.Document) providers.GenerateRequest {
	return providers.GenerateRequest{
		Operation: OpGradeRelevance,
		System:    graderSystem,
		JSON:      true,
		Prompt: `Decide whether the retrieved document is relevant to the user's question.
Mark it relevant when it contains keywords or information pertinent to the question.
The goal is only to drop clearly irrelevant documents, so do not be overly strict.

Document:
` + doc.Content + `

Question: ` + question + `

Respond as {"score": "yes" | "no", "confidence": 0.0-1.0, "key_matches": ["..."]}.`,
	}
}

func GenerationRequest(question string, docs []models.Document, feedback string) providers.GenerateRequest {
	var b strings.Builder
	b.WriteString(`Answer the question using only the context below.
If the context does not contain the answer, say that you don't know.
Write a complete answer in markdown.

Question: `)
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(RenderDocuments(docs))
	if note := RevisionNote(feedback); note != "" {
		b.WriteString("\n\n")
		b.WriteString(note)
	}
	return providers.GenerateRequest{
		Operation: OpGenerate,
		System:    "You answer questions about internal documentation. Stay grounded in the supplied context.",
		Prompt:    b.String(),
	}
}

// RevisionNote frames critique of the previous attempt for the next one.
func RevisionNote(feedback string) string {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return ""
	}
	return "Critique of your previous answer:\n" + feedback + "\nRevise the answer so it addresses this critique."
}

func HallucinationRequest(docs []models.Document, generation string) providers.GenerateRequest {
	return providers.GenerateRequest{
		Operation: OpGradeHallucination,
		System:    graderSystem,
		JSON:      true,
		Prompt: `Check whether the answer is factually supported by the documents.

Documents:
` + RenderDocuments(docs) + `

Answer:
` + generation + `

Respond as {"score": "yes" | "no", "explanation": "why", "unsupported_claims": ["..."]}.
Use "yes" only when every claim in the answer is backed by the documents.`,
	}
}

func AnswerRequest(question, generation string) providers.GenerateRequest {
	return providers.GenerateRequest{
		Operation: OpGradeAnswer,
		System:    graderSystem,
		JSON:      true,
		Prompt: `Judge whether the answer fully resolves the question.

Answer:
` + generation + `

Question: ` + question + `

Respond as {"score": "yes" | "no", "confidence": 0.0-1.0, "strengths": ["..."], "weaknesses": ["..."], "suggestion": "one concrete improvement"}.
Leave weaknesses empty when the answer is complete.`,
	}
}

func RewriteRequest(question string) providers.GenerateRequest {
	return providers.GenerateRequest{
		Operation: OpRewrite,
		Prompt: `Rewrite the question below into a better version for vector store retrieval.
Keep its intent, add likely keywords, and reply with the improved question only.

Question: ` + question,
	}
}

func QuickAnswerRequest(question string, docs []models.Document) providers.GenerateRequest {
	return providers.GenerateRequest{
		Operation: OpQuickAnswer,
		System:    "You analyse internal documentation and answer precisely.",
		Prompt: `Given the context, give a precise and detailed answer to the question.

Context:
` + RenderDocuments(docs) + `

---

Question: ` + question,
	}
}

func RenderDocuments(docs []models.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Metadata.ChunkID != "" {
			parts = append(parts, "["+d.Metadata.ChunkID+"]\n"+d.Content)
			continue
		}
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
