package grading

import (
	"fmt"
	"strings"

	"cragflow/internal/models"
	"cragflow/internal/providers"
)

// Completer runs one model call. C is the call context: context.Context in
// process, workflow.Context inside Temporal.
type Completer[C any] func(ctx C, req providers.GenerateRequest) (string, error)

type FailedDocument struct {
	ChunkID string
	Err     error
}

// FilterError lists documents whose relevance could not be graded.
type FilterError struct {
	Failed []FailedDocument
}

func (e *FilterError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ChunkID)
	}
	return fmt.Sprintf("relevance grading failed for %d document(s) [%s]: %v", len(e.Failed), strings.Join(ids, ", "), e.Failed[0].Err)
}

func (e *FilterError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}

type Grader[C any] struct {
	complete Completer[C]
}

func NewGrader[C any](complete Completer[C]) *Grader[C] {
	return &Grader[C]{complete: complete}
}

// FilterRelevant keeps documents graded "yes", in input order. Every
// document is graded; failures are collected into a *FilterError returned
// alongside the documents that did pass.
func (g *Grader[C]) FilterRelevant(ctx C, question string, docs []models.Document) ([]models.Document, error) {
	relevant := make([]models.Document, 0, len(docs))
	var failed []FailedDocument
	for _, d := range docs {
		raw, err := g.complete(ctx, RelevanceRequest(question, d))
		if err != nil {
			failed = append(failed, FailedDocument{ChunkID: d.Metadata.ChunkID, Err: err})
			continue
		}
		score, err := Decode[Relevance](OpGradeRelevance, raw)
		if err != nil {
			failed = append(failed, FailedDocument{ChunkID: d.Metadata.ChunkID, Err: err})
			continue
		}
		if score.Score.Yes() {
			relevant = append(relevant, d)
		}
	}
	if len(failed) > 0 {
		return relevant, &FilterError{Failed: failed}
	}
	return relevant, nil
}

func (g *Grader[C]) Generate(ctx C, question string, docs []models.Document, feedback string) (string, error) {
	raw, err := g.complete(ctx, GenerationRequest(question, docs, feedback))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return AnswerText(raw), nil
}

func (g *Grader[C]) CheckHallucination(ctx C, docs []models.Document, generation string) (Hallucination, error) {
	raw, err := g.complete(ctx, HallucinationRequest(docs, generation))
	if err != nil {
		return Hallucination{}, fmt.Errorf("grade hallucination: %w", err)
	}
	return Decode[Hallucination](OpGradeHallucination, raw)
}

func (g *Grader[C]) CheckAnswer(ctx C, question, generation string) (Answer, error) {
	raw, err := g.complete(ctx, AnswerRequest(question, generation))
	if err != nil {
		return Answer{}, fmt.Errorf("grade answer: %w", err)
	}
	return Decode[Answer](OpGradeAnswer, raw)
}

func (g *Grader[C]) Rewrite(ctx C, question string) (string, error) {
	raw, err := g.complete(ctx, RewriteRequest(question))
	if err != nil {
		return "", fmt.Errorf("rewrite question: %w", err)
	}
	return CleanQuestion(raw, question), nil
}
