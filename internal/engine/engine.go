// Package engine wires the stores, providers and the answer loop for
// in-process use by the CLI, the MCP server and the scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/crag"
	"cragflow/internal/grading"
	"cragflow/internal/index"
	"cragflow/internal/models"
	"cragflow/internal/pdfsource"
	"cragflow/internal/providers"
	"cragflow/internal/util"
	"cragflow/internal/vectorstore"

	"github.com/google/uuid"
	"github.com/phuslu/log"
)

const (
	ModeLoop  = "loop"
	ModeQuick = "quick"
)

type Engine struct {
	store     vectorstore.Store
	catalog   vectorstore.Catalog
	providers *providers.Manager
	clickup   *clickup.Client
	cfg       config.Config
	now       func() time.Time
}

func New(cfg config.Config, store vectorstore.Store, catalog vectorstore.Catalog, mgr *providers.Manager, cu *clickup.Client) *Engine {
	mgr.WithCallObserver(func(rec providers.CallRecord) {
		ev := log.Debug()
		if rec.Status != "ok" {
			ev = log.Warn().Str("error_type", string(rec.ErrorType))
		}
		ev.Str("operation", rec.Operation).Str("kind", rec.Kind).Str("provider", rec.Provider).
			Str("model", rec.Model).Int("attempt", rec.Attempt).Dur("latency", rec.Latency).
			Msg("provider call")
	})
	return &Engine{store: store, catalog: catalog, providers: mgr, clickup: cu, cfg: cfg, now: time.Now}
}

func (e *Engine) limits() crag.Limits {
	return crag.Limits{
		MaxGenerations: e.cfg.MaxGenerations,
		MaxRewrites:    e.cfg.MaxRewrites,
		MaxAttempts:    e.cfg.MaxAttempts,
	}
}

// Ask runs the corrective loop for question and records the run. A run
// that hits a cap is still saved and returned with Converged false.
func (e *Engine) Ask(ctx context.Context, question string) (models.AnswerRun, crag.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.AnswerRun{}, crag.Result{}, util.ErrEmptyQuestion
	}
	runID := uuid.NewString()
	grader := grading.NewGrader(e.completer(runID))
	machine := crag.NewMachine[context.Context](retriever{e: e, k: e.cfg.RetrievalK}, grader, e.limits()).
		WithObserver(func(ev crag.Event) {
			log.Debug().Str("run_id", runID).Int("step", ev.Step).Str("state", ev.State).
				Str("decision", string(ev.Decision)).Str("question", ev.Question).
				Int("documents", ev.Documents).Str("note", ev.Note).Msg("answer loop step")
		})

	res, runErr := machine.Run(ctx, question)
	run := models.AnswerRun{
		RunID:       runID,
		Mode:        ModeLoop,
		Question:    question,
		Answer:      res.Answer,
		Converged:   res.Converged,
		Grounded:    res.Grounded,
		StopReason:  res.StopReason,
		Generations: res.Generations,
		Rewrites:    res.Rewrites,
		Sources:     models.ChunkIDs(res.Documents),
		CreatedAt:   e.now().UTC(),
	}
	if res.Question != question {
		run.Rewritten = res.Question
	}
	if err := e.catalog.SaveAnswerRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("save answer run failed")
	}
	if runErr != nil {
		return run, res, runErr
	}
	log.Info().Str("run_id", runID).Bool("converged", res.Converged).Int("generations", res.Generations).
		Int("rewrites", res.Rewrites).Msg("answer run finished")
	return run, res, nil
}

// QuickAnswer answers from a single retrieval without grading. When the
// first answer is not confident it retries once with a wider context.
func (e *Engine) QuickAnswer(ctx context.Context, question string) (models.AnswerRun, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.AnswerRun{}, util.ErrEmptyQuestion
	}
	runID := uuid.NewString()
	complete := e.completer(runID)
	k := e.cfg.RetrievalK

	docs, err := retriever{e: e, k: k}.Retrieve(ctx, question)
	if err != nil {
		return models.AnswerRun{}, err
	}
	raw, err := complete(ctx, grading.QuickAnswerRequest(question, docs))
	if err != nil {
		return models.AnswerRun{}, err
	}
	answer := grading.AnswerText(raw)
	if !grading.Confident(answer) {
		log.Info().Str("run_id", runID).Int("k", k+grading.QuickWiden).Msg("quick answer not confident, widening context")
		docs, err = retriever{e: e, k: k + grading.QuickWiden}.Retrieve(ctx, question)
		if err != nil {
			return models.AnswerRun{}, err
		}
		raw, err = complete(ctx, grading.QuickAnswerRequest(question, docs))
		if err != nil {
			return models.AnswerRun{}, err
		}
		answer = grading.AnswerText(raw)
	}
	run := models.AnswerRun{
		RunID:       runID,
		Mode:        ModeQuick,
		Question:    question,
		Answer:      answer,
		Converged:   true,
		Generations: 1,
		Sources:     models.ChunkIDs(docs),
		CreatedAt:   e.now().UTC(),
	}
	if err := e.catalog.SaveAnswerRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("save answer run failed")
	}
	return run, nil
}

func (e *Engine) Answer(ctx context.Context, runID string) (models.AnswerRun, error) {
	return e.catalog.GetAnswerRun(ctx, runID)
}

// IngestURL loads one ClickUp doc. A fetch failure is not an error: the
// source is recorded as failed and nothing is added.
func (e *Engine) IngestURL(ctx context.Context, rawURL string) (index.Report, error) {
	ref, err := clickup.ParseURL(rawURL)
	if err != nil {
		return index.Report{}, err
	}
	src := models.Source{
		URL:         rawURL,
		WorkspaceID: ref.WorkspaceID,
		DocID:       ref.DocID,
		PageID:      ref.PageID,
	}
	docs, err := e.clickup.Documents(ctx, ref, e.cfg.NormalizeText)
	var fetchErr *clickup.SourceFetchError
	switch {
	case errors.As(err, &fetchErr):
		src.LastStatus = "fetch_failed"
	case err != nil:
		return index.Report{}, err
	}
	var report index.Report
	if len(docs) > 0 {
		report, err = e.indexer().Ingest(ctx, docs)
		if err != nil {
			return report, err
		}
	}
	if src.LastStatus == "" {
		src.LastStatus = "ok"
	}
	src.LastAdded = report.Added
	src.LastIngestedAt = e.now().UTC()
	if err := e.catalog.UpsertSource(ctx, src); err != nil {
		return report, fmt.Errorf("record source: %w", err)
	}
	return report, nil
}

// IngestPDF loads every page of a local PDF, or of every PDF directly
// under path when it is a directory.
func (e *Engine) IngestPDF(ctx context.Context, path string) (index.Report, error) {
	paths := []string{path}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		if paths, err = pdfsource.List(path); err != nil {
			return index.Report{}, err
		}
	}
	var docs []models.Document
	for _, p := range paths {
		pages, err := pdfsource.Load(p)
		if err != nil {
			return index.Report{}, err
		}
		docs = append(docs, pages...)
	}
	if len(docs) == 0 {
		return index.Report{}, nil
	}
	return e.indexer().Ingest(ctx, docs)
}

// Reingest refreshes every registered source and returns the total number
// of chunks added. Failures are logged per source.
func (e *Engine) Reingest(ctx context.Context) (int, error) {
	sources, err := e.catalog.ListSources(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, s := range sources {
		report, err := e.IngestURL(ctx, s.URL)
		if err != nil {
			log.Error().Err(err).Str("url", s.URL).Msg("re-ingest failed")
			continue
		}
		added += report.Added
	}
	return added, nil
}

func (e *Engine) Sources(ctx context.Context) ([]models.Source, error) {
	return e.catalog.ListSources(ctx)
}

func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

type Hit struct {
	ChunkID  string  `json:"chunk_id"`
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Title    string  `json:"title,omitempty"`
	Distance float64 `json:"distance"`
	Snippet  string  `json:"snippet"`
}

// Search returns the k nearest chunks with a query-focused snippet.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, util.ErrEmptyQuestion
	}
	if k <= 0 {
		k = e.cfg.RetrievalK
	}
	scored, err := e.searchScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(scored))
	for _, s := range scored {
		out = append(out, Hit{
			ChunkID:  s.Metadata.ChunkID,
			Source:   s.Metadata.Source,
			Page:     s.Metadata.Page,
			Title:    s.Metadata.Title,
			Distance: s.Distance,
			Snippet:  util.DisplayEvidenceSnippet(s.Content, query, 320),
		})
	}
	return out, nil
}

func (e *Engine) searchScored(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	vectors, err := e.providers.EmbedTexts(ctx, "embed_query", []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return e.store.Search(ctx, vectors[0], k)
}

func (e *Engine) indexer() *index.Indexer {
	return index.NewIndexer(e.store, e.providers, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
}

// completer audits each request against runID. Audit failures are logged
// and never fail the call.
func (e *Engine) completer(runID string) grading.Completer[context.Context] {
	return func(ctx context.Context, req providers.GenerateRequest) (string, error) {
		start := e.now()
		resp, info, err := e.providers.Generate(ctx, req)
		call := models.LLMCall{
			CallID:     uuid.NewString(),
			RunID:      runID,
			Operation:  req.Operation,
			Provider:   info.Name,
			Model:      info.Model,
			RequestID:  uuid.NewString(),
			Status:     "ok",
			PromptHash: util.ShortHash(req.System + "\n" + req.Prompt),
			LatencyMS:  e.now().Sub(start).Milliseconds(),
			CreatedAt:  start.UTC(),
		}
		if err != nil {
			call.Status = "failed"
			call.ErrorType = string(providers.ClassifyError(err))
		}
		if logErr := e.catalog.LogCall(ctx, call); logErr != nil {
			log.Warn().Err(logErr).Str("operation", req.Operation).Msg("llm call audit failed")
		}
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}

type retriever struct {
	e *Engine
	k int
}

func (r retriever) Retrieve(ctx context.Context, question string) ([]models.Document, error) {
	scored, err := r.e.searchScored(ctx, question, r.k)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(scored))
	for _, s := range scored {
		docs = append(docs, s.Document)
	}
	return docs, nil
}
