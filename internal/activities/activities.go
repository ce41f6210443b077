package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/index"
	"cragflow/internal/models"
	"cragflow/internal/pdfsource"
	"cragflow/internal/providers"
	"cragflow/internal/util"
	"cragflow/internal/vectorstore"

	"go.temporal.io/sdk/temporal"
)

// Error types carried on non-retryable application errors.
const (
	ErrTypeURLParse = "URLParseError"
	ErrTypeNoText   = "NoExtractableText"
)

type Activities struct {
	cfg       config.Config
	store     vectorstore.Store
	catalog   vectorstore.Catalog
	providers *providers.Manager
	clickup   *clickup.Client
}

func New(cfg config.Config, store vectorstore.Store, catalog vectorstore.Catalog, pm *providers.Manager, cu *clickup.Client) *Activities {
	return &Activities{cfg: cfg, store: store, catalog: catalog, providers: pm, clickup: cu}
}

func (a *Activities) FetchClickUpDocsActivity(ctx context.Context, in FetchDocsInput) (FetchDocsOutput, error) {
	ref, err := clickup.ParseURL(in.URL)
	if err != nil {
		return FetchDocsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeURLParse, err)
	}
	out := FetchDocsOutput{WorkspaceID: ref.WorkspaceID, DocID: ref.DocID, PageID: ref.PageID}
	docs, err := a.clickup.Documents(ctx, ref, in.Normalize)
	var fetchErr *clickup.SourceFetchError
	switch {
	case errors.As(err, &fetchErr):
		out.FetchFailed = true
		out.FetchError = fetchErr.Error()
		out.Documents = []models.Document{}
		return out, nil
	case err != nil:
		return FetchDocsOutput{}, err
	}
	out.Documents = docs
	return out, nil
}

func (a *Activities) LoadPDFActivity(_ context.Context, in LoadPDFInput) (LoadPDFOutput, error) {
	docs, err := pdfsource.Load(in.Path)
	if errors.Is(err, util.ErrNoExtractableText) {
		return LoadPDFOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoText, err)
	}
	if err != nil {
		return LoadPDFOutput{}, err
	}
	return LoadPDFOutput{Documents: docs}, nil
}

// PrepareChunksActivity splits and identifies the documents and keeps only
// chunks the store does not hold yet.
func (a *Activities) PrepareChunksActivity(ctx context.Context, in PrepareChunksInput) (PrepareChunksOutput, error) {
	size := in.ChunkSize
	if size <= 0 {
		size = a.cfg.ChunkSize
	}
	overlap := in.ChunkOverlap
	if overlap <= 0 {
		overlap = a.cfg.ChunkOverlap
	}
	chunks := index.AssignIDs(index.Split(in.Documents, size, overlap))
	existing, err := a.store.ExistingIDs(ctx)
	if err != nil {
		return PrepareChunksOutput{}, fmt.Errorf("load existing chunk ids: %w", err)
	}
	fresh := index.FilterNew(chunks, existing)
	out := PrepareChunksOutput{Total: len(chunks), Chunks: fresh}
	for _, c := range chunks {
		if _, ok := existing[c.Metadata.ChunkID]; ok {
			out.Existing++
		}
	}
	out.Duplicates = out.Total - out.Existing - len(fresh)
	return out, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Input))
	for _, c := range in.Input {
		inputs = append(inputs, c.Content)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vectors) != len(inputs) {
		return EmbedChunksOutput{}, fmt.Errorf("embed chunks: got %d vectors for %d inputs", len(vectors), len(inputs))
	}
	return EmbedChunksOutput{
		Vectors:      vectors,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) AddChunksActivity(ctx context.Context, in AddChunksInput) error {
	if len(in.Chunks) == 0 {
		return nil
	}
	return a.store.Add(ctx, in.Chunks, in.Vectors)
}

func (a *Activities) EmbedQueryActivity(ctx context.Context, in EmbedQueryInput) (EmbedQueryOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: "embed_query",
		Inputs:    []string{in.Query},
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedQueryOutput{}, err
	}
	if len(vectors) != 1 {
		return EmbedQueryOutput{}, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return EmbedQueryOutput{Vector: vectors[0], ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) SearchChunksActivity(ctx context.Context, in SearchChunksInput) (SearchChunksOutput, error) {
	k := in.TopK
	if k <= 0 {
		k = a.cfg.RetrievalK
	}
	results, err := a.store.Search(ctx, in.Vector, k)
	if err != nil {
		return SearchChunksOutput{}, err
	}
	return SearchChunksOutput{Results: results}, nil
}

func (a *Activities) LLMGenerateActivity(ctx context.Context, in LLMGenerateInput) (LLMGenerateOutput, error) {
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		System:    in.System,
		Prompt:    in.Prompt,
		Context:   in.Context,
		JSON:      in.JSON,
	})
	if err != nil {
		return LLMGenerateOutput{}, fmt.Errorf("llm generate via %s failed: %w", ref.Raw, err)
	}
	return LLMGenerateOutput{
		Text:         resp.Text,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	return a.catalog.LogCall(ctx, models.LLMCall{
		CallID:     in.CallID,
		RunID:      in.RunID,
		Operation:  in.Operation,
		Provider:   in.ProviderName,
		Model:      in.Model,
		RequestID:  in.RequestID,
		Status:     in.Status,
		ErrorType:  in.ErrorType,
		PromptHash: in.PromptHash,
		CreatedAt:  time.Now().UTC(),
	})
}

func (a *Activities) RecordAnswerRunActivity(ctx context.Context, run models.AnswerRun) error {
	return a.catalog.SaveAnswerRun(ctx, run)
}

func (a *Activities) RecordSourceActivity(ctx context.Context, src models.Source) error {
	return a.catalog.UpsertSource(ctx, src)
}

// WriteAnswerArtifactsActivity writes answer.json, answer.md and trace.jsonl
// under {data_out}/answers/{run_id}.
func (a *Activities) WriteAnswerArtifactsActivity(_ context.Context, in WriteAnswerArtifactsInput) (WriteAnswerArtifactsOutput, error) {
	dir, err := util.SafeJoin(filepath.Join(a.cfg.DataOutRoot, "answers"), in.Run.RunID)
	if err != nil {
		return WriteAnswerArtifactsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRunID", err)
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "answer.json"), in.Run); err != nil {
		return WriteAnswerArtifactsOutput{}, err
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(dir, "trace.jsonl"), in.Trace); err != nil {
		return WriteAnswerArtifactsOutput{}, err
	}
	if err := util.WriteTextAtomic(filepath.Join(dir, "answer.md"), answerMarkdown(in.Run)); err != nil {
		return WriteAnswerArtifactsOutput{}, err
	}
	return WriteAnswerArtifactsOutput{Dir: dir}, nil
}

func answerMarkdown(run models.AnswerRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", run.Question)
	if run.Rewritten != "" {
		fmt.Fprintf(&b, "_Searched as:_ %s\n\n", run.Rewritten)
	}
	b.WriteString(strings.TrimSpace(run.Answer))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "- mode: %s\n- converged: %t\n- generations: %d\n- rewrites: %d\n", run.Mode, run.Converged, run.Generations, run.Rewrites)
	if run.StopReason != "" {
		fmt.Fprintf(&b, "- stop reason: %s\n", run.StopReason)
	}
	if len(run.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, id := range run.Sources {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}
	return b.String()
}
