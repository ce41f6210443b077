package workflows

import (
	"strings"

	"cragflow/internal/activities"
	"cragflow/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// IngestWorkflow loads one ClickUp doc or local PDF and adds its new chunks
// to the store. Chunks are written batch by batch, so a retried run skips
// whatever an earlier attempt already stored.
func IngestWorkflow(ctx workflow.Context, input IngestInput) (IngestResult, error) {
	progress := IngestProgress{Stage: "started"}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return IngestResult{}, err
	}
	logger := workflow.GetLogger(ctx)
	actx := withActivityDefaults(ctx)
	state := newProviderState()
	cooldown := durationOrDefault(input.CooldownSeconds, 900)

	var docs []models.Document
	source := strings.TrimSpace(input.URL)
	switch {
	case source != "":
		progress.Stage = "fetch"
		var out activities.FetchDocsOutput
		if err := workflow.ExecuteActivity(actx, "FetchClickUpDocsActivity", activities.FetchDocsInput{
			URL:       source,
			Normalize: input.Normalize,
		}).Get(ctx, &out); err != nil {
			progress.Stage = "failed"
			return IngestResult{}, err
		}
		if out.FetchFailed {
			logger.Warn("clickup fetch failed, continuing with no documents", "url", source, "error", out.FetchError)
			progress.Result.FetchFailed = true
		}
		docs = out.Documents
		defer func() {
			recordSource(ctx, input, out, progress)
		}()
	case strings.TrimSpace(input.PDFPath) != "":
		progress.Stage = "load"
		var out activities.LoadPDFOutput
		if err := workflow.ExecuteActivity(actx, "LoadPDFActivity", activities.LoadPDFInput{Path: input.PDFPath}).Get(ctx, &out); err != nil {
			progress.Stage = "failed"
			return IngestResult{}, err
		}
		docs = out.Documents
	default:
		return IngestResult{}, temporal.NewNonRetryableApplicationError("ingest needs a url or a pdf path", "InvalidInput", nil)
	}
	progress.Result.Documents = len(docs)
	if len(docs) == 0 {
		progress.Stage = "completed"
		return progress.Result, nil
	}

	progress.Stage = "chunk"
	var prepared activities.PrepareChunksOutput
	if err := workflow.ExecuteActivity(actx, "PrepareChunksActivity", activities.PrepareChunksInput{
		Documents:    docs,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &prepared); err != nil {
		progress.Stage = "failed"
		return progress.Result, err
	}
	progress.Result.Chunks = prepared.Total
	progress.Result.Existing = prepared.Existing
	progress.Result.Duplicates = prepared.Duplicates
	logger.Info("ingest chunks prepared", "total", prepared.Total, "existing", prepared.Existing, "new", len(prepared.Chunks))

	progress.Stage = "embed"
	for i := 0; i < len(prepared.Chunks); i += embedBatchSize {
		end := min(i+embedBatchSize, len(prepared.Chunks))
		batch := prepared.Chunks[i:end]
		emb, err := callEmbedWithFailover(ctx, state, input.EmbedProviders, cooldown, activities.EmbedChunksInput{
			Operation: "embed_chunks",
			Input:     batch,
		})
		if err != nil {
			progress.Stage = "failed"
			return progress.Result, err
		}
		if err := workflow.ExecuteActivity(actx, "AddChunksActivity", activities.AddChunksInput{
			Chunks:  batch,
			Vectors: emb.Vectors,
		}).Get(ctx, nil); err != nil {
			progress.Stage = "failed"
			return progress.Result, err
		}
		progress.Embedded = end
		progress.Result.Added += len(batch)
	}
	progress.Stage = "completed"
	logger.Info("ingest finished", "added", progress.Result.Added)
	return progress.Result, nil
}

func recordSource(ctx workflow.Context, input IngestInput, fetched activities.FetchDocsOutput, progress IngestProgress) {
	status := "ok"
	switch {
	case progress.Result.FetchFailed:
		status = "fetch_failed"
	case progress.Stage == "failed":
		status = "failed"
	}
	src := models.Source{
		URL:            input.URL,
		WorkspaceID:    fetched.WorkspaceID,
		DocID:          fetched.DocID,
		PageID:         fetched.PageID,
		LastIngestedAt: workflow.Now(ctx).UTC(),
		LastAdded:      progress.Result.Added,
		LastStatus:     status,
	}
	if err := workflow.ExecuteActivity(withActivityDefaults(ctx), "RecordSourceActivity", src).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("record source failed", "url", input.URL, "error", err)
	}
}
