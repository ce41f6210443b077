package index

import (
	"context"
	"fmt"

	"cragflow/internal/models"

	"github.com/phuslu/log"
)

const embedBatchSize = 64

// Store is the persistent side of ingestion. Writes are append-only and
// keyed by chunk id.
type Store interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	Add(ctx context.Context, chunks []models.Document, vectors [][]float32) error
}

type Embedder interface {
	EmbedTexts(ctx context.Context, operation string, inputs []string) ([][]float32, error)
}

type Report struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Existing   int `json:"existing"`
	Duplicates int `json:"duplicates"`
	Added      int `json:"added"`
}

type Indexer struct {
	store    Store
	embedder Embedder
	size     int
	overlap  int
}

func NewIndexer(store Store, embedder Embedder, chunkSize, chunkOverlap int) *Indexer {
	return &Indexer{store: store, embedder: embedder, size: chunkSize, overlap: chunkOverlap}
}

// Ingest splits, identifies, deduplicates and stores docs. Running it twice
// over the same ordered input adds nothing the second time.
func (ix *Indexer) Ingest(ctx context.Context, docs []models.Document) (Report, error) {
	report := Report{Documents: len(docs)}
	chunks := AssignIDs(Split(docs, ix.size, ix.overlap))
	report.Chunks = len(chunks)

	existing, err := ix.store.ExistingIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("load existing chunk ids: %w", err)
	}
	log.Info().Int("existing", len(existing)).Int("chunks", len(chunks)).Msg("ingest: loaded existing chunk ids")

	fresh := FilterNew(chunks, existing)
	for _, c := range chunks {
		if _, ok := existing[c.Metadata.ChunkID]; ok {
			report.Existing++
		}
	}
	report.Duplicates = len(chunks) - report.Existing - len(fresh)
	if report.Duplicates > 0 {
		log.Warn().Int("duplicates", report.Duplicates).Msg("ingest: chunk ids repeated within batch, keeping first occurrence")
	}
	if len(fresh) == 0 {
		log.Info().Msg("ingest: no new chunks to add")
		return report, nil
	}

	vectors, err := EmbedChunks(ctx, ix.embedder, fresh)
	if err != nil {
		return report, err
	}
	if err := ix.store.Add(ctx, fresh, vectors); err != nil {
		return report, fmt.Errorf("add chunks: %w", err)
	}
	report.Added = len(fresh)
	log.Info().Int("added", report.Added).Msg("ingest: new chunks added")
	return report, nil
}

// EmbedChunks embeds chunk contents in fixed-size batches, preserving order.
func EmbedChunks(ctx context.Context, embedder Embedder, chunks []models.Document) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		inputs := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			inputs = append(inputs, c.Content)
		}
		vectors, err := embedder.EmbedTexts(ctx, "embed_chunks", inputs)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		if len(vectors) != len(inputs) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors for %d inputs", i, end, len(vectors), len(inputs))
		}
		out = append(out, vectors...)
	}
	return out, nil
}
