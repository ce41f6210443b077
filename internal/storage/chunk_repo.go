package storage

import (
	"context"
	"fmt"

	"cragflow/internal/models"
	"cragflow/internal/util"
	"cragflow/internal/vector"
)

// ChunkStore keeps chunks and their embeddings in Postgres with pgvector.
// Rows are insert-only; a chunk id already present is left untouched.
type ChunkStore struct {
	db       *DB
	searcher *vector.Searcher
}

func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db, searcher: vector.NewSearcher(db.Pool)}
}

func (r *ChunkStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT chunk_id FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk ids: %w", err)
	}
	return out, nil
}

// Add writes one batch in a single transaction.
func (r *ChunkStore) Add(ctx context.Context, chunks []models.Document, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("add chunks: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx add chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for i, c := range chunks {
		m := c.Metadata
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, source, page, title, workspace_id, doc_id, page_id, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector)
ON CONFLICT (chunk_id) DO NOTHING`,
			m.ChunkID, m.Source, m.Page, m.Title, m.WorkspaceID, m.DocID, m.PageID, util.SanitizeText(c.Content), vector.ToLiteral(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", m.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkStore) Search(ctx context.Context, query []float32, k int) ([]models.ScoredDocument, error) {
	return r.searcher.SearchChunks(ctx, query, k)
}

func (r *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close releases the pool shared with the catalog. Closing twice is harmless.
func (r *ChunkStore) Close() error {
	r.db.Close()
	return nil
}
