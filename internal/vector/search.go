package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cragflow/internal/models"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks returns the k chunks closest to queryVec by cosine distance,
// best match first.
func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, topK int) ([]models.ScoredDocument, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.q.Query(ctx, `
SELECT chunk_id, source, page, title, workspace_id, doc_id, page_id, content,
       embedding <=> $1::vector AS distance
FROM chunks
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1::vector, chunk_id
LIMIT $2`, ToLiteral(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ScoredDocument, 0, topK)
	for rows.Next() {
		var r models.ScoredDocument
		m := &r.Metadata
		if err := rows.Scan(&m.ChunkID, &m.Source, &m.Page, &m.Title, &m.WorkspaceID, &m.DocID, &m.PageID, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
