package storage

import (
	"context"
	"fmt"

	"cragflow/internal/models"
)

type SourceRepo struct {
	db *DB
}

func NewSourceRepo(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) UpsertSource(ctx context.Context, s models.Source) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO sources (url, workspace_id, doc_id, page_id, last_ingested_at, last_added, last_status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url) DO UPDATE SET
  last_ingested_at = EXCLUDED.last_ingested_at,
  last_added = EXCLUDED.last_added,
  last_status = EXCLUDED.last_status`,
		s.URL, s.WorkspaceID, s.DocID, s.PageID, s.LastIngestedAt, s.LastAdded, s.LastStatus)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

func (r *SourceRepo) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT url, workspace_id, doc_id, page_id, last_ingested_at, last_added, last_status
FROM sources ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make([]models.Source, 0)
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.URL, &s.WorkspaceID, &s.DocID, &s.PageID, &s.LastIngestedAt, &s.LastAdded, &s.LastStatus); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}
