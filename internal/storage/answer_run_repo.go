package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cragflow/internal/models"

	"github.com/jackc/pgx/v5"
)

type AnswerRunRepo struct {
	db *DB
}

func NewAnswerRunRepo(db *DB) *AnswerRunRepo {
	return &AnswerRunRepo{db: db}
}

func (r *AnswerRunRepo) SaveAnswerRun(ctx context.Context, run models.AnswerRun) error {
	sources, _ := json.Marshal(run.Sources)
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO answer_runs (run_id, mode, question, rewritten, answer, converged, grounded, stop_reason, generations, rewrites, sources, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
ON CONFLICT (run_id) DO UPDATE SET
  rewritten = EXCLUDED.rewritten,
  answer = EXCLUDED.answer,
  converged = EXCLUDED.converged,
  grounded = EXCLUDED.grounded,
  stop_reason = EXCLUDED.stop_reason,
  generations = EXCLUDED.generations,
  rewrites = EXCLUDED.rewrites,
  sources = EXCLUDED.sources`,
		run.RunID, run.Mode, run.Question, run.Rewritten, run.Answer, run.Converged, run.Grounded, run.StopReason,
		run.Generations, run.Rewrites, string(sources), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("save answer run: %w", err)
	}
	return nil
}

func (r *AnswerRunRepo) GetAnswerRun(ctx context.Context, runID string) (models.AnswerRun, error) {
	var run models.AnswerRun
	var sources []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id, mode, question, rewritten, answer, converged, grounded, stop_reason, generations, rewrites, sources, created_at
FROM answer_runs WHERE run_id=$1`, runID).Scan(
		&run.RunID, &run.Mode, &run.Question, &run.Rewritten, &run.Answer, &run.Converged, &run.Grounded, &run.StopReason,
		&run.Generations, &run.Rewrites, &sources, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AnswerRun{}, fmt.Errorf("answer run %s: %w", runID, models.ErrNotFound)
	}
	if err != nil {
		return models.AnswerRun{}, fmt.Errorf("get answer run: %w", err)
	}
	if err := json.Unmarshal(sources, &run.Sources); err != nil {
		return models.AnswerRun{}, fmt.Errorf("decode answer run sources: %w", err)
	}
	return run, nil
}
