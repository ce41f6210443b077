package storage

import (
	"context"
	"fmt"

	"cragflow/internal/models"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) LogCall(ctx context.Context, rec models.LLMCall) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, run_id, operation, provider_name, model, request_id, status, error_type, prompt_hash, latency_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), NULLIF($2,''), $3, $4, $5, $6, $7, NULLIF($8,''), $9, $10)`,
		rec.CallID, rec.RunID, rec.Operation, rec.Provider, rec.Model, rec.RequestID, rec.Status, rec.ErrorType, rec.PromptHash, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
