// Package badger is the embedded, single-process backend: chunks with
// their vectors plus the catalog records, all in one badgerhold database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"cragflow/internal/models"
	"cragflow/internal/vector"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

type chunkRecord struct {
	ChunkID  string
	Document models.Document
	Vector   []float32
}

type sourceRecord struct {
	models.Source
}

type answerRunRecord struct {
	models.AnswerRun
}

type callRecord struct {
	models.LLMCall
}

type Store struct {
	db *badgerhold.Store
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil
	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	err := s.db.ForEach(nil, func(rec *chunkRecord) error {
		out[rec.ChunkID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chunk ids: %w", err)
	}
	return out, nil
}

// Add inserts each chunk under its id; ids already present are skipped.
func (s *Store) Add(ctx context.Context, chunks []models.Document, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("add chunks: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := chunkRecord{ChunkID: c.Metadata.ChunkID, Document: c, Vector: vectors[i]}
		err := s.db.Insert(rec.ChunkID, &rec)
		if err != nil && !errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("insert chunk %s: %w", rec.ChunkID, err)
		}
	}
	return nil
}

// Search ranks every stored chunk by cosine distance. The embedded backend
// targets corpora small enough for a full scan.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := make([]vector.Candidate, 0)
	err := s.db.ForEach(nil, func(rec *chunkRecord) error {
		candidates = append(candidates, vector.Candidate{Document: rec.Document, Vector: rec.Vector})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	return vector.TopK(query, candidates, k), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.db.Count(&chunkRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return int(n), nil
}

func (s *Store) UpsertSource(ctx context.Context, src models.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Upsert(src.URL, &sourceRecord{Source: src}); err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []sourceRecord
	if err := s.db.Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	out := make([]models.Source, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (s *Store) SaveAnswerRun(ctx context.Context, run models.AnswerRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Upsert(run.RunID, &answerRunRecord{AnswerRun: run}); err != nil {
		return fmt.Errorf("save answer run: %w", err)
	}
	return nil
}

func (s *Store) GetAnswerRun(ctx context.Context, runID string) (models.AnswerRun, error) {
	if err := ctx.Err(); err != nil {
		return models.AnswerRun{}, err
	}
	var rec answerRunRecord
	err := s.db.Get(runID, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return models.AnswerRun{}, fmt.Errorf("answer run %s: %w", runID, models.ErrNotFound)
	}
	if err != nil {
		return models.AnswerRun{}, fmt.Errorf("get answer run: %w", err)
	}
	return rec.AnswerRun, nil
}

func (s *Store) LogCall(ctx context.Context, call models.LLMCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if call.CallID == "" {
		call.CallID = uuid.NewString()
	}
	if err := s.db.Insert(call.CallID, &callRecord{LLMCall: call}); err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// Calls returns the audited calls for one run, oldest first.
func (s *Store) Calls(ctx context.Context, runID string) ([]models.LLMCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []callRecord
	if err := s.db.Find(&recs, badgerhold.Where("RunID").Eq(runID)); err != nil {
		return nil, fmt.Errorf("find llm calls: %w", err)
	}
	out := make([]models.LLMCall, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.LLMCall)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
