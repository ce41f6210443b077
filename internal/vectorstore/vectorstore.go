// Package vectorstore opens the configured chunk store together with the
// catalog that records sources, answer runs and provider calls.
package vectorstore

import (
	"context"
	"fmt"

	"cragflow/internal/config"
	"cragflow/internal/models"
	"cragflow/internal/storage"
	"cragflow/internal/storage/badger"
	"cragflow/internal/storage/weaviate"

	"github.com/phuslu/log"
)

// Store is the chunk collection. Add is insert-only: a chunk whose id is
// already present keeps its original content and vector.
type Store interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	Add(ctx context.Context, chunks []models.Document, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Catalog interface {
	UpsertSource(ctx context.Context, s models.Source) error
	ListSources(ctx context.Context) ([]models.Source, error)
	SaveAnswerRun(ctx context.Context, run models.AnswerRun) error
	GetAnswerRun(ctx context.Context, runID string) (models.AnswerRun, error)
	LogCall(ctx context.Context, call models.LLMCall) error
	Close() error
}

var (
	_ Store   = (*badger.Store)(nil)
	_ Catalog = (*badger.Store)(nil)
	_ Store   = (*storage.ChunkStore)(nil)
	_ Catalog = (*storage.Catalog)(nil)
	_ Store   = (*weaviate.Store)(nil)
)

// Open builds the handles for cfg.StoreBackend. The caller owns both and
// closes them; a shared handle is closed once.
func Open(ctx context.Context, cfg config.Config) (Store, Catalog, error) {
	switch cfg.StoreBackend {
	case "", "badger":
		s, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("backend", "badger").Str("path", cfg.BadgerPath).Msg("store opened")
		return s, nopClose{s}, nil
	case "postgres":
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Str("backend", "postgres").Msg("store opened")
		return storage.NewChunkStore(db), storage.NewCatalog(db), nil
	case "weaviate":
		s, err := weaviate.Open(ctx, weaviate.Config{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
			APIKey: cfg.WeaviateAPIKey,
			Class:  cfg.WeaviateClass,
		})
		if err != nil {
			return nil, nil, err
		}
		cat, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("backend", "weaviate").Str("host", cfg.WeaviateHost).Str("class", cfg.WeaviateClass).Msg("store opened")
		return s, cat, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// nopClose lets the badger store serve as its own catalog without being
// closed twice.
type nopClose struct {
	*badger.Store
}

func (nopClose) Close() error { return nil }
