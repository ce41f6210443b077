package main

import (
	"context"
	"time"

	"cragflow/internal/activities"
	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/logging"
	"cragflow/internal/providers"
	"cragflow/internal/vectorstore"
	"cragflow/internal/workflows"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.StoreBackend == "badger" {
		log.Warn().Msg("badger backend is single-process; the api binary already runs an embedded worker")
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Msg("dial temporal")
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, catalog, err := vectorstore.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("open store")
	}
	defer store.Close()
	defer catalog.Close()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init providers")
	}
	cu := clickup.NewClient(cfg.ClickUpBaseURL, cfg.ClickUpToken, cfg.ClickUpPerMinute)

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, store, catalog, pm, cu))

	log.Info().Str("address", cfg.TemporalAddress).Str("queue", cfg.TemporalTaskQueue).
		Str("llm_providers", cfg.LLMProviders).Str("embed_providers", cfg.EmbedProviders).
		Msg("cragflow worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
}
