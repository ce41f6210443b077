package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cragflow/internal/activities"
	"cragflow/internal/api"
	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/engine"
	"cragflow/internal/logging"
	"cragflow/internal/providers"
	"cragflow/internal/scheduler"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tc, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Str("address", cfg.TemporalAddress).Msg("dial temporal")
	}
	defer tc.Close()

	// Badger locks its directory, so a separate worker process cannot open
	// it. Run the worker inside the API process instead.
	if cfg.StoreBackend == "badger" {
		w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{})
		workflows.Register(w)
		activities.Register(w, activities.New(cfg, store, catalog, pm, cu))
		if err := w.Start(); err != nil {
			log.Fatal().Err(err).Msg("start embedded worker")
		}
		defer w.Stop()
		log.Info().Str("queue", cfg.TemporalTaskQueue).Msg("embedded worker started")
	}

	if cfg.ReingestSchedule != "" || len(cfg.ReingestURLs) > 0 {
		sched := scheduler.New(engine.New(cfg, store, catalog, pm, cu))
		go func() {
			if err := sched.Start(ctx, cfg.ReingestSchedule, cfg.ReingestURLs); err != nil {
				log.Error().Err(err).Msg("start re-ingest scheduler")
			}
		}()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, tc, store, catalog, pm).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.APIAddr).Str("backend", cfg.StoreBackend).
		Str("llm_providers", cfg.LLMProviders).Str("embed_providers", cfg.EmbedProviders).
		Msg("cragflow api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("api server")
	}
}
