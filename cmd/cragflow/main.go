package main

import (
	"context"
	"fmt"
	"os"

	"cragflow/internal/clickup"
	"cragflow/internal/config"
	"cragflow/internal/engine"
	"cragflow/internal/logging"
	"cragflow/internal/providers"
	"cragflow/internal/vectorstore"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "cragflow",
	Short:         "Self-correcting question answering over ClickUp docs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override CRAGFLOW_LOG_LEVEL")
	rootCmd.AddCommand(ingestCmd, askCmd, searchCmd, sourcesCmd, reingestCmd, serveMCPCmd, versionCmd)
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openEngine wires an in-process engine. The returned func releases the store.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	store, catalog, err := vectorstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	closeAll := func() {
		_ = catalog.Close()
		_ = store.Close()
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	cu := clickup.NewClient(cfg.ClickUpBaseURL, cfg.ClickUpToken, cfg.ClickUpPerMinute)
	return engine.New(cfg, store, catalog, pm, cu), closeAll, nil
}
