package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/api"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/config"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/core"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/harvest"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/httpx"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/search"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	dbStore, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	// Run schema migrations to ensure tables and new columns exist
	workDir, _ := os.Getwd()
	schemaPath := filepath.Join(workDir, "internal", "store", "schema.sql")
	if err := dbStore.RunMigrations(schemaPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	fetcher := httpx.NewFetcher(cfg.Fetch.Timeout())
	if cfg.Fetch.PerHostRPS > 0 {
		fetcher.SetRateLimit(time.Duration(float64(time.Second)/cfg.Fetch.PerHostRPS), cfg.Fetch.Burst)
	}

	engines, keyed := buildSearchEngines(cfg.Search)
	harvester := harvest.NewHarvester(search.NewChain(logger, engines...), fetcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := core.NewRunner(dbStore, harvester, cfg.Harvest.Workers, cfg.Harvest.QueueSize, logger)
	runner.Start(ctx)

	srv := api.NewServer(dbStore, runner, parser.NewEngine(), api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		SearchReady: keyed > 0,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port, "workers", runner.Workers(), "search_engines", len(engines))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	runner.Stop()
	slog.Info("server exited")
}

// buildSearchEngines assembles keyed engines in preference order and always
// appends the keyless DuckDuckGo fallback. The second return is how many
// keyed backends are configured, which drives the health report.
func buildSearchEngines(cfg config.SearchConfig) ([]search.Engine, int) {
	var engines []search.Engine
	if cfg.SerpAPIAPIKey != "" {
		engines = append(engines, search.NewSerpAPI(cfg.SerpAPIAPIKey, ""))
	}
	if cfg.SerperAPIKey != "" {
		engines = append(engines, search.NewSerper(cfg.SerperAPIKey, ""))
	}
	if cfg.GoogleCSEAPIKey != "" && cfg.GoogleCSEID != "" {
		engines = append(engines, search.NewGoogleCSE(cfg.GoogleCSEAPIKey, cfg.GoogleCSEID, ""))
	}
	keyed := len(engines)
	engines = append(engines, search.NewDuckDuckGo(""))
	return engines, keyed
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
