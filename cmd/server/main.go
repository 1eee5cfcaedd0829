package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hoanghai1803/quill/internal/ai"
	"github.com/hoanghai1803/quill/internal/api"
	"github.com/hoanghai1803/quill/internal/api/handlers"
	"github.com/hoanghai1803/quill/internal/config"
	"github.com/hoanghai1803/quill/internal/feeds"
	"github.com/hoanghai1803/quill/internal/generation"
	"github.com/hoanghai1803/quill/internal/pipeline"
	"github.com/hoanghai1803/quill/internal/promotion"
	"github.com/hoanghai1803/quill/internal/research"
	"github.com/hoanghai1803/quill/internal/scheduler"
	"github.com/hoanghai1803/quill/internal/storage"
	"github.com/hoanghai1803/quill/internal/wordpress"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	dataDir := flag.String("data-dir", "./data", "path to data directory")
	envFile := flag.String("env-file", ".env", "optional file of KEY=value environment overrides")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load environment file", "error", err)
		os.Exit(1)
	}

	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := run(cfg, *dataDir); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, dataDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// Open database with WAL mode and pragmas.
	db, err := storage.OpenDatabase(filepath.Join(dataDir, "quill.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		return err
	}
	store := storage.NewStore(db)

	// Runs left mid-pipeline by a previous process can never finish.
	if n, err := store.FailStaleRuns(ctx, "interrupted by server restart"); err != nil {
		return err
	} else if n > 0 {
		slog.Warn("marked interrupted runs as failed", "runs", n)
	}

	cacheTTL := time.Duration(cfg.Cost.CacheTTLMinutes) * time.Minute
	if cacheTTL > 0 {
		if n, err := store.PurgeExpiredCache(ctx, cacheTTL); err != nil {
			slog.Warn("failed to purge response cache", "error", err)
		} else if n > 0 {
			slog.Info("purged expired cache entries", "entries", n)
		}
	}

	orch, err := newOrchestrator(cfg, store, cacheTTL)
	if err != nil {
		return err
	}

	// A typed nil *Scheduler must not reach the handlers.
	var reloader handlers.ScheduleReloader
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(store, orch, cfg.Scheduler.Hour)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		reloader = sched
	} else {
		slog.Info("scheduler disabled, runs start only through the API")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(store, orch, reloader, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if sched != nil {
			sched.Stop()
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		slog.Warn("runs still in flight at exit", "error", err)
	}
	return nil
}

// newOrchestrator builds the four pipeline stages from cfg.
func newOrchestrator(cfg *config.Config, store *storage.Store, cacheTTL time.Duration) (*pipeline.Orchestrator, error) {
	base, err := ai.NewProvider(ai.ProviderConfig{
		Provider:   cfg.AI.Provider,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Endpoint:   cfg.AI.Endpoint,
		Deployment: cfg.AI.Deployment,
		APIVersion: cfg.AI.APIVersion,
		Timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("AI provider configured", "provider", cfg.AI.Provider, "model", base.Model())

	guard := ai.NewDailyBudgetGuard(store, cfg.Cost.DailyBudgetUSD)
	costs := ai.CostModel{
		InputPer1K:  cfg.Cost.InputCostPer1K,
		OutputPer1K: cfg.Cost.OutputCostPer1K,
		PerImage:    cfg.Cost.ImageCost,
	}
	provider := ai.NewCachingProvider(base, store, guard, costs, cacheTTL)

	genOpts := []generation.Option{generation.WithMaxTokens(cfg.AI.MaxTokens)}
	images, err := ai.NewImageGenerator(ai.ImageConfig{
		Provider:   cfg.Images.Provider,
		APIKey:     cfg.Images.APIKey,
		Model:      cfg.Images.Model,
		Size:       cfg.Images.Size,
		Endpoint:   cfg.Images.Endpoint,
		Deployment: cfg.Images.Deployment,
		APIVersion: cfg.AI.APIVersion,
	})
	if err != nil {
		return nil, err
	}
	if images != nil {
		genOpts = append(genOpts, generation.WithImages(images, guard, cfg.Cost.ImageCost))
		slog.Info("image generation configured", "provider", cfg.Images.Provider, "model", cfg.Images.Model)
	} else {
		slog.Warn("no image provider configured, blogs with images enabled will fail at generation")
	}

	fetcher := feeds.NewFetcher()
	researcher := research.NewStage(
		research.NewFeedTrendSource(fetcher, cfg.Research.TrendFeedURL),
		research.NewCompetitorAnalyzer(fetcher, nil, cfg.Research.CompetitorArticleLimit),
		cfg.Research.MaxCandidates,
	)

	return pipeline.New(
		store,
		researcher,
		generation.NewStage(provider, genOpts...),
		wordpress.NewPublisher(store, nil),
		promotion.NewStage(store, promotion.WithConcurrency(cfg.Promotion.Concurrency)),
	), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
