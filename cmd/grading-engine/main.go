package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/grading-engine/internal/achievements"
	"github.com/terra-clan/grading-engine/internal/api"
	"github.com/terra-clan/grading-engine/internal/catalog"
	"github.com/terra-clan/grading-engine/internal/config"
	"github.com/terra-clan/grading-engine/internal/feedback"
	"github.com/terra-clan/grading-engine/internal/gate"
	"github.com/terra-clan/grading-engine/internal/progression"
	"github.com/terra-clan/grading-engine/internal/sandbox"
	"github.com/terra-clan/grading-engine/internal/storage"
	"github.com/terra-clan/grading-engine/internal/suite"
	"github.com/terra-clan/grading-engine/internal/sweep"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting grading-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Load exercise catalog
	catalogLoader := catalog.NewLoader()
	if err := catalogLoader.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}

	// Initialize sandbox runtime and verify the interpreter comes up
	runtime := sandbox.New(sandbox.Config{MaxSteps: cfg.Sandbox.MaxSteps})
	if err := runtime.Ready(); err != nil {
		slog.Error("failed to initialize sandbox runtime", "error", err)
		os.Exit(1)
	}

	// Optional submission debounce gate
	var debounce *gate.Gate
	if cfg.Redis.Address != "" {
		debounce, err = gate.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Grading.DebounceWindow)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("submission debounce gate enabled", "window", cfg.Grading.DebounceWindow)
	} else {
		slog.Warn("redis not configured, submission debouncing disabled")
	}

	// Optional AI feedback
	var reviewer progression.Reviewer
	if cfg.Feedback.APIKey != "" {
		opts := []feedback.Option{feedback.WithModel(cfg.Feedback.Model)}
		if cfg.Feedback.BaseURL != "" {
			opts = append(opts, feedback.WithBaseURL(cfg.Feedback.BaseURL))
		}
		reviewer = feedback.NewClient(cfg.Feedback.APIKey, opts...)
		slog.Info("AI feedback enabled", "model", cfg.Feedback.Model)
	} else {
		slog.Info("AI feedback disabled")
	}

	// Wire the grading pipeline
	ledger := progression.NewLedger(repo)
	engine := achievements.NewEngine(repo, repo, ledger)
	runner := suite.NewRunner(runtime)
	orchestrator := progression.NewOrchestrator(catalogLoader, repo, runner, ledger, engine, reviewer)
	orchestrator.SetDefaultTimeout(cfg.Sandbox.Timeout)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start achievement sweeper
	sweeper := sweep.NewSweeper(repo, engine, cfg.Sweep.Interval, cfg.Sweep.Lookback)
	sweeper.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, orchestrator, catalogLoader, repo, debounce)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := debounce.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("grading-engine stopped")
}
