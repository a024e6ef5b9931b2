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

	"github.com/newslens/newslens/app/ai"
	"github.com/newslens/newslens/app/api"
	"github.com/newslens/newslens/app/breaker"
	"github.com/newslens/newslens/app/cfg"
	"github.com/newslens/newslens/app/cluster"
	"github.com/newslens/newslens/app/database"
	"github.com/newslens/newslens/app/dedup"
	"github.com/newslens/newslens/app/health"
	"github.com/newslens/newslens/app/ingest"
	"github.com/newslens/newslens/app/retrieve"
	"github.com/newslens/newslens/app/score"
	"github.com/newslens/newslens/app/sources"
	"github.com/newslens/newslens/app/store"
	"github.com/newslens/newslens/app/tasks"
)

const (
	breakerFailureThreshold = 5
	breakerCooldown         = 5 * time.Minute
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting NewsLens server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	redisStore, err := store.NewRedisStore(appCfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "url", appCfg.RedisURL, "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	articleRepo := database.NewArticleRepository(db)
	embeddingRepo := database.NewEmbeddingRepository(db)
	eventRepo := database.NewEventRepository(db)

	sourceCache := sources.NewConfigCache(appCfg.SourcesFile, sources.DefaultTTL)
	slog.Info("Sources loaded", "file", appCfg.SourcesFile, "count", sourceCache.GetSourceCount())

	aiClient := ai.NewClient(appCfg.SummarizerURL, appCfg.EmbedderURL,
		appCfg.ClassifierURL, appCfg.AIAccessKey, appCfg.EmbeddingDims)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	breakers := breaker.NewRegistry(breakerFailureThreshold, breakerCooldown)
	tracker := health.NewTracker()
	deduper := dedup.NewEngine(articleRepo, embeddingRepo, redisStore, appCfg.DedupEmbedWindow)

	orchestrator := ingest.NewOrchestrator(ingest.OrchestratorDeps{
		Sources:          sourceCache,
		Breakers:         breakers,
		Tracker:          tracker,
		Reader:           ingest.NewGofeedReader(httpClient, appCfg.UserAgent),
		Extractor:        ingest.NewReadabilityExtractor(httpClient, appCfg.UserAgent),
		Summarizer:       aiClient,
		Embedder:         aiClient,
		Classifier:       aiClient,
		Deduper:          deduper,
		Scorer:           score.NewCalculator(),
		Articles:         articleRepo,
		Embeddings:       embeddingRepo,
		Events:           eventRepo,
		Idempotency:      redisStore,
		Summaries:        redisStore,
		Reach:            ingest.NewHeadChecker(httpClient, appCfg.UserAgent),
		BatchSize:        appCfg.BatchSize,
		ExtractRetries:   appCfg.ExtractRetries,
		ExtractRetryWait: time.Duration(appCfg.ExtractRetryWait) * time.Second,
		MinContentLength: appCfg.MinContentLength,
	})

	clusterer := cluster.NewService(articleRepo, eventRepo)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval_s", appCfg.CycleInterval)
	scheduler := tasks.NewScheduler(orchestrator, clusterer)
	scheduler.Start()
	defer scheduler.Stop()

	queryEngine := retrieve.NewEngine(articleRepo, embeddingRepo, aiClient, aiClient)

	handler := api.NewHandler(queryEngine, orchestrator, tracker, breakers,
		articleRepo, eventRepo, redisStore, redisStore, appCfg.RateLimitPerHour)
	router := api.NewServer(handler, appCfg.AllowedOrigins)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
