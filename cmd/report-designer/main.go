// cmd/report-designer/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/alexwday/report-designer/internal/common/config"
	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/common/observability"
	"github.com/alexwday/report-designer/internal/generation"
	"github.com/alexwday/report-designer/internal/llm"
	"github.com/alexwday/report-designer/internal/notify"
	"github.com/alexwday/report-designer/internal/registry"
	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/workspace"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting report designer...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	if ok, err := esClient.IndexExists(ctx, cfg.Database.Elasticsearch.TranscriptIndex); err != nil {
		zapLog.Warn("transcript index check failed", zap.Error(err))
	} else if !ok {
		zapLog.Warn("transcript index not found, transcript retrieval will return no results",
			zap.String("index", cfg.Database.Elasticsearch.TranscriptIndex))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Assemble the pipeline ---
	var reg registry.Registry = registry.NewPostgres(pg, log)
	if cfg.Registry.CacheEnabled {
		ttl := time.Duration(cfg.Registry.CacheTTLSeconds) * time.Second
		reg = registry.NewCached(reg, redis, ttl, log)
	}

	store := workspace.NewPostgresStore(pg, log)
	retrieval := retrievers.NewService(pg, esClient, cfg.Database.Elasticsearch.TranscriptIndex, log)
	completer := llm.NewClient(cfg.OpenAI, log)

	orchestrator := generation.NewOrchestrator(
		store, reg, retrieval, completer,
		generation.NewMemoryJobStore(),
		obs, cfg.Generation, log,
	)

	if cfg.Notifications.Enabled {
		notifier, err := notify.NewSES(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Warn("SES notifier unavailable, continuing without notifications", zap.Error(err))
		} else {
			orchestrator.SetBatchListener(notifier)
			zapLog.Info("Batch completion notifications enabled")
		}
	}

	server := newServer(orchestrator, reg, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: server.routes(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Report designer stopped gracefully")
}
