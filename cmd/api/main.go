package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/palinopr/leadrouter/internal/api/router"
	appconfig "github.com/palinopr/leadrouter/internal/config"
	"github.com/palinopr/leadrouter/internal/dedup"
	"github.com/palinopr/leadrouter/internal/engine"
	"github.com/palinopr/leadrouter/internal/http/handlers"
	"github.com/palinopr/leadrouter/internal/observability/metrics"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/store"
	"github.com/palinopr/leadrouter/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadrouter API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	tuning, err := appconfig.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Error("failed to load tuning", "error", err)
		os.Exit(1)
	}

	machine, err := routing.NewMachine(tuning.Routing)
	if err != nil {
		logger.Error("invalid routing policy", "error", err)
		os.Exit(1)
	}

	var (
		conversationStore store.Store
		gate              dedup.Gate
	)
	if cfg.UseMemoryStore {
		conversationStore = store.NewMemoryStore()
		gate = dedup.NewMemoryGate(cfg.DedupWindow)
		logger.Warn("using in-memory store, state is lost on restart")
	} else {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		conversationStore = store.NewRedisStore(client,
			store.WithOpTimeout(cfg.StoreTimeout),
			store.WithStateTTL(cfg.StateTTL),
		)
		gate = dedup.NewRedisGate(client, cfg.DedupWindow)
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	eng, err := engine.New(conversationStore, gate, machine,
		engine.WithScoringConfig(tuning.Scoring),
		engine.WithMergeSettings(tuning.Merge),
		engine.WithMetrics(engineMetrics),
		engine.WithLogger(logger),
		engine.WithMaxAttempts(cfg.MaxAttempts),
		engine.WithRetryBase(cfg.RetryBaseDelay),
		engine.WithMaxLog(cfg.MaxMessageLog),
	)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	webhookCfg := handlers.WebhookConfig{Engine: eng, Logger: logger}
	var worker *engine.Worker
	if cfg.UseMemoryQueue {
		queue := engine.NewMemoryQueue(cfg.QueueBuffer)
		webhookCfg.Publisher = engine.NewPublisher(queue, logger)
		worker = engine.NewWorker(eng, queue, logger,
			engine.WithWorkerCount(cfg.WorkerCount),
		)
		worker.Start(workerCtx)
	}

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        handlers.NewWebhookHandler(webhookCfg),
		Threads:        handlers.NewThreadsHandler(conversationStore, logger),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopWorkers()
	if worker != nil {
		worker.Wait()
	}

	logger.Info("server stopped")
}
