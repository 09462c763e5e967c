package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rulebook-classifier/internal/catalog"
	"rulebook-classifier/internal/common/camunda"
	"rulebook-classifier/internal/common/config"
	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/common/observability"
	"rulebook-classifier/internal/store"

	ce "rulebook-classifier/internal/workers/classification/classify-entrant"
	fbq "rulebook-classifier/internal/workers/classification/fetch-bump-questions"
)

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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("rulebookSource", cfg.Rulebooks.Source),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable, tracing only", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Rulebook source
	var backend *store.Backend
	err = retryWithBackoff(func() error {
		var err error
		backend, err = store.Open(ctx, cfg, log)
		return err
	}, 15, 2*time.Second, zapLog, "Rulebook source initialization")
	if err != nil {
		zapLog.Fatal("rulebook source failed after retries", zap.Error(err))
	}
	defer backend.Close()
	zapLog.Info("Rulebook source ready", zap.Bool("redisCache", backend.Cache != nil))

	// Catalog
	registry := catalog.NewRegistry()
	reloader := catalog.NewReloader(
		backend.Source,
		registry,
		cfg.Rulebooks.Organizations,
		config.GetDuration(cfg.Rulebooks.ReloadInterval),
		log,
	)
	if err := reloader.ReloadAll(ctx); err != nil {
		zapLog.Warn("initial rulebook load incomplete", zap.Error(err))
	}
	zapLog.Info("Rulebooks published", zap.Strings("organizations", registry.Organizations()))

	go reloader.Poll(ctx)

	var watcher *catalog.Watcher
	if cfg.Rulebooks.Watch && backend.Files != nil {
		watcher = catalog.NewWatcher(backend.Files, reloader, log)
		if err := watcher.Start(ctx); err != nil {
			zapLog.Error("rulebook watcher failed to start", zap.Error(err))
			watcher = nil
		}
	}

	// Zeebe
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// Workers
	var workers []*camunda.Worker

	ceHandler := ce.NewHandler(ce.ConfigFromApp(cfg), registry, obs, log).WithCommandRunner(zeebe)
	if w := camunda.OpenWorker(zeebe.GetClient(), ce.TaskType, config.GetWorkerConfig(cfg, ce.TaskType), ceHandler.Handle, log); w != nil {
		workers = append(workers, w)
	}

	fbqHandler := fbq.NewHandler(fbq.ConfigFromApp(cfg), registry, obs, log).WithCommandRunner(zeebe)
	if w := camunda.OpenWorker(zeebe.GetClient(), fbq.TaskType, config.GetWorkerConfig(cfg, fbq.TaskType), fbqHandler.Handle, log); w != nil {
		workers = append(workers, w)
	}

	zapLog.Info("All workers started", zap.Int("count", len(workers)))

	// HTTP
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   cfg.App.Version,
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := map[string]string{"zeebe": "ok", "rulebooks": "ok"}
		ready := true
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			checks["zeebe"] = err.Error()
			ready = false
		}
		if registry.Len() == 0 {
			checks["rulebooks"] = "no rulebook published"
			ready = false
		}

		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ready":         ready,
			"checks":        checks,
			"organizations": registry.Organizations(),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Worker manager started successfully")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zapLog.Info("Shutting down worker manager...")
	stop()

	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout)
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	for _, w := range workers {
		w.Stop()
	}

	if watcher != nil {
		watcher.Close()
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down telemetry", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
