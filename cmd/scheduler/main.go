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

	"github.com/outletx/merch-engine/internal/config"
	"github.com/outletx/merch-engine/internal/pubsub"
	"github.com/outletx/merch-engine/internal/scheduler"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting scheduler service",
		logger.Duration("run_interval", cfg.Scheduler.RunInterval),
		logger.Int("shops", len(cfg.Scheduler.Shops)),
	)

	// Initialize database and stores
	db, err := storage.OpenDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database",
			logger.ErrorField(err),
		)
	}
	defer db.Close()

	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		logger.Fatal("Failed to ensure database schema",
			logger.ErrorField(err),
		)
	}

	ruleStore := storage.NewPostgresRuleStore(db)
	factStore := storage.NewPostgresFactStore(db)
	settingsStore := storage.NewPostgresSettingsStore(db)

	// Initialize Redis client and job publisher
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

	publisher := pubsub.NewTriggerPublisher(redisClient, cfg.Scheduler.StreamName)
	runner := scheduler.NewRunner(ruleStore, factStore, settingsStore, publisher)

	// Periodic run loop
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Scheduler.RunInterval)
		defer ticker.Stop()

		runAll := func() {
			for _, shop := range cfg.Scheduler.Shops {
				if _, err := runner.Run(ctx, shop); err != nil {
					logger.Error("Scheduler run failed",
						logger.ErrorField(err),
						logger.String("shop", shop),
					)
				}
			}
		}

		runAll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAll()
			}
		}
	}()

	// Health and metrics server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Scheduler.Port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start health server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down scheduler service")

	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server",
			logger.ErrorField(err),
		)
	}

	logger.Info("Scheduler service stopped")
}
