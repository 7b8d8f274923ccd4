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
	"github.com/outletx/merch-engine/internal/shopify"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/internal/trigger"
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

	logger.Info("Starting trigger worker",
		logger.String("stream", cfg.Worker.StreamName),
		logger.String("consumer_group", cfg.Worker.ConsumerGroup),
		logger.String("consumer", cfg.Worker.ConsumerName),
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

	// Initialize Redis client
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

	// Initialize executor and job processor
	clients := shopify.TokenFactory{
		AccessToken: cfg.Shopify.AccessToken,
		APIVersion:  cfg.Shopify.APIVersion,
		HTTPClient:  &http.Client{Timeout: cfg.Shopify.Timeout},
	}
	executor := trigger.NewExecutor(clients, factStore, ruleStore)
	processor := trigger.NewProcessor(executor, factStore, ruleStore)

	consumer := pubsub.NewTriggerConsumer(redisClient, processor, pubsub.TriggerConsumerConfig{
		Stream:         cfg.Worker.StreamName,
		ConsumerGroup:  cfg.Worker.ConsumerGroup,
		ConsumerName:   cfg.Worker.ConsumerName,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	})
	if err := consumer.Start(); err != nil {
		logger.Fatal("Failed to start trigger consumer",
			logger.ErrorField(err),
		)
	}

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
		Addr:    fmt.Sprintf(":%d", cfg.Worker.Port),
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
	logger.Info("Shutting down trigger worker")

	consumer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down health server",
			logger.ErrorField(err),
		)
	}

	logger.Info("Trigger worker stopped")
}
