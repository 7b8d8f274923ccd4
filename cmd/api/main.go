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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outletx/merch-engine/internal/api"
	"github.com/outletx/merch-engine/internal/catalogsync"
	"github.com/outletx/merch-engine/internal/config"
	"github.com/outletx/merch-engine/internal/pubsub"
	"github.com/outletx/merch-engine/internal/scheduler"
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

	logger.Info("Starting REST API service",
		logger.Int("port", cfg.API.Port),
		logger.Int("rate_limit_rps", cfg.API.RateLimitRPS),
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

	// Initialize catalog client and executors
	clients := shopify.TokenFactory{
		AccessToken: cfg.Shopify.AccessToken,
		APIVersion:  cfg.Shopify.APIVersion,
		HTTPClient:  &http.Client{Timeout: cfg.Shopify.Timeout},
	}
	executor := trigger.NewExecutor(clients, factStore, ruleStore)
	runner := scheduler.NewRunner(ruleStore, factStore, settingsStore, publisher)
	ingestor := catalogsync.NewIngestor(factStore)

	// Initialize handlers
	ruleHandler := api.NewRuleHandler(ruleStore)
	settingsHandler := api.NewSettingsHandler(settingsStore)
	scheduleHandler := api.NewScheduleHandler(runner, executor, factStore, ruleStore)
	webhookHandler := api.NewWebhookHandler(ingestor)

	// Set up router
	router := mux.NewRouter()

	// API v1 routes
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Rule management endpoints
	v1.HandleFunc("/rules", ruleHandler.ListRules).Methods("GET")
	v1.HandleFunc("/rules", ruleHandler.CreateRule).Methods("POST")
	v1.HandleFunc("/rules/{id}", ruleHandler.GetRule).Methods("GET")
	v1.HandleFunc("/rules/{id}", ruleHandler.UpdateRule).Methods("PUT")
	v1.HandleFunc("/rules/{id}", ruleHandler.DeleteRule).Methods("DELETE")

	// Settings endpoints
	v1.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
	v1.HandleFunc("/settings", settingsHandler.PutSettings).Methods("PUT")

	// Scheduler endpoints
	v1.HandleFunc("/schedule", scheduleHandler.RunBatch).Methods("POST")
	v1.HandleFunc("/schedule/trigger/{factId}/{ruleId}", scheduleHandler.TriggerRule).Methods("POST")
	v1.HandleFunc("/schedule/revert/{factId}/{ruleId}", scheduleHandler.RevertRule).Methods("POST")

	// Catalog webhooks
	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.HandleFunc("/orders/create", webhookHandler.OrderCreated).Methods("POST")
	webhooks.HandleFunc("/products/update", webhookHandler.ProductUpdated).Methods("POST")
	webhooks.HandleFunc("/products/delete", webhookHandler.ProductDeleted).Methods("POST")

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Apply middleware
	middlewares := api.ChainMiddleware(
		api.CORSMiddleware(),
		api.LoggingMiddleware(),
		api.RecoveryMiddleware(),
		api.AuthMiddleware(api.NewAuthManager(cfg.API.JWTSecret)),
		api.RateLimitMiddleware(cfg.API.RateLimitRPS),
	)

	handler := middlewares(router)

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: handler,
	}

	go func() {
		logger.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down REST API service")

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}

	logger.Info("REST API service stopped")
}
