// Package main provides the HL7 gateway service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/clinsim/hl7bridge/internal/api/handlers"
	"github.com/clinsim/hl7bridge/internal/api/middleware"
	"github.com/clinsim/hl7bridge/internal/infrastructure/redpanda"
	"github.com/clinsim/hl7bridge/internal/observability/metrics"
	"github.com/clinsim/hl7bridge/internal/observability/tracing"
	"github.com/clinsim/hl7bridge/pkg/circuitbreaker"
)

// Config holds application configuration
type Config struct {
	Port         string
	Brokers      []string
	APIKeys      map[string]string
	BatchWorkers int
	MaxBodyBytes int64
	LogLevel     string
}

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg := loadConfig()

	// Tracing is optional; enabled when an OTLP endpoint is configured
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		provider, err := tracing.Init(context.Background(), tracing.FromEnv("hl7gateway"))
		if err != nil {
			logger.Fatal("failed to init tracing", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			provider.Shutdown(ctx)
		}()
		logger.Info("tracing enabled")
	}

	appMetrics := metrics.New()

	// Event publication is optional; enabled when brokers are configured
	var (
		producer *redpanda.Producer
		breaker  *circuitbreaker.Breaker
	)
	if len(cfg.Brokers) > 0 {
		admin, err := redpanda.NewAdmin(cfg.Brokers, logger)
		if err != nil {
			logger.Fatal("failed to connect to brokers", zap.Error(err))
		}
		bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := admin.EnsureTopics(bootCtx); err != nil {
			cancel()
			logger.Fatal("failed to create topics", zap.Error(err))
		}
		cancel()
		admin.Close()

		producerCfg := redpanda.DefaultProducerConfig()
		producerCfg.Brokers = cfg.Brokers
		producer, err = redpanda.NewProducer(producerCfg, logger)
		if err != nil {
			logger.Fatal("failed to create producer", zap.Error(err))
		}
		defer producer.Close()

		breaker, err = circuitbreaker.New(circuitbreaker.DefaultConfig("event-publish"), logger)
		if err != nil {
			logger.Fatal("failed to create circuit breaker", zap.Error(err))
		}
		logger.Info("event publication enabled", zap.Strings("brokers", cfg.Brokers))
	}

	// Initialize handlers
	handlerCfg := handlers.Config{
		Breaker:      breaker,
		Metrics:      appMetrics,
		Logger:       logger,
		BatchWorkers: cfg.BatchWorkers,
	}
	if producer != nil {
		handlerCfg.Publisher = producer
	}
	bridgeHandler := handlers.New(handlerCfg)
	defer bridgeHandler.Close()

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("hl7gateway"))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !bridgeHandler.Healthy() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes (with auth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))
		r.Mount("/", bridgeHandler.Routes())
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting HL7 gateway", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = strings.Split(v, ",")
	}

	workers := 8
	if v := os.Getenv("BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	// Simple API keys for demo
	apiKeys := map[string]string{
		"demo-api-key-12345": "demo-client",
		"test-api-key-67890": "test-client",
	}

	// Override from environment if set
	if key := os.Getenv("API_KEY"); key != "" {
		apiKeys[key] = "env-client"
	}

	return Config{
		Port:         port,
		Brokers:      brokers,
		APIKeys:      apiKeys,
		BatchWorkers: workers,
		MaxBodyBytes: 5 << 20,
		LogLevel:     os.Getenv("LOG_LEVEL"),
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"hl7gateway","version":"1.0.0"}`)
}
