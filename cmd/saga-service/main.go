package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	resourcehandlers "github.com/draftea/event-saga/resource-service/handlers"
	"github.com/draftea/event-saga/saga-service/config"
	"github.com/draftea/event-saga/saga-service/handlers"
	"github.com/draftea/event-saga/shared/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const apiVersion = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.ReadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = logger.With(slog.String("service", cfg.ServiceName), slog.String("env", cfg.Env))
	logger.Info("starting service", slog.String("port", cfg.Port))

	// Initialize dependencies
	ctx := context.Background()
	deps, err := config.BuildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("error closing dependencies", slog.String("error", err.Error()))
		}
	}()

	// Setup and start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(deps),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
		return
	}

	logger.Info("stopped")
}

func setupRouter(deps *config.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// Telemetry middleware (inject telemetry into context)
	if deps.Telemetry != nil {
		r.Use(telemetry.Middleware(deps.Telemetry))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		resourcehandlers.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "Saga Pattern Demo API is running",
			"version": apiVersion,
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", handlers.NewMetricsHandler())

	deps.ResourceHandlers.RegisterRoutes(r)
	deps.SagaHandlers.RegisterRoutes(r)
	if deps.DemoHandlers != nil {
		deps.DemoHandlers.RegisterRoutes(r)
	}

	return r
}
