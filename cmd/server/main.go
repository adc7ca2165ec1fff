package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/go-todo/internal/app"
	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/handler"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		startupLogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageBackend),
		slog.Bool("telemetry", cfg.TelemetryEnabled()),
	)

	ctx := context.Background()

	logger, shutdownTelemetry, err := setupTelemetry(ctx, cfg, startupLogger)
	if err != nil {
		startupLogger.Error("failed to initialize telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdownTelemetry()

	// Global meter is a no-op when no collector is configured.
	meter := otel.Meter(cfg.ServiceName)

	metrics, err := telemetry.NewMetrics(meter, nil)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// Open storage and hydrate the store
	todos, err := app.Open(ctx, cfg, logger, app.WithFailureCounter(metrics.StorageFailures))
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := todos.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()
	metrics.TrackTodos(todos.Store.Count)

	todoHandler := handler.NewTodoHandler(todos.Store, logger, metrics)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (excluded from tracing)
	r.Get("/health", todoHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/todos", todoHandler.Routes())
	})

	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}

// setupTelemetry installs the OTLP tracer, meter and logger providers
// when an endpoint is configured. Otherwise it returns a local zap-backed
// logger and leaves the global no-op providers in place.
func setupTelemetry(ctx context.Context, cfg *config.Config, startupLogger *slog.Logger) (*slog.Logger, func(), error) {
	if !cfg.TelemetryEnabled() {
		logger, sync, err := telemetry.NewLocalLogger(cfg.LogLevel, cfg.PrettyLog)
		if err != nil {
			return nil, nil, err
		}
		slog.SetDefault(logger)
		return logger, func() { _ = sync() }, nil
	}

	tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}

	mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}

	// Logger provider last, for log-trace correlation
	lp, logger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func() {
		if err := lp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown logger provider", slog.Any("error", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown meter provider", slog.Any("error", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown tracer provider", slog.Any("error", err))
		}
	}
	return logger, shutdown, nil
}
