package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/app"
	"github.com/boddenberg/invoicer-reports-go/internal/config"
	"github.com/boddenberg/invoicer-reports-go/internal/handler"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/cache"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
	"github.com/boddenberg/invoicer-reports-go/internal/port"
	"github.com/boddenberg/invoicer-reports-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// Amounts go out as JSON numbers, as the dashboard expects.
	decimal.MarshalJSONWithoutQuotes = true

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Bool("local_jwt_verification", cfg.SupabaseJWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("report_timeout", cfg.ReportTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "invoicer-reports")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	tokenCache := cache.New[string](cfg.CacheTTL)
	defer tokenCache.Close()

	// --- Data backend ---
	var (
		reportSvc *service.ReportService
		authSvc   *service.AuthService
		backend   *app.Backend
	)
	backend, err = app.NewBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Warn("data backend not configured, report routes unavailable", zap.Error(err))
	} else {
		defer backend.Close()

		// --- Services ---
		reportSvc = service.NewReportService(
			backend.Loader,
			resilience.NewBulkhead(cfg.MaxConcurrency),
			metrics,
			logger,
			cfg.ReportTimeout,
		)
		authSvc = service.NewAuthService(backend.Resolver, cfg.SupabaseJWTSecret, tokenCache, metrics, logger)
		if cfg.SupabaseJWTSecret == "" && backend.Resolver == nil {
			logger.Warn("auth: neither SUPABASE_JWT_SECRET nor Supabase Auth configured, every token will be rejected")
		}
		logger.Info("report service enabled")
	}

	// --- Router ---
	var health port.HealthChecker
	if backend != nil {
		health = backend.Health
	}
	router := handler.NewRouter(reportSvc, authSvc, health, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
