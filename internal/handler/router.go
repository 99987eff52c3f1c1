package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/port"
	"github.com/boddenberg/invoicer-reports-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const healthCheckTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// A nil reportSvc or authSvc turns the report routes into 503s so the
// operational endpoints stay up while the backend is unconfigured.
func NewRouter(
	reportSvc *service.ReportService,
	authSvc *service.AuthService,
	backend port.HealthChecker,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(backend, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/reports", reportMetricsHandler(metrics))

		r.Route("/reports", func(r chi.Router) {
			if reportSvc == nil || authSvc == nil {
				unavailable := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusServiceUnavailable, "report service unavailable: data backend not configured")
				})
				r.Handle("/", unavailable)
				r.Handle("/*", unavailable)
				return
			}

			r.Use(AuthMiddleware(authSvc, logger))
			r.Get("/", getReportHandler(reportSvc, logger))
			r.Get("/export", exportReportHandler(reportSvc, logger))
		})
	})

	return r
}

// ============================================================
// Probes & metrics
// ============================================================

func healthzHandler(backend port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "reports-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if backend != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := backend.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health: data backend ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "data-backend", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func reportMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetReportSnapshot())
	}
}
