package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/handler"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"

	"go.uber.org/zap"
)

type mockBackend struct {
	err error
}

func (m *mockBackend) Ping(_ context.Context) error { return m.err }

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_BackendDegraded(t *testing.T) {
	router := handler.NewRouter(nil, nil, &mockBackend{err: errors.New("connection refused")}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	var health domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("expected degraded, got %s", health.Status)
	}
	if len(health.Services) != 2 || health.Services[1].Name != "data-backend" {
		t.Errorf("expected data-backend entry, got %+v", health.Services)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrReport("success")
	router := handler.NewRouter(nil, nil, nil, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invoicer_reports_total") {
		t.Error("expected application metrics in the exposition")
	}
}

func TestReportMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrReport("success")
	metrics.IncrReport("error")
	router := handler.NewRouter(nil, nil, nil, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/reports", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	var stats domain.ReportStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalReports != 2 || stats.FailedReports != 1 || stats.ErrorRate != 0.5 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestReports_Unconfigured(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), zap.NewNop())

	for _, path := range []string{"/v1/reports", "/v1/reports/export"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}
