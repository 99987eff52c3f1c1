package observability

import (
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the reporting API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	recordsLoaded   *prometheus.CounterVec
	reportsTotal    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoicer_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicer_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicer_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicer_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		recordsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicer_records_loaded_total",
				Help: "Total records loaded into report snapshots.",
			},
			[]string{"kind"},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicer_reports_total",
				Help: "Total reports generated, by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordSnapshot counts the invoices and expenses a report was built from.
func (m *Metrics) RecordSnapshot(invoices, expenses int) {
	m.recordsLoaded.WithLabelValues("invoice").Add(float64(invoices))
	m.recordsLoaded.WithLabelValues("expense").Add(float64(expenses))
}

// IncrReport increments the report counter with a status label.
func (m *Metrics) IncrReport(status string) {
	m.reportsTotal.WithLabelValues(status).Inc()
}

// GetReportSnapshot returns a snapshot of report counters suitable for the
// GET /v1/metrics/reports endpoint.
func (m *Metrics) GetReportSnapshot() *domain.ReportStats {
	success := getCounterValue(m.reportsTotal, "success")
	failed := getCounterValue(m.reportsTotal, "error")
	rejected := getCounterValue(m.reportsTotal, "rejected")
	cacheHits := getCounterValue(m.cacheHits, "auth")
	cacheMisses := getCounterValue(m.cacheMisses, "auth")

	total := success + failed + rejected
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if total > 0 {
		errorRate = failed / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ReportStats{
		TotalReports:    int64(total),
		FailedReports:   int64(failed),
		RejectedReports: int64(rejected),
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
