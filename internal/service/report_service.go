package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
	"github.com/boddenberg/invoicer-reports-go/internal/port"
	"github.com/boddenberg/invoicer-reports-go/internal/report"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/report")

// DateLayout is the wire format of the start/end query parameters and of
// Report.Period.
const DateLayout = "2006-01-02"

// ReportService generates financial reports from a user's record snapshot.
type ReportService struct {
	loader   port.RecordLoader
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// ReportOption customizes a ReportService.
type ReportOption func(*ReportService)

// WithClock replaces the wall clock used for defaults and "now"-relative
// computations.
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

// NewReportService creates the report service with all dependencies injected.
// A zero timeout leaves the caller's deadline untouched.
func NewReportService(
	loader port.RecordLoader,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
	timeout time.Duration,
	opts ...ReportOption,
) *ReportService {
	s := &ReportService{
		loader:   loader,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateReport loads the user's invoices and expenses for [start, end]
// and computes metrics, cash flow and aging over that one snapshot.
// Nil bounds default to January 1st of the current year and today.
func (s *ReportService) GenerateReport(ctx context.Context, userID string, start, end *time.Time) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrTimeout{Operation: "report"}
	}

	ctx, span := tracer.Start(ctx, "ReportService.GenerateReport")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	began := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("report", time.Since(began))
	}()

	now := s.now()
	window := defaultWindow(now, start, end)
	if window.Start.After(window.End) {
		s.metrics.IncrReport("rejected")
		return nil, &domain.ErrInvalidRange{
			Start: window.Start.Format(DateLayout),
			End:   window.End.Format(DateLayout),
		}
	}
	if userID == "" {
		s.metrics.IncrReport("rejected")
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}

	span.SetAttributes(
		attribute.String("window.start", window.Start.Format(DateLayout)),
		attribute.String("window.end", window.End.Format(DateLayout)),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap, err := s.load(ctx, userID, window)
	if err != nil {
		s.metrics.IncrReport("error")
		s.logger.Error("report generation failed",
			zap.String("user_id", userID),
			zap.String("start", window.Start.Format(DateLayout)),
			zap.String("end", window.End.Format(DateLayout)),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordSnapshot(len(snap.Invoices), len(snap.Expenses))

	rep := &domain.Report{
		ID:     uuid.NewString(),
		UserID: userID,
		Period: domain.ReportPeriod{
			Start: window.Start.Format(DateLayout),
			End:   window.End.Format(DateLayout),
		},
		GeneratedAt: now,
		TopClients:  []domain.ClientSummary{},
	}

	// The three computations only read the snapshot and write disjoint fields.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		rep.Metrics = report.Aggregate(snap.Invoices, snap.Expenses, now)
	}()
	go func() {
		defer wg.Done()
		rep.CashFlow = report.BuildCashFlow(snap.Invoices, snap.Expenses, now)
	}()
	go func() {
		defer wg.Done()
		rep.InvoiceAging = report.ClassifyAging(snap.Invoices, now)
	}()
	wg.Wait()

	s.metrics.IncrReport("success")
	s.logger.Info("report generated",
		zap.String("report_id", rep.ID),
		zap.String("user_id", userID),
		zap.Int("invoices", len(snap.Invoices)),
		zap.Int("expenses", len(snap.Expenses)),
		zap.Duration("duration", time.Since(began)),
	)
	return rep, nil
}

// load fetches the snapshot behind the bulkhead and normalizes failures:
// typed availability errors pass through, everything else becomes an
// ErrExternalService so no partial report is ever built.
func (s *ReportService) load(ctx context.Context, userID string, window domain.Window) (*domain.Snapshot, error) {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "report: waiting for a fetch slot"}
	}
	defer s.bulkhead.Release()

	snap, err := s.loader.LoadRecords(ctx, userID, window)
	if err == nil && snap == nil {
		snap = &domain.Snapshot{}
	}
	if err == nil {
		return snap, nil
	}

	var (
		circuitErr *domain.ErrCircuitOpen
		timeoutErr *domain.ErrTimeout
		extErr     *domain.ErrExternalService
	)
	switch {
	case errors.As(err, &circuitErr):
		s.metrics.IncrExternalError(circuitErr.Service)
		return nil, err
	case errors.As(err, &timeoutErr):
		return nil, err
	case ctx.Err() != nil:
		return nil, &domain.ErrTimeout{Operation: "report: loading records"}
	case errors.As(err, &extErr):
		s.metrics.IncrExternalError(extErr.Service)
		return nil, err
	}
	s.metrics.IncrExternalError("records")
	return nil, &domain.ErrExternalService{Service: "records", Err: err}
}

// defaultWindow fills missing bounds relative to now and truncates both to
// calendar days. Explicit dates keep their calendar day but are placed in
// now's location so they compare against the defaults.
func defaultWindow(now time.Time, start, end *time.Time) domain.Window {
	loc := now.Location()
	w := domain.Window{
		Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc),
		End:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc),
	}
	if start != nil {
		w.Start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	}
	if end != nil {
		w.End = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	}
	return w
}

// ParseDate parses an optional YYYY-MM-DD parameter. An empty value yields
// nil so the service default applies.
func ParseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, &domain.ErrValidation{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return &t, nil
}
