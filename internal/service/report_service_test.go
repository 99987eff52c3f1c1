package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
	"github.com/boddenberg/invoicer-reports-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockLoader struct {
	snap   *domain.Snapshot
	err    error
	block  bool
	calls  int
	userID string
	window domain.Window
}

func (m *mockLoader) LoadRecords(ctx context.Context, userID string, window domain.Window) (*domain.Snapshot, error) {
	m.calls++
	m.userID = userID
	m.window = window
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.snap, m.err
}

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newReportService(loader *mockLoader, metrics *observability.Metrics, timeout time.Duration) *service.ReportService {
	return service.NewReportService(
		loader,
		resilience.NewBulkhead(4),
		metrics,
		zap.NewNop(),
		timeout,
		service.WithClock(func() time.Time { return fixedNow }),
	)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// --- Tests ---

func TestGenerateReport_Success(t *testing.T) {
	loader := &mockLoader{snap: &domain.Snapshot{
		Invoices: []domain.InvoiceRecord{
			{ID: "inv-1", Total: decimal.NewFromInt(1000), Status: domain.InvoicePaid, CreatedAt: fixedNow.AddDate(0, 0, -40)},
			{ID: "inv-2", Total: decimal.NewFromInt(500), Status: domain.InvoicePending, CreatedAt: fixedNow.AddDate(0, 0, -60), DueDate: fixedNow.AddDate(0, 0, -45)},
		},
		Expenses: []domain.ExpenseRecord{
			{ID: "exp-1", Amount: decimal.NewFromInt(300), Date: fixedNow.AddDate(0, 0, -5)},
		},
	}}
	metrics := observability.NewMetrics()
	svc := newReportService(loader, metrics, time.Second)

	rep, err := svc.GenerateReport(context.Background(), "user-1", nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if rep.ID == "" {
		t.Error("expected a report id")
	}
	if rep.UserID != "user-1" || loader.userID != "user-1" {
		t.Errorf("expected user-1, got report %q loader %q", rep.UserID, loader.userID)
	}
	if rep.Period.Start != "2024-01-01" || rep.Period.End != "2024-03-15" {
		t.Errorf("expected default period 2024-01-01..2024-03-15, got %+v", rep.Period)
	}
	if !loader.window.From().Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window start %s", loader.window.From())
	}
	if !loader.window.Until().Equal(time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window end %s", loader.window.Until())
	}
	if !rep.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected generated_at %s, got %s", fixedNow, rep.GeneratedAt)
	}

	if !rep.TotalInvoiced.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected total invoiced 1500, got %s", rep.TotalInvoiced)
	}
	if !rep.Profitability.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected profitability 700, got %s", rep.Profitability)
	}
	if rep.OverdueInvoices != 1 {
		t.Errorf("expected 1 overdue invoice, got %d", rep.OverdueInvoices)
	}
	if len(rep.CashFlow) != 12 {
		t.Fatalf("expected 12 cash flow buckets, got %d", len(rep.CashFlow))
	}
	if !rep.CashFlow[10].Income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected Feb income 1000, got %s", rep.CashFlow[10].Income)
	}
	if !rep.InvoiceAging.Thirty.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected 500 in the 30 day bucket, got %s", rep.InvoiceAging.Thirty)
	}

	if rep.TopClients == nil || len(rep.TopClients) != 0 {
		t.Errorf("expected empty non-nil top clients, got %#v", rep.TopClients)
	}

	stats := metrics.GetReportSnapshot()
	if stats.TotalReports != 1 || stats.FailedReports != 0 {
		t.Errorf("expected 1 successful report, got %+v", stats)
	}
}

func TestGenerateReport_EmptySnapshot(t *testing.T) {
	svc := newReportService(&mockLoader{}, observability.NewMetrics(), 0)

	rep, err := svc.GenerateReport(context.Background(), "user-1", date(2024, time.January, 1), date(2024, time.January, 31))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !rep.TotalInvoiced.IsZero() || rep.InvoiceCount != 0 || rep.PaymentSuccessRate != 0 {
		t.Errorf("expected zero metrics, got %+v", rep.Metrics)
	}
	if len(rep.CashFlow) != 12 {
		t.Errorf("expected 12 buckets even without records, got %d", len(rep.CashFlow))
	}
	if !rep.InvoiceAging.Total().IsZero() {
		t.Errorf("expected empty aging, got %+v", rep.InvoiceAging)
	}
}

func TestGenerateReport_ExplicitRange(t *testing.T) {
	loader := &mockLoader{snap: &domain.Snapshot{}}
	svc := newReportService(loader, observability.NewMetrics(), 0)

	rep, err := svc.GenerateReport(context.Background(), "user-1", date(2023, time.June, 1), date(2023, time.June, 1))
	if err != nil {
		t.Fatalf("expected single-day range to be valid, got %v", err)
	}
	if rep.Period.Start != "2023-06-01" || rep.Period.End != "2023-06-01" {
		t.Errorf("unexpected period %+v", rep.Period)
	}
	if got := loader.window.Until(); !got.Equal(time.Date(2023, time.June, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected end to cover the whole day, got %s", got)
	}
}

func TestGenerateReport_InvalidRangeRejectedBeforeFetch(t *testing.T) {
	loader := &mockLoader{snap: &domain.Snapshot{}}
	metrics := observability.NewMetrics()
	svc := newReportService(loader, metrics, 0)

	rep, err := svc.GenerateReport(context.Background(), "user-1", date(2024, time.March, 10), date(2024, time.March, 1))

	var rangeErr *domain.ErrInvalidRange
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if rangeErr.Start != "2024-03-10" || rangeErr.End != "2024-03-01" {
		t.Errorf("unexpected range in error: %+v", rangeErr)
	}
	if rep != nil {
		t.Error("expected no report")
	}
	if loader.calls != 0 {
		t.Errorf("expected no fetch, got %d calls", loader.calls)
	}

	stats := metrics.GetReportSnapshot()
	if stats.RejectedReports != 1 || stats.TotalReports != 1 || stats.FailedReports != 0 {
		t.Errorf("expected one rejected report, got %+v", stats)
	}
}

func TestGenerateReport_DefaultStartAfterExplicitEnd(t *testing.T) {
	loader := &mockLoader{snap: &domain.Snapshot{}}
	svc := newReportService(loader, observability.NewMetrics(), 0)

	_, err := svc.GenerateReport(context.Background(), "user-1", nil, date(2023, time.December, 31))

	var rangeErr *domain.ErrInvalidRange
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if loader.calls != 0 {
		t.Errorf("expected no fetch, got %d calls", loader.calls)
	}
}

func TestGenerateReport_MissingUser(t *testing.T) {
	loader := &mockLoader{}
	metrics := observability.NewMetrics()
	svc := newReportService(loader, metrics, 0)

	_, err := svc.GenerateReport(context.Background(), "", nil, nil)

	var vErr *domain.ErrValidation
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if loader.calls != 0 {
		t.Errorf("expected no fetch, got %d calls", loader.calls)
	}
	if stats := metrics.GetReportSnapshot(); stats.RejectedReports != 1 || stats.TotalReports != 1 {
		t.Errorf("expected one rejected report, got %+v", stats)
	}
}

func TestGenerateReport_EastOfUTCSingleDay(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, zone)

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"start and end today", "2024-03-15", "2024-03-15"},
		{"start today, end defaulted", "2024-03-15", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &mockLoader{snap: &domain.Snapshot{}}
			svc := service.NewReportService(
				loader,
				resilience.NewBulkhead(4),
				observability.NewMetrics(),
				zap.NewNop(),
				0,
				service.WithClock(func() time.Time { return now }),
			)

			start, err := service.ParseDate("start", tt.start)
			if err != nil {
				t.Fatalf("parse start: %v", err)
			}
			end, err := service.ParseDate("end", tt.end)
			if err != nil {
				t.Fatalf("parse end: %v", err)
			}

			rep, err := svc.GenerateReport(context.Background(), "user-1", start, end)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if loader.calls != 1 {
				t.Errorf("expected 1 fetch, got %d", loader.calls)
			}
			if rep.Period.Start != "2024-03-15" || rep.Period.End != "2024-03-15" {
				t.Errorf("expected a single-day period, got %+v", rep.Period)
			}
			want := time.Date(2024, time.March, 16, 0, 0, 0, 0, zone)
			if got := loader.window.Until(); !got.Equal(want) {
				t.Errorf("expected window to end at %s, got %s", want, got)
			}
		})
	}
}

func TestGenerateReport_UpstreamFailure(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := newReportService(&mockLoader{err: errors.New("connection refused")}, metrics, 0)

	rep, err := svc.GenerateReport(context.Background(), "user-1", nil, nil)

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if rep != nil {
		t.Errorf("expected no partial report, got %+v", rep)
	}

	stats := metrics.GetReportSnapshot()
	if stats.FailedReports != 1 || stats.ErrorRate != 1 {
		t.Errorf("expected the failure to be counted, got %+v", stats)
	}
}

func TestGenerateReport_TypedLoaderErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name: "circuit open",
			err:  &domain.ErrCircuitOpen{Service: "supabase/invoices"},
			check: func(err error) bool {
				var target *domain.ErrCircuitOpen
				return errors.As(err, &target)
			},
		},
		{
			name: "external service",
			err:  &domain.ErrExternalService{Service: "supabase/expenses", Err: errors.New("503")},
			check: func(err error) bool {
				var target *domain.ErrExternalService
				return errors.As(err, &target) && target.Service == "supabase/expenses"
			},
		},
		{
			name: "timeout",
			err:  &domain.ErrTimeout{Operation: "supabase/invoices"},
			check: func(err error) bool {
				var target *domain.ErrTimeout
				return errors.As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newReportService(&mockLoader{err: tt.err}, observability.NewMetrics(), 0)

			_, err := svc.GenerateReport(context.Background(), "user-1", nil, nil)
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestGenerateReport_CancelledContext(t *testing.T) {
	loader := &mockLoader{snap: &domain.Snapshot{}}
	svc := newReportService(loader, observability.NewMetrics(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateReport(ctx, "user-1", nil, nil)

	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if loader.calls != 0 {
		t.Errorf("expected no fetch, got %d calls", loader.calls)
	}
}

func TestGenerateReport_Timeout(t *testing.T) {
	svc := newReportService(&mockLoader{block: true}, observability.NewMetrics(), 20*time.Millisecond)

	_, err := svc.GenerateReport(context.Background(), "user-1", nil, nil)

	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	got, err := service.ParseDate("start", "")
	if err != nil || got != nil {
		t.Errorf("expected nil for empty value, got %v, %v", got, err)
	}

	got, err = service.ParseDate("start", "2024-02-29")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !got.Equal(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %s", got)
	}

	for _, bad := range []string{"2024-13-01", "15/03/2024", "2024-02-30", "yesterday"} {
		_, err := service.ParseDate("end", bad)
		var vErr *domain.ErrValidation
		if !errors.As(err, &vErr) || vErr.Field != "end" {
			t.Errorf("expected ErrValidation on end for %q, got %v", bad, err)
		}
	}
}
