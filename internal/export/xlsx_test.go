package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/export"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *domain.Report {
	r := &domain.Report{
		ID:          "rep-1",
		UserID:      "user-1",
		Period:      domain.ReportPeriod{Start: "2024-01-01", End: "2024-03-15"},
		GeneratedAt: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
		Metrics: domain.Metrics{
			TotalInvoiced:       decimal.RequireFromString("1500.50"),
			TotalPaid:           decimal.NewFromInt(1000),
			TotalOutstanding:    decimal.RequireFromString("500.50"),
			TotalExpenses:       decimal.NewFromInt(300),
			Profitability:       decimal.RequireFromString("1200.50"),
			InvoiceCount:        2,
			PaidInvoices:        1,
			OverdueInvoices:     1,
			AverageInvoiceValue: decimal.RequireFromString("750.25"),
			PaymentSuccessRate:  50,
		},
		InvoiceAging: domain.AgingBreakdown{
			Current:    decimal.Zero,
			Thirty:     decimal.RequireFromString("500.50"),
			Sixty:      decimal.Zero,
			NinetyPlus: decimal.Zero,
		},
	}
	for i := 0; i < 12; i++ {
		r.CashFlow = append(r.CashFlow, domain.CashFlowBucket{
			Month:    time.Date(2023, time.April+time.Month(i), 1, 0, 0, 0, 0, time.UTC).Format("Jan 06"),
			Period:   time.Date(2023, time.April+time.Month(i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
			Net:      decimal.Zero,
		})
	}
	r.CashFlow[10].Income = decimal.NewFromInt(1000)
	r.CashFlow[10].Net = decimal.NewFromInt(1000)
	return r
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("expected a readable workbook, got %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{export.SummarySheet, export.CashFlowSheet, export.AgingSheet}
	if len(sheets) != len(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("expected sheet %d to be %q, got %q", i, want[i], sheets[i])
		}
	}

	if v, _ := f.GetCellValue(export.SummarySheet, "B2"); v != "rep-1" {
		t.Errorf("expected report id in B2, got %q", v)
	}
	if v, _ := f.GetCellValue(export.SummarySheet, "A6"); v != "Total invoiced" {
		t.Errorf("expected total invoiced label in A6, got %q", v)
	}

	rows, err := f.GetRows(export.CashFlowSheet)
	if err != nil {
		t.Fatalf("read cash flow rows: %v", err)
	}
	if len(rows) != 13 {
		t.Fatalf("expected header + 12 months, got %d rows", len(rows))
	}
	if rows[1][0] != "Apr 23" || rows[12][0] != "Mar 24" {
		t.Errorf("unexpected month labels %q .. %q", rows[1][0], rows[12][0])
	}
	if rows[11][1] != "2024-02" {
		t.Errorf("expected Feb period key, got %q", rows[11][1])
	}

	if v, _ := f.GetCellValue(export.AgingSheet, "A3"); v != "30 days" {
		t.Errorf("expected 30 days label in A3, got %q", v)
	}
	if v, _ := f.GetCellValue(export.AgingSheet, "B3", excelize.Options{RawCellValue: true}); v != "500.5" {
		t.Errorf("expected raw 500.5 in B3, got %q", v)
	}
}

func TestFilename(t *testing.T) {
	if got := export.Filename(sampleReport()); got != "report_2024-01-01_2024-03-15.xlsx" {
		t.Errorf("unexpected filename %q", got)
	}
}
