package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Financial report (GET /v1/reports)
// ============================================================

// Report is the aggregate returned to the dashboard.
// Field names match the JSON contract the frontend already consumes.
type Report struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Period      ReportPeriod `json:"period"`
	GeneratedAt time.Time    `json:"generated_at"`

	Metrics

	CashFlow     []CashFlowBucket `json:"cash_flow"`
	InvoiceAging AgingBreakdown   `json:"invoice_aging"`
	TopClients   []ClientSummary  `json:"top_clients"` // always present, never null
}

// ReportPeriod echoes the window the report was computed for.
type ReportPeriod struct {
	Start string `json:"start"` // YYYY-MM-DD
	End   string `json:"end"`
}

// Metrics are the scalar summary values of a report.
type Metrics struct {
	TotalInvoiced       decimal.Decimal `json:"total_invoiced"`
	TotalPaid           decimal.Decimal `json:"total_paid"`
	TotalOutstanding    decimal.Decimal `json:"total_outstanding"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	Profitability       decimal.Decimal `json:"profitability"`
	InvoiceCount        int             `json:"invoice_count"`
	PaidInvoices        int             `json:"paid_invoices"`
	OverdueInvoices     int             `json:"overdue_invoices"`
	AverageInvoiceValue decimal.Decimal `json:"average_invoice_value"`
	PaymentSuccessRate  float64         `json:"payment_success_rate"` // percentage, 0..100
}

// CashFlowBucket is one calendar month of income vs expenses.
type CashFlowBucket struct {
	Month    string          `json:"month"`  // e.g. "Feb 24"
	Period   string          `json:"period"` // YYYY-MM
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// AgingBreakdown groups unpaid invoice totals by how long they are past due.
type AgingBreakdown struct {
	Current    decimal.Decimal `json:"current"`
	Thirty     decimal.Decimal `json:"thirty"`
	Sixty      decimal.Decimal `json:"sixty"`
	NinetyPlus decimal.Decimal `json:"ninety_plus"`
}

// ClientSummary is one row of the dashboard's top clients table.
type ClientSummary struct {
	Name          string          `json:"name"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	Paid          decimal.Decimal `json:"paid"`
}

// Total returns the sum of all four buckets.
func (a AgingBreakdown) Total() decimal.Decimal {
	return a.Current.Add(a.Thirty).Add(a.Sixty).Add(a.NinetyPlus)
}

// ReportStats is a snapshot of report counters for GET /v1/metrics/reports.
type ReportStats struct {
	TotalReports    int64   `json:"total_reports"`
	FailedReports   int64   `json:"failed_reports"`
	RejectedReports int64   `json:"rejected_reports"` // invalid range or missing user
	ErrorRate       float64 `json:"error_rate"`
	CacheHitRate    float64 `json:"auth_cache_hit_rate"`
	Period          string  `json:"period"`
}
