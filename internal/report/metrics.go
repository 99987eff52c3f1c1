// Package report computes the dashboard financial report from a snapshot of
// invoice and expense records. Everything here is pure: no I/O, no clocks,
// the caller passes "now" explicitly.
package report

import (
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Aggregate reduces the window's records into the scalar report metrics.
// Empty input yields all-zero metrics.
func Aggregate(invoices []domain.InvoiceRecord, expenses []domain.ExpenseRecord, now time.Time) domain.Metrics {
	m := domain.Metrics{
		TotalInvoiced:       decimal.Zero,
		TotalPaid:           decimal.Zero,
		TotalOutstanding:    decimal.Zero,
		TotalExpenses:       decimal.Zero,
		AverageInvoiceValue: decimal.Zero,
	}

	for _, inv := range invoices {
		m.TotalInvoiced = m.TotalInvoiced.Add(inv.Total)
		if inv.IsPaid() {
			m.TotalPaid = m.TotalPaid.Add(inv.Total)
			m.PaidInvoices++
			continue
		}
		m.TotalOutstanding = m.TotalOutstanding.Add(inv.Total)
		if inv.HasDueDate() && inv.DueDate.Before(now) {
			m.OverdueInvoices++
		}
	}
	m.InvoiceCount = len(invoices)

	for _, exp := range expenses {
		m.TotalExpenses = m.TotalExpenses.Add(exp.Amount)
	}

	// May be negative.
	m.Profitability = m.TotalPaid.Sub(m.TotalExpenses)

	if m.InvoiceCount > 0 {
		count := decimal.NewFromInt(int64(m.InvoiceCount))
		m.AverageInvoiceValue = m.TotalInvoiced.Div(count).Round(2)
		m.PaymentSuccessRate = decimal.NewFromInt(int64(m.PaidInvoices)).
			Div(count).
			Mul(hundred).
			InexactFloat64()
	}

	return m
}
