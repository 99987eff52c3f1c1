package report

import (
	"math"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"

	"github.com/shopspring/decimal"
)

// AgingBucket identifies which published aging column an invoice falls in.
type AgingBucket int

const (
	// AgingNone is an unpaid invoice 0-29 days past due, or one without a
	// due date. It is not published in any column.
	AgingNone AgingBucket = iota
	AgingCurrent
	AgingThirty
	AgingSixty
	AgingNinetyPlus
)

// DaysOverdue returns whole days between due and now, floored. Negative when
// the due date is still ahead.
func DaysOverdue(due, now time.Time) int {
	return int(math.Floor(now.Sub(due).Hours() / 24))
}

// Classify returns the aging bucket of a single invoice. Paid invoices never
// age.
func Classify(inv domain.InvoiceRecord, now time.Time) AgingBucket {
	if inv.IsPaid() || !inv.HasDueDate() {
		return AgingNone
	}
	if !inv.DueDate.Before(now) {
		return AgingCurrent
	}
	switch days := DaysOverdue(inv.DueDate, now); {
	case days >= 90:
		return AgingNinetyPlus
	case days >= 60:
		return AgingSixty
	case days >= 30:
		return AgingThirty
	}
	// 0-29 days past due is not published in any column.
	return AgingNone
}

// ClassifyAging sums unpaid invoice totals into the four aging columns.
func ClassifyAging(invoices []domain.InvoiceRecord, now time.Time) domain.AgingBreakdown {
	a := domain.AgingBreakdown{
		Current:    decimal.Zero,
		Thirty:     decimal.Zero,
		Sixty:      decimal.Zero,
		NinetyPlus: decimal.Zero,
	}
	for _, inv := range invoices {
		switch Classify(inv, now) {
		case AgingCurrent:
			a.Current = a.Current.Add(inv.Total)
		case AgingThirty:
			a.Thirty = a.Thirty.Add(inv.Total)
		case AgingSixty:
			a.Sixty = a.Sixty.Add(inv.Total)
		case AgingNinetyPlus:
			a.NinetyPlus = a.NinetyPlus.Add(inv.Total)
		}
	}
	return a
}
