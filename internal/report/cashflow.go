package report

import (
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"

	"github.com/shopspring/decimal"
)

// CashFlowMonths is the number of monthly buckets in a report, ending with
// the current (partial) month.
const CashFlowMonths = 12

// MonthRange returns the bounds of the calendar month offset months away
// from now's month, in now's location: [start, next month start).
func MonthRange(now time.Time, offset int) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 1, 0)
	return start, end
}

// BuildCashFlow partitions paid invoice income and expenses into the trailing
// twelve calendar months, oldest first. Income is recognised in the month the
// invoice was created. Months without records are still emitted, zeroed.
func BuildCashFlow(invoices []domain.InvoiceRecord, expenses []domain.ExpenseRecord, now time.Time) []domain.CashFlowBucket {
	first, _ := MonthRange(now, -(CashFlowMonths - 1))

	buckets := make([]domain.CashFlowBucket, CashFlowMonths)
	for i := range buckets {
		start, _ := MonthRange(now, i-(CashFlowMonths-1))
		buckets[i] = domain.CashFlowBucket{
			Month:    start.Format("Jan 06"),
			Period:   start.Format("2006-01"),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
			Net:      decimal.Zero,
		}
	}

	for _, inv := range invoices {
		if !inv.IsPaid() {
			continue
		}
		if i, ok := bucketIndex(first, inv.CreatedAt); ok {
			buckets[i].Income = buckets[i].Income.Add(inv.Total)
		}
	}

	for _, exp := range expenses {
		if i, ok := bucketIndex(first, exp.Date); ok {
			buckets[i].Expenses = buckets[i].Expenses.Add(exp.Amount)
		}
	}

	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expenses)
	}
	return buckets
}

// bucketIndex maps t to its month bucket relative to the first bucket start.
// t is converted to the bucket location so month boundaries follow the
// server calendar.
func bucketIndex(first, t time.Time) (int, bool) {
	if t.Before(first) {
		return 0, false
	}
	lt := t.In(first.Location())
	i := (lt.Year()-first.Year())*12 + int(lt.Month()) - int(first.Month())
	if i < 0 || i >= CashFlowMonths {
		return 0, false
	}
	return i, true
}
