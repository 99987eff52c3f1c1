package report

import (
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
)

// Build runs the three computations sequentially over one snapshot.
// Identity fields (ID, UserID, Period, GeneratedAt) are left to the caller.
func Build(snap domain.Snapshot, now time.Time) *domain.Report {
	return &domain.Report{
		Metrics:      Aggregate(snap.Invoices, snap.Expenses, now),
		CashFlow:     BuildCashFlow(snap.Invoices, snap.Expenses, now),
		InvoiceAging: ClassifyAging(snap.Invoices, now),
		TopClients:   []domain.ClientSummary{},
	}
}
