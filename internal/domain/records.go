package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Records loaded from the storage collaborator (read-only snapshot)
// ============================================================

// InvoiceStatus is the lifecycle state of an invoice as stored upstream.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is one of the known invoice statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// InvoiceRecord is the subset of an invoice the reporting engine reads.
type InvoiceRecord struct {
	ID        string          `json:"id"`
	Total     decimal.Decimal `json:"total"`
	Status    InvoiceStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	DueDate   time.Time       `json:"due_date"` // zero when the invoice has no due date
}

// IsPaid reports whether the invoice counts as collected.
func (r InvoiceRecord) IsPaid() bool {
	return r.Status == InvoicePaid
}

// HasDueDate reports whether a due date was set upstream.
func (r InvoiceRecord) HasDueDate() bool {
	return !r.DueDate.IsZero()
}

// Validate checks the record invariants enforced at the storage boundary.
func (r InvoiceRecord) Validate() error {
	if r.Total.IsNegative() {
		return &ErrValidation{Field: "invoices.total", Message: "must be >= 0 (invoice " + r.ID + ")"}
	}
	if !r.Status.Valid() {
		return &ErrValidation{Field: "invoices.status", Message: "unknown status '" + string(r.Status) + "' (invoice " + r.ID + ")"}
	}
	if r.CreatedAt.IsZero() {
		return &ErrValidation{Field: "invoices.created_at", Message: "required (invoice " + r.ID + ")"}
	}
	return nil
}

// ExpenseRecord is the subset of an expense the reporting engine reads.
type ExpenseRecord struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// Validate checks the record invariants enforced at the storage boundary.
func (r ExpenseRecord) Validate() error {
	if r.Amount.IsNegative() {
		return &ErrValidation{Field: "expenses.amount", Message: "must be >= 0 (expense " + r.ID + ")"}
	}
	if r.Date.IsZero() {
		return &ErrValidation{Field: "expenses.date", Message: "required (expense " + r.ID + ")"}
	}
	return nil
}

// Window is the inclusive date range a report covers. Start and End are
// calendar days; End covers the whole day.
type Window struct {
	Start time.Time
	End   time.Time
}

// From returns the first instant of the window.
func (w Window) From() time.Time {
	return time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, w.Start.Location())
}

// Until returns the first instant after the window (exclusive upper bound).
func (w Window) Until() time.Time {
	return time.Date(w.End.Year(), w.End.Month(), w.End.Day()+1, 0, 0, 0, 0, w.End.Location())
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From()) && t.Before(w.Until())
}

// Snapshot is the immutable set of records a single report is computed from.
type Snapshot struct {
	Invoices []InvoiceRecord
	Expenses []ExpenseRecord
}
