package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Report snapshot: invoices + expenses (implements port.RecordLoader)
// ============================================================

// pageSize matches the default PostgREST max-rows on Supabase projects.
const pageSize = 1000

const dateLayout = "2006-01-02"

// supabaseInvoice maps the invoices table columns the report reads.
type supabaseInvoice struct {
	ID        string              `json:"id"`
	Total     decimal.NullDecimal `json:"total"`
	Status    string              `json:"status"`
	CreatedAt string              `json:"created_at"`
	DueDate   *string             `json:"due_date"`
}

// supabaseExpense maps the expenses table columns the report reads.
type supabaseExpense struct {
	ID     string              `json:"id"`
	Amount decimal.NullDecimal `json:"amount"`
	Date   string              `json:"date"`
}

// LoadRecords fetches the user's invoices (by created_at) and expenses
// (by date) inside the window. Both tables are queried concurrently; a
// failure of either fails the whole snapshot.
func (c *Client) LoadRecords(ctx context.Context, userID string, window domain.Window) (*domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadRecords")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("window.start", window.Start.Format(dateLayout)),
		attribute.String("window.end", window.End.Format(dateLayout)),
	)

	snap := &domain.Snapshot{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		invoices, err := c.listInvoices(gCtx, userID, window)
		if err != nil {
			return err
		}
		snap.Invoices = invoices
		return nil
	})

	g.Go(func() error {
		expenses, err := c.listExpenses(gCtx, userID, window)
		if err != nil {
			return err
		}
		snap.Expenses = expenses
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("supabase: snapshot loaded",
		zap.String("user_id", userID),
		zap.Int("invoices", len(snap.Invoices)),
		zap.Int("expenses", len(snap.Expenses)),
	)
	return snap, nil
}

func (c *Client) listInvoices(ctx context.Context, userID string, window domain.Window) ([]domain.InvoiceRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInvoices")
	defer span.End()

	q := windowQuery(userID, "created_at", window)
	q.Set("select", "id,total,status,created_at,due_date")
	q.Set("order", "created_at.asc,id.asc")

	invoices := make([]domain.InvoiceRecord, 0)
	err := c.fetchPages(ctx, "supabase/invoices", "invoices", q, func(body []byte) (int, error) {
		var rows []supabaseInvoice
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("decode invoices: %w", err)
		}
		for _, r := range rows {
			rec, err := r.toRecord()
			if err != nil {
				return 0, err
			}
			invoices = append(invoices, rec)
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (c *Client) listExpenses(ctx context.Context, userID string, window domain.Window) ([]domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListExpenses")
	defer span.End()

	q := windowQuery(userID, "date", window)
	q.Set("select", "id,amount,date")
	q.Set("order", "date.asc,id.asc")

	expenses := make([]domain.ExpenseRecord, 0)
	err := c.fetchPages(ctx, "supabase/expenses", "expenses", q, func(body []byte) (int, error) {
		var rows []supabaseExpense
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("decode expenses: %w", err)
		}
		for _, r := range rows {
			rec, err := r.toRecord()
			if err != nil {
				return 0, err
			}
			expenses = append(expenses, rec)
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// fetchPages walks a PostgREST collection with limit/offset until a short
// page is returned. Each page is retried independently; decode and
// validation failures are permanent.
func (c *Client) fetchPages(ctx context.Context, service, table string, q url.Values, decode func([]byte) (int, error)) error {
	for offset := 0; ; offset += pageSize {
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		path := table + "?" + q.Encode()

		var n int
		err := c.execute(ctx, service, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil {
				n = 0
				return nil
			}
			n, err = decode(body)
			return resilience.Permanent(err)
		})
		if err != nil {
			return err
		}
		if n < pageSize {
			return nil
		}
	}
}

// windowQuery scopes a table to the user and [window start, day after end).
func windowQuery(userID, column string, window domain.Window) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Add(column, "gte."+window.From().Format(dateLayout))
	q.Add(column, "lt."+window.Until().Format(dateLayout))
	return q
}

func (r supabaseInvoice) toRecord() (domain.InvoiceRecord, error) {
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return domain.InvoiceRecord{}, &domain.ErrValidation{Field: "invoices.created_at", Message: err.Error()}
	}

	var due time.Time
	if r.DueDate != nil && *r.DueDate != "" {
		due, err = parseTimestamp(*r.DueDate)
		if err != nil {
			return domain.InvoiceRecord{}, &domain.ErrValidation{Field: "invoices.due_date", Message: err.Error()}
		}
	}

	rec := domain.InvoiceRecord{
		ID:        r.ID,
		Total:     r.Total.Decimal,
		Status:    domain.InvoiceStatus(r.Status),
		CreatedAt: created,
		DueDate:   due,
	}
	if !r.Total.Valid {
		rec.Total = decimal.Zero
	}
	return rec, rec.Validate()
}

func (r supabaseExpense) toRecord() (domain.ExpenseRecord, error) {
	date, err := parseTimestamp(r.Date)
	if err != nil {
		return domain.ExpenseRecord{}, &domain.ErrValidation{Field: "expenses.date", Message: err.Error()}
	}

	rec := domain.ExpenseRecord{ID: r.ID, Amount: r.Amount.Decimal, Date: date}
	if !r.Amount.Valid {
		rec.Amount = decimal.Zero
	}
	return rec, rec.Validate()
}

// timestampLayouts are the shapes PostgREST emits for timestamptz,
// timestamp and date columns. Values without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	dateLayout,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
