// Package postgres loads report snapshots straight from the invoicing
// database with a pgx connection pool. It is the alternative to the
// Supabase PostgREST loader for deployments that can reach Postgres
// directly (batch jobs, the reportctl CLI).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("postgres")

const (
	invoicesQuery = `
		SELECT id::text, COALESCE(total, 0)::text, status, created_at, due_date::timestamp
		FROM invoices
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id`

	expensesQuery = `
		SELECT id::text, COALESCE(amount, 0)::text, date::timestamp
		FROM expenses
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, id`
)

// Store implements port.RecordLoader and port.HealthChecker over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// Open connects a pool for dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// NewStore creates a Store on an open pool. The caller owns the pool.
func NewStore(pool *pgxpool.Pool, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{pool: pool, cb: cb, cfg: cfg, logger: logger}
}

// LoadRecords reads the user's invoices (by created_at) and expenses (by
// date) inside the window. Both queries run concurrently on the pool.
func (s *Store) LoadRecords(ctx context.Context, userID string, window domain.Window) (*domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Postgres.LoadRecords")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	from, until := window.From(), window.Until()
	snap := &domain.Snapshot{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.execute(gCtx, "postgres/invoices", func() error {
			invoices, err := s.queryInvoices(gCtx, userID, from, until)
			if err != nil {
				return err
			}
			snap.Invoices = invoices
			return nil
		})
	})

	g.Go(func() error {
		return s.execute(gCtx, "postgres/expenses", func() error {
			expenses, err := s.queryExpenses(gCtx, userID, from, until)
			if err != nil {
				return err
			}
			snap.Expenses = expenses
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("postgres: snapshot loaded",
		zap.String("user_id", userID),
		zap.Int("invoices", len(snap.Invoices)),
		zap.Int("expenses", len(snap.Expenses)),
	)
	return snap, nil
}

func (s *Store) queryInvoices(ctx context.Context, userID string, from, until time.Time) ([]domain.InvoiceRecord, error) {
	rows, err := s.pool.Query(ctx, invoicesQuery, userID, from, until)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	invoices := make([]domain.InvoiceRecord, 0)
	for rows.Next() {
		var (
			id, total, status string
			created           time.Time
			due               *time.Time
		)
		if err := rows.Scan(&id, &total, &status, &created, &due); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("scan invoice: %w", err))
		}
		rec, err := invoiceRecord(id, total, status, created, due)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		invoices = append(invoices, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return invoices, nil
}

func (s *Store) queryExpenses(ctx context.Context, userID string, from, until time.Time) ([]domain.ExpenseRecord, error) {
	rows, err := s.pool.Query(ctx, expensesQuery, userID, from, until)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	expenses := make([]domain.ExpenseRecord, 0)
	for rows.Next() {
		var (
			id, amount string
			date       time.Time
		)
		if err := rows.Scan(&id, &amount, &date); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("scan expense: %w", err))
		}
		rec, err := expenseRecord(id, amount, date)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		expenses = append(expenses, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return expenses, nil
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Postgres.Ping")
	defer span.End()

	return s.pool.Ping(ctx)
}

// execute mirrors the Supabase client: breaker + retry, then domain errors.
func (s *Store) execute(ctx context.Context, service string, fn func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, fn)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: service}
	case ctx.Err() != nil:
		return &domain.ErrTimeout{Operation: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// classify marks server-side SQL errors (bad column, permission denied)
// as permanent. Connection-level failures stay retryable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return resilience.Permanent(err)
	}
	return err
}

func invoiceRecord(id, total, status string, created time.Time, due *time.Time) (domain.InvoiceRecord, error) {
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.InvoiceRecord{}, &domain.ErrValidation{Field: "invoices.total", Message: err.Error()}
	}
	rec := domain.InvoiceRecord{
		ID:        id,
		Total:     amount,
		Status:    domain.InvoiceStatus(status),
		CreatedAt: created,
	}
	if due != nil {
		rec.DueDate = *due
	}
	return rec, rec.Validate()
}

func expenseRecord(id, amount string, date time.Time) (domain.ExpenseRecord, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.ExpenseRecord{}, &domain.ErrValidation{Field: "expenses.amount", Message: err.Error()}
	}
	rec := domain.ExpenseRecord{ID: id, Amount: value, Date: date}
	return rec, rec.Validate()
}
