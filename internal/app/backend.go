// Package app wires configuration into the data backend shared by the
// HTTP server and the reportctl CLI.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/invoicer-reports-go/internal/config"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/postgres"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/supabase"
	"github.com/boddenberg/invoicer-reports-go/internal/port"

	"go.uber.org/zap"
)

// Backend is the configured record source plus the optional Supabase Auth
// lookup. Resolver is nil for the Postgres backend.
type Backend struct {
	Loader   port.RecordLoader
	Health   port.HealthChecker
	Resolver port.UserResolver

	close func()
}

// Close releases backend resources (the Postgres pool).
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// ResilienceConfig extracts the retry/bulkhead settings from cfg.
func ResilienceConfig(cfg *config.Config) resilience.Config {
	return resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
}

// NewBackend builds the record loader selected by DATA_BACKEND.
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	resilienceCfg := ResilienceConfig(cfg)

	switch cfg.DataBackend {
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("supabase backend requires SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_SERVICE_ROLE_KEY")
		}
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		return &Backend{Loader: client, Health: client, Resolver: client}, nil

	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using Postgres as data backend")
		store := postgres.NewStore(pool, resilience.NewCircuitBreaker("postgres"), resilienceCfg, logger)

		b := &Backend{Loader: store, Health: store, close: pool.Close}
		// Token lookups still need Supabase Auth unless tokens are verified locally.
		if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
			b.Resolver = supabase.NewClient(
				&http.Client{Timeout: cfg.HTTPTimeout},
				cfg.SupabaseURL,
				cfg.SupabaseAnonKey,
				cfg.SupabaseServiceKey,
				resilience.NewCircuitBreaker("supabase-auth"),
				resilienceCfg,
				logger,
			)
		}
		return b, nil
	}

	return nil, fmt.Errorf("unknown DATA_BACKEND %q (want %q or %q)", cfg.DataBackend, config.BackendSupabase, config.BackendPostgres)
}
