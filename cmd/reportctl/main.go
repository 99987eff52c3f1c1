// Command reportctl generates financial reports from the command line,
// reading records through the same backend as the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/boddenberg/invoicer-reports-go/internal/app"
	"github.com/boddenberg/invoicer-reports-go/internal/config"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	decimal.MarshalJSONWithoutQuotes = true

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	root := newRootCmd(cfg, logger, func(ctx context.Context) (*app.Backend, error) {
		return app.NewBackend(ctx, cfg, logger)
	})
	if err := root.Execute(); err != nil {
		logger.Error("command execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
