package main

import (
	"context"

	"github.com/boddenberg/invoicer-reports-go/internal/app"
	"github.com/boddenberg/invoicer-reports-go/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

// backendFactory opens the configured data backend on demand so commands
// that never touch records (help, version) need no credentials.
type backendFactory func(ctx context.Context) (*app.Backend, error)

func newRootCmd(cfg *config.Config, logger *zap.Logger, openBackend backendFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Generate invoicing reports outside the HTTP API",
		Long: `reportctl computes the same financial report the dashboard shows
(metrics, 12-month cash flow and invoice aging) for one user, reading
invoices and expenses from the backend selected by DATA_BACKEND.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenerateCmd(cfg, logger, openBackend))
	return root
}
