package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/boddenberg/invoicer-reports-go/internal/config"
	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/export"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/observability"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
	"github.com/boddenberg/invoicer-reports-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"
)

func newGenerateCmd(cfg *config.Config, logger *zap.Logger, openBackend backendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report for one user",
		Example: `  # Year-to-date report as JSON on stdout
  reportctl generate --user 8d0f6c1e-0000-4000-8000-000000000001

  # First quarter as a workbook
  reportctl generate --user 8d0f... --start 2024-01-01 --end 2024-03-31 --format xlsx --out q1.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			if format != formatJSON && format != formatXLSX {
				return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatJSON, formatXLSX)
			}
			if format == formatXLSX && out == "-" {
				return fmt.Errorf("xlsx output needs --out <file>")
			}
			start, err := service.ParseDate("start", startStr)
			if err != nil {
				return err
			}
			end, err := service.ParseDate("end", endStr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			backend, err := openBackend(ctx)
			if err != nil {
				return fmt.Errorf("open backend: %w", err)
			}
			defer backend.Close()

			svc := service.NewReportService(
				backend.Loader,
				resilience.NewBulkhead(1),
				observability.NewMetrics(),
				logger,
				cfg.ReportTimeout,
			)
			rep, err := svc.GenerateReport(ctx, userID, start, end)
			if err != nil {
				return err
			}

			logger.Info("report generated",
				zap.String("report_id", rep.ID),
				zap.String("format", format),
				zap.String("out", out),
			)

			if out == "-" {
				return writeReport(cmd.OutOrStdout(), rep, format)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := writeReport(f, rep, format); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().String("user", "", "User ID whose records are reported (required)")
	cmd.Flags().String("start", "", "First day of the window, YYYY-MM-DD (default: January 1st of this year)")
	cmd.Flags().String("end", "", "Last day of the window, YYYY-MM-DD (default: today)")
	cmd.Flags().String("format", formatJSON, "Output format: json or xlsx")
	cmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func writeReport(w io.Writer, rep *domain.Report, format string) error {
	if format == formatXLSX {
		return export.WriteXLSX(w, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
