package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/export"
	"github.com/boddenberg/invoicer-reports-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reports
// GET /v1/reports?start=YYYY-MM-DD&end=YYYY-MM-DD
// GET /v1/reports/export?start=YYYY-MM-DD&end=YYYY-MM-DD
// ============================================================

func getReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.GetReport")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		start, end, err := parseRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		rep, err := svc.GenerateReport(ctx, userID, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, rep)
	}
}

func exportReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.ExportReport")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		start, end, err := parseRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		rep, err := svc.GenerateReport(ctx, userID, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Render fully before writing headers so a failure can still be a JSON error.
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, rep); err != nil {
			logger.Error("report export failed", zap.String("report_id", rep.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to export report")
			return
		}

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(rep)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			logger.Warn("report export: client went away", zap.String("report_id", rep.ID), zap.Error(err))
		}
	}
}

// parseRange reads the optional start/end query parameters.
func parseRange(r *http.Request) (start, end *time.Time, err error) {
	q := r.URL.Query()
	if start, err = service.ParseDate("start", q.Get("start")); err != nil {
		return nil, nil, err
	}
	if end, err = service.ParseDate("end", q.Get("end")); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
