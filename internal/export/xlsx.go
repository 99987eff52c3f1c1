// Package export renders a generated report as a downloadable workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SummarySheet  = "Summary"
	CashFlowSheet = "Cash Flow"
	AgingSheet    = "Aging"
)

// ContentType is the MIME type of the workbook WriteXLSX produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// numFmtMoney is excelize's built-in "#,##0.00" format.
const numFmtMoney = 4

// Filename is the suggested attachment name for r.
func Filename(r *domain.Report) string {
	return fmt.Sprintf("report_%s_%s.xlsx", r.Period.Start, r.Period.End)
}

// WriteXLSX writes r as an XLSX workbook with Summary, Cash Flow and Aging
// sheets. Amounts are written as numbers with two decimals.
func WriteXLSX(w io.Writer, r *domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	for _, name := range []string{CashFlowSheet, AgingSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: create sheet %q: %w", name, err)
		}
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	steps := []func(*excelize.File, *domain.Report, styles) error{
		writeSummary,
		writeCashFlow,
		writeAging,
	}
	for _, step := range steps {
		if err := step(f, r, st); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

type styles struct {
	header int
	money  int
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E7ECF3"}},
	})
	if err != nil {
		return styles{}, fmt.Errorf("export: header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return styles{}, fmt.Errorf("export: money style: %w", err)
	}
	return styles{header: header, money: money}, nil
}

func writeSummary(f *excelize.File, r *domain.Report, st styles) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Report ID", r.ID},
		{"Period start", r.Period.Start},
		{"Period end", r.Period.End},
		{"Generated at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total invoiced", money(r.TotalInvoiced)},
		{"Total paid", money(r.TotalPaid)},
		{"Total outstanding", money(r.TotalOutstanding)},
		{"Total expenses", money(r.TotalExpenses)},
		{"Profitability", money(r.Profitability)},
		{"Invoice count", r.InvoiceCount},
		{"Paid invoices", r.PaidInvoices},
		{"Overdue invoices", r.OverdueInvoices},
		{"Average invoice value", money(r.AverageInvoiceValue)},
		{"Payment success rate (%)", r.PaymentSuccessRate},
	}
	if err := setRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", st.header); err != nil {
		return err
	}
	// Rows 6..10 and 14 hold currency amounts.
	if err := f.SetCellStyle(SummarySheet, "B6", "B10", st.money); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "B14", "B14", st.money); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 28)
}

func writeCashFlow(f *excelize.File, r *domain.Report, st styles) error {
	rows := make([][]any, 0, len(r.CashFlow)+1)
	rows = append(rows, []any{"Month", "Period", "Income", "Expenses", "Net"})
	for _, b := range r.CashFlow {
		rows = append(rows, []any{b.Month, b.Period, money(b.Income), money(b.Expenses), money(b.Net)})
	}
	if err := setRows(f, CashFlowSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(CashFlowSheet, "A1", "E1", st.header); err != nil {
		return err
	}
	if len(r.CashFlow) > 0 {
		last := fmt.Sprintf("E%d", len(r.CashFlow)+1)
		if err := f.SetCellStyle(CashFlowSheet, "C2", last, st.money); err != nil {
			return err
		}
	}
	return f.SetColWidth(CashFlowSheet, "A", "E", 14)
}

func writeAging(f *excelize.File, r *domain.Report, st styles) error {
	a := r.InvoiceAging
	rows := [][]any{
		{"Bucket", "Amount"},
		{"Current", money(a.Current)},
		{"30 days", money(a.Thirty)},
		{"60 days", money(a.Sixty)},
		{"90+ days", money(a.NinetyPlus)},
		{"Total", money(a.Total())},
	}
	if err := setRows(f, AgingSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(AgingSheet, "A1", "B1", st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(AgingSheet, "B2", "B6", st.money); err != nil {
		return err
	}
	return f.SetColWidth(AgingSheet, "A", "B", 16)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
