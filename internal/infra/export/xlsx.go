// Package export renders ledger rows into downloadable workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	SheetTransactions = "Transactions"
	SheetSummary      = "Summary"
)

var (
	colorHeader  = "#2D3436"
	colorIncome  = "#D4EFDF"
	colorExpense = "#FADBD8"
)

// XLSXExporter writes a two-sheet workbook: every transaction, then the
// expense breakdown by category.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter { return &XLSXExporter{} }

func (XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXExporter) FileExtension() string { return "xlsx" }

func (XLSXExporter) Export(w io.Writer, txs []domain.Transaction, breakdown domain.SpendingBreakdown) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writeTransactions(f, styles, txs); err != nil {
		return err
	}
	if err := writeSummary(f, styles, txs, breakdown); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header, income, expense, money, bold int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var (
		s   sheetStyles
		err error
	)
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	if s.income, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{colorIncome}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("income style: %w", err)
	}
	if s.expense, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{colorExpense}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("expense style: %w", err)
	}
	if s.money, err = f.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4}); err != nil {
		return s, fmt.Errorf("bold style: %w", err)
	}
	return s, nil
}

func writeTransactions(f *excelize.File, st sheetStyles, txs []domain.Transaction) error {
	sheet := SheetTransactions
	headers := []any{"Date", "Kind", "Category", "Description", "Amount", "Tags"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", "F1", st.header)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for i, tx := range txs {
		row := i + 2
		tags := ""
		for j, tag := range tx.Tags {
			if j > 0 {
				tags += ", "
			}
			tags += tag
		}
		values := []any{tx.Date.Format(domain.DateLayout), string(tx.Kind), tx.Category, tx.Description, tx.Amount, tags}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		rowStyle := st.expense
		if tx.Kind == domain.KindIncome {
			rowStyle = st.income
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), rowStyle)
		_ = f.SetCellStyle(sheet, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), st.money)
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "C", 16)
	_ = f.SetColWidth(sheet, "D", "D", 40)
	_ = f.SetColWidth(sheet, "E", "E", 14)
	_ = f.SetColWidth(sheet, "F", "F", 24)
	return nil
}

func writeSummary(f *excelize.File, st sheetStyles, txs []domain.Transaction, breakdown domain.SpendingBreakdown) error {
	sheet := SheetSummary

	var income, expenses []float64
	for _, tx := range txs {
		if tx.Kind == domain.KindIncome {
			income = append(income, tx.Amount)
		} else {
			expenses = append(expenses, tx.Amount)
		}
	}
	totalIncome := domain.SumAmounts(income...)
	totalExpenses := domain.SumAmounts(expenses...)

	rows := [][]any{
		{"Total income", totalIncome},
		{"Total expenses", totalExpenses},
		{"Balance", domain.SumAmounts(totalIncome, -totalExpenses)},
		{"Transactions", len(txs)},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	_ = f.SetCellStyle(sheet, "B1", "B3", st.bold)

	start := len(rows) + 2
	headers := []any{"Category", "Total", "Count", "Share %"}
	headerCell, _ := excelize.CoordinatesToCellName(1, start)
	if err := f.SetSheetRow(sheet, headerCell, &headers); err != nil {
		return fmt.Errorf("write breakdown header: %w", err)
	}
	_ = f.SetCellStyle(sheet, headerCell, fmt.Sprintf("D%d", start), st.header)

	for i, c := range breakdown.Categories {
		row := start + 1 + i
		values := []any{c.Category, c.Total, c.Count, c.Percentage}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write breakdown row: %w", err)
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), st.money)
	}

	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "D", 14)
	return nil
}
