package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/export"

	"github.com/xuri/excelize/v2"
)

func TestXLSXExporter_WritesBothSheets(t *testing.T) {
	d := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{Kind: domain.KindIncome, Amount: 3000, Category: "salary", Date: d, Tags: []string{}},
		{Kind: domain.KindExpense, Amount: 120.5, Category: "food", Date: d, Description: "Market", Tags: []string{"weekly", "home"}},
		{Kind: domain.KindExpense, Amount: 80, Category: "transportation", Date: d, Tags: []string{}},
	}
	breakdown := domain.NewSpendingBreakdown([]domain.CategoryTotal{
		{Category: "food", Kind: domain.KindExpense, Total: 120.5, Count: 1},
		{Category: "transportation", Kind: domain.KindExpense, Total: 80, Count: 1},
	})

	exp := export.NewXLSXExporter()
	if exp.FileExtension() != "xlsx" {
		t.Errorf("FileExtension = %q", exp.FileExtension())
	}

	var buf bytes.Buffer
	if err := exp.Export(&buf, txs, breakdown); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.SheetTransactions)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("transaction rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "Date" || rows[2][2] != "food" || rows[2][3] != "Market" || rows[2][5] != "weekly, home" {
		t.Errorf("unexpected rows: %v", rows)
	}

	balance, err := f.GetCellValue(export.SheetSummary, "A3")
	if err != nil || balance != "Balance" {
		t.Errorf("summary label = %q, %v", balance, err)
	}
	top, _ := f.GetCellValue(export.SheetSummary, "A7")
	if top != "food" {
		t.Errorf("first breakdown category = %q, want food", top)
	}
}
