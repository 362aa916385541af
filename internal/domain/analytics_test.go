package domain_test

import (
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

func TestPivotMonthlyTrends(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rows := []domain.MonthKindTotal{
		{Year: 2023, Month: time.December, Kind: domain.KindIncome, Total: 999},
		{Year: 2024, Month: time.February, Kind: domain.KindIncome, Total: 1000},
		{Year: 2024, Month: time.February, Kind: domain.KindExpense, Total: 400},
		{Year: 2024, Month: time.March, Kind: domain.KindExpense, Total: 50.25},
	}

	got := domain.PivotMonthlyTrends(rows, now, 3)

	want := []domain.MonthlyTrend{
		{Month: "2024-01", Year: 2024},
		{Month: "2024-02", Year: 2024, Income: 1000, Expenses: 400, Balance: 600},
		{Month: "2024-03", Year: 2024, Expenses: 50.25, Balance: -50.25},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPivotMonthlyTrends_CrossesYear(t *testing.T) {
	got := domain.PivotMonthlyTrends(nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 4)
	var months []string
	for _, r := range got {
		months = append(months, r.Month)
	}
	if len(months) != 4 || months[0] != "2023-11" || months[3] != "2024-02" {
		t.Errorf("months = %v", months)
	}
}

func TestNewSpendingPatterns_TieGoesToEarliestWeekday(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{Kind: domain.KindExpense, Amount: 50, Date: monday.AddDate(0, 0, 2)}, // Wednesday
		{Kind: domain.KindExpense, Amount: 30, Date: monday},
		{Kind: domain.KindExpense, Amount: 20, Date: monday.AddDate(0, 0, 7)},
		{Kind: domain.KindIncome, Amount: 5000, Date: monday.AddDate(0, 0, 1)},
	}

	p := domain.NewSpendingPatterns(txs)

	if p.PeakWeekday != int(time.Monday) || p.PeakDayName != "Monday" {
		t.Errorf("peak = %d %s, want Monday", p.PeakWeekday, p.PeakDayName)
	}
	if p.TotalSpent != 100 || p.DailyAverage != 3.33 || p.Transactions != 3 {
		t.Errorf("patterns = %+v", p)
	}
	if p.ByWeekday[time.Tuesday] != 0 {
		t.Errorf("income counted as spending: %v", p.ByWeekday)
	}
}

func TestNewSpendingPatterns_Empty(t *testing.T) {
	p := domain.NewSpendingPatterns(nil)
	if p.PeakWeekday != 0 || p.DailyAverage != 0 || p.WindowDays != domain.SpendingPatternWindow {
		t.Errorf("empty patterns = %+v", p)
	}
}

func TestComputeHealthScore(t *testing.T) {
	tests := []struct {
		name  string
		in    domain.HealthInputs
		score int
		grade string
	}{
		{"perfect", domain.HealthInputs{SavingsRate: 25, UtilizationRate: 50, AverageProgress: 80, IncomeCategories: 3}, 100, "excellent"},
		{"middling", domain.HealthInputs{SavingsRate: 10, UtilizationRate: 90, AverageProgress: 50, IncomeCategories: 2}, 72, "good"},
		{"no data", domain.HealthInputs{}, 50, "fair"},
		{"struggling", domain.HealthInputs{SavingsRate: -10, UtilizationRate: 120, AverageProgress: 10}, 20, "poor"},
		{"thresholds", domain.HealthInputs{SavingsRate: 5, UtilizationRate: 100, AverageProgress: 25, IncomeCategories: 1}, 50, "fair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ComputeHealthScore(tt.in)
			if got.Score != tt.score || got.Grade != tt.grade {
				t.Errorf("score = %d %s, want %d %s", got.Score, got.Grade, tt.score, tt.grade)
			}
			if len(got.Components) != 5 {
				t.Errorf("components = %d", len(got.Components))
			}
			sum := 0.0
			for _, c := range got.Components {
				if c.Score > c.Weight {
					t.Errorf("%s scored %v above its weight %v", c.Name, c.Score, c.Weight)
				}
				sum += c.Score
			}
			if int(sum) != got.Score {
				t.Errorf("components sum to %v, score %d", sum, got.Score)
			}
		})
	}
}

func TestNewFinancialSummary(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := domain.NewFinancialSummary(from, from.AddDate(0, 1, -1), domain.KindTotals{Income: 3000, Expenses: 2400, IncomeCount: 1, ExpenseCount: 4})
	if s.Balance != 600 || s.SavingsRate != 20 || s.TransactionCount != 5 || s.From != "2024-03-01" || s.To != "2024-03-31" {
		t.Errorf("summary = %+v", s)
	}

	none := domain.NewFinancialSummary(from, from, domain.KindTotals{Expenses: 10})
	if none.SavingsRate != 0 || none.Balance != -10 {
		t.Errorf("no income summary = %+v", none)
	}
}

func TestNewSpendingBreakdown(t *testing.T) {
	rows := []domain.CategoryTotal{
		{Category: "food", Total: 100},
		{Category: "housing", Total: 600},
		{Category: "transportation", Total: 50},
		{Category: "entertainment", Total: 100},
		{Category: "utilities", Total: 75},
		{Category: "healthcare", Total: 75},
	}
	b := domain.NewSpendingBreakdown(rows)
	if b.Total != 1000 || len(b.Categories) != 6 || len(b.TopCategories) != 5 {
		t.Fatalf("breakdown = %+v", b)
	}
	if b.Categories[0].Category != "housing" || b.Categories[0].Percentage != 60 {
		t.Errorf("first = %+v", b.Categories[0])
	}
	if b.Categories[1].Category != "food" || b.Categories[2].Category != "entertainment" {
		t.Errorf("equal totals must keep input order: %+v", b.Categories[:3])
	}
	if b.Categories[5].Category != "transportation" {
		t.Errorf("last = %+v", b.Categories[5])
	}
}
