package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ============================================================
// Analytics / Aggregator
// ============================================================

// FinancialSummary holds the headline totals of a date range.
type FinancialSummary struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	TotalIncome      float64 `json:"totalIncome"`
	TotalExpenses    float64 `json:"totalExpenses"`
	Balance          float64 `json:"balance"`
	SavingsRate      float64 `json:"savingsRate"`
	TransactionCount int     `json:"transactionCount"`
}

// NewFinancialSummary derives balance and savings rate from the totals.
func NewFinancialSummary(from, to time.Time, t KindTotals) FinancialSummary {
	income := Round2(t.Income)
	expenses := Round2(t.Expenses)
	balance := SumAmounts(income, -expenses)
	return FinancialSummary{
		From:             from.Format(DateLayout),
		To:               to.Format(DateLayout),
		TotalIncome:      income,
		TotalExpenses:    expenses,
		Balance:          balance,
		SavingsRate:      Percent(balance, income),
		TransactionCount: t.Count(),
	}
}

// SpendingBreakdown is the per-category expense view.
type SpendingBreakdown struct {
	Total         float64         `json:"total"`
	Categories    []CategoryTotal `json:"categories"`
	TopCategories []CategoryTotal `json:"topCategories"`
}

// NewSpendingBreakdown sorts categories by total descending, fills in
// percentages and surfaces the top five.
func NewSpendingBreakdown(rows []CategoryTotal) SpendingBreakdown {
	cats := make([]CategoryTotal, len(rows))
	copy(cats, rows)
	amounts := make([]float64, 0, len(cats))
	for _, c := range cats {
		amounts = append(amounts, c.Total)
	}
	total := SumAmounts(amounts...)
	for i := range cats {
		cats[i].Total = Round2(cats[i].Total)
		cats[i].Percentage = Percent(cats[i].Total, total)
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Total > cats[j].Total })

	top := cats
	if len(top) > 5 {
		top = top[:5]
	}
	return SpendingBreakdown{Total: total, Categories: cats, TopCategories: top}
}

// MonthlyTrend is one row of the income/expense series.
type MonthlyTrend struct {
	Month    string  `json:"month"` // "2006-01"
	Year     int     `json:"year"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}

// TrendWindowStart returns the first day of the month that opens a window of
// the given number of months ending in the month of now.
func TrendWindowStart(now time.Time, months int) time.Time {
	if months < 1 {
		months = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0)
}

// PivotMonthlyTrends is the second grouping stage: it folds (year, month,
// kind) rows into one row per month with named income/expenses columns,
// ascending, with zero rows for months without data.
func PivotMonthlyTrends(rows []MonthKindTotal, now time.Time, months int) []MonthlyTrend {
	start := TrendWindowStart(now, months)
	if months < 1 {
		months = 1
	}
	out := make([]MonthlyTrend, 0, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		index[key] = len(out)
		out = append(out, MonthlyTrend{Month: key, Year: m.Year()})
	}

	for _, r := range rows {
		key := fmt.Sprintf("%04d-%02d", r.Year, int(r.Month))
		i, ok := index[key]
		if !ok {
			continue
		}
		switch r.Kind {
		case KindIncome:
			out[i].Income = SumAmounts(out[i].Income, r.Total)
		case KindExpense:
			out[i].Expenses = SumAmounts(out[i].Expenses, r.Total)
		}
	}
	for i := range out {
		out[i].Balance = SumAmounts(out[i].Income, -out[i].Expenses)
	}
	return out
}

// SpendingPatterns describes the last 30 days of expenses.
type SpendingPatterns struct {
	WindowDays   int        `json:"windowDays"`
	TotalSpent   float64    `json:"totalSpent"`
	DailyAverage float64    `json:"dailyAverage"`
	ByWeekday    [7]float64 `json:"byWeekday"` // 0=Sunday..6=Saturday
	PeakWeekday  int        `json:"peakWeekday"`
	PeakDayName  string     `json:"peakDayName"`
	Transactions int        `json:"transactionCount"`
}

// SpendingPatternWindow is the look-back of spending patterns in calendar
// days, today included.
const SpendingPatternWindow = 30

// NewSpendingPatterns folds expenses into weekday totals. The daily average
// divides by the whole window, not by the days that had spending. The peak
// day is the first weekday (Sunday first) holding the highest total.
func NewSpendingPatterns(txs []Transaction) SpendingPatterns {
	p := SpendingPatterns{WindowDays: SpendingPatternWindow, PeakDayName: time.Sunday.String()}
	amounts := make([]float64, 0, len(txs))
	for _, tx := range txs {
		if tx.Kind != KindExpense {
			continue
		}
		wd := int(tx.Date.UTC().Weekday())
		p.ByWeekday[wd] = SumAmounts(p.ByWeekday[wd], tx.Amount)
		amounts = append(amounts, tx.Amount)
	}
	p.Transactions = len(amounts)
	p.TotalSpent = SumAmounts(amounts...)
	p.DailyAverage = Round2(p.TotalSpent / SpendingPatternWindow)

	best := math.Inf(-1)
	for wd, total := range p.ByWeekday {
		if total > best {
			best = total
			p.PeakWeekday = wd
		}
	}
	p.PeakDayName = time.Weekday(p.PeakWeekday).String()
	return p
}

// HealthComponent is one weighted part of the health score.
type HealthComponent struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

// HealthScore is the composite 0..100 financial health score.
type HealthScore struct {
	Score      int               `json:"score"`
	Grade      string            `json:"grade"`
	Components []HealthComponent `json:"components"`
}

// HealthInputs are the raw measures the score is built from.
type HealthInputs struct {
	SavingsRate      float64
	UtilizationRate  float64
	AverageProgress  float64
	IncomeCategories int
}

// Health score weights.
const (
	WeightSavings         = 30
	WeightBudget          = 25
	WeightGoals           = 20
	WeightBills           = 15
	WeightDiversification = 10
)

// ComputeHealthScore applies the tiered weights. Bill payment is always
// awarded in full: overdue bills do not reduce the score.
func ComputeHealthScore(in HealthInputs) HealthScore {
	savings := 0.0
	switch {
	case in.SavingsRate >= 20:
		savings = WeightSavings
	case in.SavingsRate >= 10:
		savings = 20
	case in.SavingsRate >= 5:
		savings = 10
	case in.SavingsRate >= 0:
		savings = 5
	}

	budget := 0.0
	switch {
	case in.UtilizationRate <= 80:
		budget = WeightBudget
	case in.UtilizationRate <= 95:
		budget = 15
	case in.UtilizationRate <= 100:
		budget = 10
	}

	goals := 5.0
	switch {
	case in.AverageProgress >= 75:
		goals = WeightGoals
	case in.AverageProgress >= 50:
		goals = 15
	case in.AverageProgress >= 25:
		goals = 10
	}

	bills := float64(WeightBills)

	diversification := 0.0
	switch {
	case in.IncomeCategories >= 3:
		diversification = WeightDiversification
	case in.IncomeCategories == 2:
		diversification = 7
	case in.IncomeCategories == 1:
		diversification = 5
	}

	total := savings + budget + goals + bills + diversification
	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return HealthScore{
		Score: score,
		Grade: healthGrade(score),
		Components: []HealthComponent{
			{Name: "savings_rate", Score: savings, Weight: WeightSavings, Value: in.SavingsRate},
			{Name: "budget_utilization", Score: budget, Weight: WeightBudget, Value: in.UtilizationRate},
			{Name: "goal_progress", Score: goals, Weight: WeightGoals, Value: in.AverageProgress},
			{Name: "bill_payment", Score: bills, Weight: WeightBills, Value: 100},
			{Name: "income_diversification", Score: diversification, Weight: WeightDiversification, Value: float64(in.IncomeCategories)},
		},
	}
}

func healthGrade(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

// Overview is the composed dashboard payload.
type Overview struct {
	Summary     FinancialSummary     `json:"summary"`
	Spending    SpendingBreakdown    `json:"spending"`
	Trends      []MonthlyTrend       `json:"trends"`
	Budgets     []BudgetWithSpending `json:"budgets"`
	Goals       GoalProgressSummary  `json:"goals"`
	Bills       []BillView           `json:"bills"`
	HealthScore *HealthScore         `json:"healthScore,omitempty"`
}
