package domain

import (
	"sort"
	"strings"
	"time"
)

// ============================================================
// Budget Tracker
// ============================================================

// Period is the length of a budget window.
type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// BudgetStatus is the derived classification of spent/amount.
type BudgetStatus string

const (
	BudgetGood     BudgetStatus = "good"
	BudgetWarning  BudgetStatus = "warning"
	BudgetDanger   BudgetStatus = "danger"
	BudgetExceeded BudgetStatus = "exceeded"
)

// Default alert thresholds, in percent.
const (
	DefaultWarningThreshold = 80
	DefaultDangerThreshold  = 95
)

// AlertThresholds are the warning/danger percentages of a budget.
type AlertThresholds struct {
	Warning float64 `json:"warning"`
	Danger  float64 `json:"danger"`
}

// DefaultThresholds returns the 80/95 pair.
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{Warning: DefaultWarningThreshold, Danger: DefaultDangerThreshold}
}

// Budget is a spending ceiling for one expense category over one period.
type Budget struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Category        string          `json:"category"`
	Amount          float64         `json:"amount"`
	Period          Period          `json:"period"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	AlertThresholds AlertThresholds `json:"alertThresholds"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// BudgetEndDate derives the inclusive last day of a budget window.
func BudgetEndDate(start time.Time, period Period) time.Time {
	start = DateOnly(start)
	switch period {
	case PeriodWeekly:
		return start.AddDate(0, 0, 6)
	case PeriodQuarterly:
		return start.AddDate(0, 3, -1)
	case PeriodYearly:
		return time.Date(start.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(start.Year(), start.Month(), daysIn(start.Year(), start.Month()), 0, 0, 0, 0, time.UTC)
	}
}

// ClassifyBudget maps spent against amount and thresholds. Checks run from the
// most severe bucket down so the result only moves forward as spent grows.
func ClassifyBudget(spent, amount float64, t AlertThresholds) BudgetStatus {
	switch {
	case reachesPercent(spent, amount, 100):
		return BudgetExceeded
	case reachesPercent(spent, amount, t.Danger):
		return BudgetDanger
	case reachesPercent(spent, amount, t.Warning):
		return BudgetWarning
	default:
		return BudgetGood
	}
}

// BudgetSpending is the derived spending view of a budget.
type BudgetSpending struct {
	Spent            float64      `json:"spent"`
	Remaining        float64      `json:"remaining"`
	Percentage       float64      `json:"percentage"`
	Status           BudgetStatus `json:"status"`
	TransactionCount int          `json:"transactionCount"`
}

// ComputeSpending derives the spending view from the summed expenses.
func ComputeSpending(b *Budget, spent float64, count int) BudgetSpending {
	spent = Round2(spent)
	return BudgetSpending{
		Spent:            spent,
		Remaining:        SumAmounts(b.Amount, -spent),
		Percentage:       Percent(spent, b.Amount),
		Status:           ClassifyBudget(spent, b.Amount, b.AlertThresholds),
		TransactionCount: count,
	}
}

// BudgetWithSpending enriches a budget with its spending view.
type BudgetWithSpending struct {
	Budget
	BudgetSpending
}

// BudgetInput is the create/replace payload for a budget.
type BudgetInput struct {
	Category        string           `json:"category"`
	Amount          float64          `json:"amount"`
	Period          Period           `json:"period"`
	StartDate       Date             `json:"startDate"`
	AlertThresholds *AlertThresholds `json:"alertThresholds"`
	IsActive        *bool            `json:"isActive"`
}

// Validate checks category, amount, period and thresholds.
func (in *BudgetInput) Validate() error {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		return &ErrValidation{Field: "category", Message: "is required"}
	}
	if !IsCategoryOf(KindExpense, in.Category) {
		return &ErrValidation{Field: "category", Message: "'" + in.Category + "' is not an expense category"}
	}
	if err := CheckPositive("amount", in.Amount); err != nil {
		return err
	}
	if in.Period == "" {
		in.Period = PeriodMonthly
	}
	if !in.Period.Valid() {
		return &ErrValidation{Field: "period", Message: "must be one of weekly, monthly, quarterly, yearly"}
	}
	if t := in.AlertThresholds; t != nil {
		if t.Warning <= 0 || t.Warning > 100 {
			return &ErrValidation{Field: "alertThresholds.warning", Message: "must be between 0 and 100"}
		}
		if t.Danger <= 0 || t.Danger > 100 {
			return &ErrValidation{Field: "alertThresholds.danger", Message: "must be between 0 and 100"}
		}
		if t.Warning > t.Danger {
			return &ErrValidation{Field: "alertThresholds", Message: "warning must not exceed danger"}
		}
	}
	return nil
}

// BudgetUtilization aggregates all active budgets.
type BudgetUtilization struct {
	TotalAllocated  float64               `json:"totalAllocated"`
	TotalSpent      float64               `json:"totalSpent"`
	TotalRemaining  float64               `json:"totalRemaining"`
	UtilizationRate float64               `json:"utilizationRate"`
	BudgetCount     int                   `json:"budgetCount"`
	StatusCounts    map[BudgetStatus]int  `json:"statusCounts"`
	TopCategories   []BudgetCategorySpend `json:"topCategories"`
}

// BudgetCategorySpend is one row of the top-spend list.
type BudgetCategorySpend struct {
	Category   string       `json:"category"`
	Spent      float64      `json:"spent"`
	Amount     float64      `json:"amount"`
	Percentage float64      `json:"percentage"`
	Status     BudgetStatus `json:"status"`
}

// EmptyStatusCounts returns a counter with every bucket present.
func EmptyStatusCounts() map[BudgetStatus]int {
	return map[BudgetStatus]int{BudgetGood: 0, BudgetWarning: 0, BudgetDanger: 0, BudgetExceeded: 0}
}

// SummarizeBudgets folds budgets with their spending into the utilization
// rollup. Top categories are the five largest spends.
func SummarizeBudgets(rows []BudgetWithSpending) BudgetUtilization {
	u := BudgetUtilization{
		BudgetCount:   len(rows),
		StatusCounts:  EmptyStatusCounts(),
		TopCategories: []BudgetCategorySpend{},
	}
	allocated := make([]float64, 0, len(rows))
	spent := make([]float64, 0, len(rows))
	for _, r := range rows {
		allocated = append(allocated, r.Amount)
		spent = append(spent, r.Spent)
		u.StatusCounts[r.Status]++
		u.TopCategories = append(u.TopCategories, BudgetCategorySpend{
			Category:   r.Category,
			Spent:      r.Spent,
			Amount:     r.Amount,
			Percentage: r.Percentage,
			Status:     r.Status,
		})
	}
	u.TotalAllocated = SumAmounts(allocated...)
	u.TotalSpent = SumAmounts(spent...)
	u.TotalRemaining = SumAmounts(u.TotalAllocated, -u.TotalSpent)
	u.UtilizationRate = Percent(u.TotalSpent, u.TotalAllocated)

	sort.SliceStable(u.TopCategories, func(i, j int) bool {
		return u.TopCategories[i].Spent > u.TopCategories[j].Spent
	})
	if len(u.TopCategories) > 5 {
		u.TopCategories = u.TopCategories[:5]
	}
	return u
}
