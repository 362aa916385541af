package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

func TestClassifyBudget(t *testing.T) {
	th := domain.DefaultThresholds()
	tests := []struct {
		spent float64
		want  domain.BudgetStatus
	}{
		{0, domain.BudgetGood},
		{79.99, domain.BudgetGood},
		{80, domain.BudgetWarning},
		{94.99, domain.BudgetWarning},
		{95, domain.BudgetDanger},
		{99.99, domain.BudgetDanger},
		{100, domain.BudgetExceeded},
		{150, domain.BudgetExceeded},
	}
	for _, tt := range tests {
		if got := domain.ClassifyBudget(tt.spent, 100, th); got != tt.want {
			t.Errorf("ClassifyBudget(%v, 100) = %q, want %q", tt.spent, got, tt.want)
		}
	}
}

func TestClassifyBudget_Monotone(t *testing.T) {
	rank := map[domain.BudgetStatus]int{
		domain.BudgetGood: 0, domain.BudgetWarning: 1, domain.BudgetDanger: 2, domain.BudgetExceeded: 3,
	}
	th := domain.DefaultThresholds()
	prev := 0
	for cents := 0; cents <= 30000; cents += 7 {
		spent := float64(cents) / 100
		r := rank[domain.ClassifyBudget(spent, 200, th)]
		if r < prev {
			t.Fatalf("status moved backwards at spent=%.2f", spent)
		}
		prev = r
	}
	if prev != rank[domain.BudgetExceeded] {
		t.Errorf("never reached exceeded")
	}
}

func TestComputeSpending(t *testing.T) {
	b := &domain.Budget{Amount: 200, AlertThresholds: domain.DefaultThresholds()}

	got := domain.ComputeSpending(b, 250, 3)
	if got.Spent != 250 || got.Remaining != -50 || got.Percentage != 125 || got.Status != domain.BudgetExceeded || got.TransactionCount != 3 {
		t.Errorf("ComputeSpending = %+v", got)
	}

	got = domain.ComputeSpending(b, 0.1+0.2, 1)
	if got.Spent != 0.3 || got.Remaining != 199.7 {
		t.Errorf("float sums not exact: %+v", got)
	}
}

func TestBudgetEndDate(t *testing.T) {
	tests := []struct {
		start  time.Time
		period domain.Period
		want   time.Time
	}{
		{day(2024, 3, 4), domain.PeriodWeekly, day(2024, 3, 10)},
		{day(2024, 2, 1), domain.PeriodMonthly, day(2024, 2, 29)},
		{day(2023, 2, 10), domain.PeriodMonthly, day(2023, 2, 28)},
		{day(2024, 1, 1), domain.PeriodQuarterly, day(2024, 3, 31)},
		{day(2024, 3, 1), domain.PeriodYearly, day(2024, 12, 31)},
	}
	for _, tt := range tests {
		if got := domain.BudgetEndDate(tt.start, tt.period); !got.Equal(tt.want) {
			t.Errorf("BudgetEndDate(%s, %s) = %s, want %s", tt.start.Format("2006-01-02"), tt.period, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
		}
	}
}

func TestBudgetInput_Validate(t *testing.T) {
	in := domain.BudgetInput{Category: "  Food ", Amount: 300}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if in.Category != "food" || in.Period != domain.PeriodMonthly {
		t.Errorf("normalised input = %+v", in)
	}

	tests := []struct {
		name  string
		in    domain.BudgetInput
		field string
	}{
		{"income category", domain.BudgetInput{Category: "salary", Amount: 10}, "category"},
		{"bad period", domain.BudgetInput{Category: "food", Amount: 10, Period: "daily"}, "period"},
		{"inverted thresholds", domain.BudgetInput{Category: "food", Amount: 10, AlertThresholds: &domain.AlertThresholds{Warning: 90, Danger: 70}}, "alertThresholds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *domain.ErrValidation
			if err := tt.in.Validate(); !errors.As(err, &v) || v.Field != tt.field {
				t.Errorf("err = %v, want validation on %s", err, tt.field)
			}
		})
	}

	zero := domain.BudgetInput{Category: "food"}
	var amt *domain.ErrInvalidAmount
	if err := zero.Validate(); !errors.As(err, &amt) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}
