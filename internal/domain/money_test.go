package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

func TestMoneyHelpers(t *testing.T) {
	if got := domain.SumAmounts(0.1, 0.2); got != 0.3 {
		t.Errorf("SumAmounts(0.1, 0.2) = %v", got)
	}
	if got := domain.Round2(2.675); got != 2.68 {
		t.Errorf("Round2(2.675) = %v", got)
	}
	if got := domain.Percent(1, 3); got != 33.33 {
		t.Errorf("Percent(1, 3) = %v", got)
	}
	if got := domain.Percent(5, 0); got != 0 {
		t.Errorf("Percent(5, 0) = %v", got)
	}
	if c := domain.ToCents(19.99); c != 1999 || domain.FromCents(c) != 19.99 {
		t.Errorf("cents round trip: %d", c)
	}
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		from time.Time
		n    int
		want time.Time
	}{
		{day(2024, 1, 31), 1, day(2024, 2, 29)},
		{day(2024, 3, 31), -1, day(2024, 2, 29)},
		{day(2024, 10, 31), 2, day(2024, 12, 31)},
		{day(2024, 5, 15), 12, day(2025, 5, 15)},
	}
	for _, tt := range tests {
		if got := domain.AddMonthsClamped(tt.from, tt.n); !got.Equal(tt.want) {
			t.Errorf("AddMonthsClamped(%s, %d) = %s", tt.from.Format("2006-01-02"), tt.n, got.Format("2006-01-02"))
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01", day(2024, 3, 1), false},
		{"2024-03-01T23:30:00-05:00", day(2024, 3, 2), false},
		{"2024-03-01T10:00:00Z", day(2024, 3, 1), false},
		{"03/01/2024", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := domain.ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Time, tt.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var body struct {
		Due  domain.Date `json:"due"`
		Skip domain.Date `json:"skip"`
	}
	if err := json.Unmarshal([]byte(`{"due":"2024-02-29","skip":null}`), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !body.Due.Equal(day(2024, 2, 29)) || !body.Skip.IsZero() {
		t.Errorf("decoded = %+v", body)
	}

	out, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"due":"2024-02-29","skip":null}` {
		t.Errorf("encoded = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"due":"29/02/2024"}`), &body); err == nil {
		t.Error("expected an error for a malformed date")
	}
}

func TestDaysBetween(t *testing.T) {
	if got := domain.DaysBetween(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), day(2024, 3, 12)); got != 3 {
		t.Errorf("DaysBetween = %d, want 3", got)
	}
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	tiny := 0.004
	due := domain.NewDate(day(2024, 4, 1))
	tests := []struct {
		name  string
		valid func() error
		field string
	}{
		{"transaction", (&domain.TransactionInput{Kind: domain.KindExpense, Amount: tiny, Category: "food"}).Validate, "amount"},
		{"budget", (&domain.BudgetInput{Category: "food", Amount: tiny}).Validate, "amount"},
		{"goal", (&domain.GoalInput{Name: "Trip", TargetAmount: tiny}).Validate, "targetAmount"},
		{"bill", (&domain.BillInput{Name: "Gym", Amount: tiny, DueDate: due}).Validate, "amount"},
		{"payment", (&domain.PaymentInput{Amount: &tiny}).Validate, "amount"},
		{"contribution", func() error { return domain.CheckPositive("amount", 0.001) }, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var amt *domain.ErrInvalidAmount
			if err := tt.valid(); !errors.As(err, &amt) || amt.Field != tt.field {
				t.Errorf("err = %v, want ErrInvalidAmount on %s", err, tt.field)
			}
		})
	}

	if err := domain.CheckPositive("amount", 0.005); err != nil {
		t.Errorf("0.005 rounds to a cent, got %v", err)
	}
}
