package service

import "testing"

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5.5, "$5.50"},
		{999.999, "$1,000.00"},
		{1234.56, "$1,234.56"},
		{1234567.8, "$1,234,567.80"},
		{-50, "-$50.00"},
	}
	for _, tt := range tests {
		if got := money(tt.in); got != tt.want {
			t.Errorf("money(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPctAndDueIn(t *testing.T) {
	if got := pct(83.33); got != "83.3%" {
		t.Errorf("pct(83.33) = %q", got)
	}
	if got := pct(125); got != "125%" {
		t.Errorf("pct(125) = %q", got)
	}
	for days, want := range map[int]string{0: "today", 1: "tomorrow", 5: "in 5 days", -2: "2 days ago"} {
		if got := dueIn(days); got != want {
			t.Errorf("dueIn(%d) = %q, want %q", days, got, want)
		}
	}
}
