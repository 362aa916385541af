package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Money helpers
// ============================================================
//
// Entities carry float64 amounts for JSON/bson friendliness. Every sum,
// ratio and threshold comparison goes through decimal so that values such as
// 0.1+0.2 never flip a classification.

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SumAmounts adds amounts exactly and returns the result rounded to cents.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole <= 0.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromFloat(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(whole)).
		Round(2).
		InexactFloat64()
}

// reachesPercent reports whether part/whole*100 >= threshold without
// going through a rounded float.
func reachesPercent(part, whole, threshold float64) bool {
	if whole <= 0 {
		return false
	}
	lhs := decimal.NewFromFloat(part).Mul(decimal.NewFromInt(100))
	rhs := decimal.NewFromFloat(whole).Mul(decimal.NewFromFloat(threshold))
	return lhs.GreaterThanOrEqual(rhs)
}

// ============================================================
// Calendar helpers
// ============================================================

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// daysIn returns the number of days of month m in year y.
func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped adds n calendar months to t, clamping the day to the last
// day of the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// ToCents converts an amount to integer cents, rounding half away from zero.
func ToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Shift(2).IntPart()
}

// CheckPositive rejects amounts that round to zero cents or less, since
// entities store Round2 of what they are given.
func CheckPositive(field string, v float64) error {
	if ToCents(v) <= 0 {
		return &ErrInvalidAmount{Field: field, Amount: v}
	}
	return nil
}

// FromCents converts integer cents back to an amount.
func FromCents(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}
