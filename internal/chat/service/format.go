package service

import (
	"fmt"
	"strings"
	"time"

	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// money renders v as "$1,234.56" ("-$12.00" when negative).
func money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + frac
}

// pct renders a percentage with at most one decimal: 83.33 → "83.3%".
func pct(v float64) string {
	return decimal.NewFromFloat(v).Round(1).String() + "%"
}

func dueIn(days int) string {
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 0:
		return fmt.Sprintf("%d days ago", -days)
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

func date(t time.Time) string {
	return t.Format(maindomain.DateLayout)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
