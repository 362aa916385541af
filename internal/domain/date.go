package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date accepted at the API boundary either as
// "2006-01-02" or as an RFC 3339 timestamp. It always holds UTC midnight.
type Date struct {
	time.Time
}

// NewDate wraps t as a calendar date.
func NewDate(t time.Time) Date {
	return Date{Time: DateOnly(t)}
}

// ParseDate parses "2006-01-02" or RFC 3339.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return NewDate(t), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}
