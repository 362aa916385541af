package domain

import (
	"strings"
	"time"
)

// ============================================================
// Bill Tracker
// ============================================================

// Frequency is the recurrence step of a bill.
type Frequency string

const (
	FrequencyWeekly       Frequency = "weekly"
	FrequencyBiWeekly     Frequency = "biweekly"
	FrequencyMonthly      Frequency = "monthly"
	FrequencyQuarterly    Frequency = "quarterly"
	FrequencySemiAnnually Frequency = "semiannually"
	FrequencyYearly       Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiAnnually, FrequencyYearly:
		return true
	}
	return false
}

// NextOccurrence steps dueDate forward by one frequency period. Month-based
// steps use calendar arithmetic clamped to the end of the target month.
func NextOccurrence(dueDate time.Time, f Frequency) time.Time {
	d := DateOnly(dueDate)
	switch f {
	case FrequencyWeekly:
		return d.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return d.AddDate(0, 0, 14)
	case FrequencyQuarterly:
		return AddMonthsClamped(d, 3)
	case FrequencySemiAnnually:
		return AddMonthsClamped(d, 6)
	case FrequencyYearly:
		return AddMonthsClamped(d, 12)
	default:
		return AddMonthsClamped(d, 1)
	}
}

// MonthlyEquivalent converts a bill amount to its average monthly cost.
func MonthlyEquivalent(amount float64, f Frequency) float64 {
	switch f {
	case FrequencyWeekly:
		return Round2(amount * 52 / 12)
	case FrequencyBiWeekly:
		return Round2(amount * 26 / 12)
	case FrequencyQuarterly:
		return Round2(amount / 3)
	case FrequencySemiAnnually:
		return Round2(amount / 6)
	case FrequencyYearly:
		return Round2(amount / 12)
	default:
		return Round2(amount)
	}
}

type BillStatus string

const (
	BillActive    BillStatus = "active"
	BillPaused    BillStatus = "paused"
	BillCancelled BillStatus = "cancelled"
)

func (s BillStatus) Valid() bool {
	return s == BillActive || s == BillPaused || s == BillCancelled
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodAutoDebit    PaymentMethod = "auto_debit"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodAutoDebit, MethodOther:
		return true
	}
	return false
}

// PaymentRecord is one settled occurrence of a bill.
type PaymentRecord struct {
	ID                 string        `json:"id"`
	Amount             float64       `json:"amount"`
	PaidDate           time.Time     `json:"paidDate"`
	Method             PaymentMethod `json:"method"`
	ConfirmationNumber string        `json:"confirmationNumber,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	CycleDueDate       time.Time     `json:"cycleDueDate"`
}

// DefaultReminderDays is used when a bill is created without reminderDays.
const DefaultReminderDays = 3

// Bill is a recurring payment obligation. DueDate always points at the next
// unpaid occurrence; the same entity is reused across cycles.
type Bill struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Amount         float64         `json:"amount"`
	Category       string          `json:"category"`
	DueDate        time.Time       `json:"dueDate"`
	Frequency      Frequency       `json:"frequency"`
	ReminderDays   int             `json:"reminderDays"`
	AutoPay        bool            `json:"autoPay"`
	Notes          string          `json:"notes,omitempty"`
	Status         BillStatus      `json:"status"`
	LastPaidDate   *time.Time      `json:"lastPaidDate,omitempty"`
	PaymentHistory []PaymentRecord `json:"paymentHistory"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsPaid reports whether the occurrence at DueDate has a payment on record.
func (b *Bill) IsPaid() bool {
	due := DateOnly(b.DueDate)
	for _, p := range b.PaymentHistory {
		if DateOnly(p.CycleDueDate).Equal(due) {
			return true
		}
	}
	return false
}

// DaysUntilDue is negative for overdue bills.
func (b *Bill) DaysUntilDue(today time.Time) int {
	return DaysBetween(today, b.DueDate)
}

// IsOverdue reports an unpaid occurrence strictly before today.
func (b *Bill) IsOverdue(today time.Time) bool {
	return !b.IsPaid() && DateOnly(b.DueDate).Before(DateOnly(today))
}

// Transition validates a status change against the bill state machine.
func (b *Bill) Transition(to BillStatus) error {
	from := b.Status
	ok := false
	switch to {
	case BillPaused:
		ok = from == BillActive
	case BillActive:
		ok = from == BillPaused
	case BillCancelled:
		ok = from != BillCancelled
	}
	if !ok {
		return &ErrInvalidTransition{Resource: "bill", From: string(from), To: string(to)}
	}
	b.Status = to
	return nil
}

// PaymentInput is the optional body of PATCH /bills/{id}/paid.
type PaymentInput struct {
	Amount             *float64      `json:"amount"`
	PaidDate           Date          `json:"paidDate"`
	Method             PaymentMethod `json:"method"`
	ConfirmationNumber string        `json:"confirmationNumber"`
	Notes              string        `json:"notes"`
}

// Validate checks optional payment fields.
func (in *PaymentInput) Validate() error {
	if in.Amount != nil {
		if err := CheckPositive("amount", *in.Amount); err != nil {
			return err
		}
	}
	if in.Method == "" {
		in.Method = MethodOther
	}
	if !in.Method.Valid() {
		return &ErrValidation{Field: "method", Message: "must be one of cash, card, bank_transfer, auto_debit, other"}
	}
	return nil
}

// MarkPaid settles the current occurrence: it appends a history entry,
// records lastPaidDate and advances DueDate by one frequency step.
func (b *Bill) MarkPaid(id string, in PaymentInput, now time.Time) PaymentRecord {
	rec := PaymentRecord{
		ID:                 id,
		Amount:             b.Amount,
		PaidDate:           now.UTC(),
		Method:             in.Method,
		ConfirmationNumber: in.ConfirmationNumber,
		Notes:              in.Notes,
		CycleDueDate:       DateOnly(b.DueDate),
	}
	if in.Amount != nil {
		rec.Amount = *in.Amount
	}
	if !in.PaidDate.IsZero() {
		rec.PaidDate = in.PaidDate.Time
	}
	if rec.Method == "" {
		rec.Method = MethodOther
	}

	b.PaymentHistory = append(b.PaymentHistory, rec)
	paid := rec.PaidDate
	b.LastPaidDate = &paid
	b.DueDate = NextOccurrence(b.DueDate, b.Frequency)
	return rec
}

// BillView is a bill with its derived fields.
type BillView struct {
	Bill
	IsPaid       bool      `json:"isPaid"`
	NextDueDate  time.Time `json:"nextDueDate"`
	DaysUntilDue int       `json:"daysUntilDue"`
	IsOverdue    bool      `json:"isOverdue"`
	InReminder   bool      `json:"inReminderWindow"`
}

// ViewBill derives IsPaid, NextDueDate, DaysUntilDue and IsOverdue as of today.
func ViewBill(b Bill, today time.Time) BillView {
	days := b.DaysUntilDue(today)
	paid := b.IsPaid()
	return BillView{
		Bill:         b,
		IsPaid:       paid,
		NextDueDate:  NextOccurrence(b.DueDate, b.Frequency),
		DaysUntilDue: days,
		IsOverdue:    b.IsOverdue(today),
		InReminder:   !paid && b.Status == BillActive && days >= 0 && days <= b.ReminderDays,
	}
}

// BillInput is the create/replace payload for a bill.
type BillInput struct {
	Name         string     `json:"name"`
	Amount       float64    `json:"amount"`
	Category     string     `json:"category"`
	DueDate      Date       `json:"dueDate"`
	Frequency    Frequency  `json:"frequency"`
	ReminderDays *int       `json:"reminderDays"`
	AutoPay      bool       `json:"autoPay"`
	Notes        string     `json:"notes"`
	Status       BillStatus `json:"status"`
}

// Validate checks the bill payload and fills defaults.
func (in *BillInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if err := CheckPositive("amount", in.Amount); err != nil {
		return err
	}
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = "utilities"
	}
	if !IsCategoryOf(KindExpense, in.Category) {
		return &ErrValidation{Field: "category", Message: "'" + in.Category + "' is not an expense category"}
	}
	if in.DueDate.IsZero() {
		return &ErrValidation{Field: "dueDate", Message: "is required"}
	}
	if in.Frequency == "" {
		in.Frequency = FrequencyMonthly
	}
	if !in.Frequency.Valid() {
		return &ErrValidation{Field: "frequency", Message: "must be one of weekly, biweekly, monthly, quarterly, semiannually, yearly"}
	}
	if in.ReminderDays != nil && (*in.ReminderDays < 0 || *in.ReminderDays > 30) {
		return &ErrValidation{Field: "reminderDays", Message: "must be between 0 and 30"}
	}
	return nil
}

// BillFilter selects bills. Zero values mean "any".
type BillFilter struct {
	UserID  string
	Status  BillStatus
	DueFrom time.Time // inclusive
	DueTo   time.Time // inclusive
}

// Matches reports whether b satisfies the filter.
func (f BillFilter) Matches(b *Bill) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if !f.DueFrom.IsZero() && b.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueTo.IsZero() && b.DueDate.After(f.DueTo) {
		return false
	}
	return true
}

// BillStats summarises a user's bills.
type BillStats struct {
	TotalBills        int                `json:"totalBills"`
	StatusCounts      map[BillStatus]int `json:"statusCounts"`
	MonthlyTotal      float64            `json:"monthlyTotal"`
	OverdueCount      int                `json:"overdueCount"`
	OverdueAmount     float64            `json:"overdueAmount"`
	UpcomingCount     int                `json:"upcomingCount"`
	UpcomingAmount    float64            `json:"upcomingAmount"`
	PaidThisMonth     float64            `json:"paidThisMonth"`
	PaymentsThisMonth int                `json:"paymentsThisMonth"`
}
