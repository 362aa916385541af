package mongostore

import (
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// BSON documents. Ids are UUID strings stored in _id.

type transactionDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"userId"`
	Kind        string    `bson:"kind"`
	Amount      float64   `bson:"amount"`
	Category    string    `bson:"category"`
	Date        time.Time `bson:"date"`
	Description string    `bson:"description,omitempty"`
	GoalID      string    `bson:"goalId,omitempty"`
	Tags        []string  `bson:"tags"`
	Recurring   bool      `bson:"recurring"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toTransactionDoc(t *domain.Transaction) transactionDoc {
	return transactionDoc{
		ID: t.ID, UserID: t.UserID, Kind: string(t.Kind), Amount: t.Amount,
		Category: t.Category, Date: t.Date, Description: t.Description, GoalID: t.GoalID,
		Tags: nonNil(t.Tags), Recurring: t.Recurring, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (d transactionDoc) toDomain() domain.Transaction {
	return domain.Transaction{
		ID: d.ID, UserID: d.UserID, Kind: domain.Kind(d.Kind), Amount: d.Amount,
		Category: d.Category, Date: d.Date.UTC(), Description: d.Description, GoalID: d.GoalID,
		Tags: nonNil(d.Tags), Recurring: d.Recurring, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type budgetDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Category  string    `bson:"category"`
	Amount    float64   `bson:"amount"`
	Period    string    `bson:"period"`
	StartDate time.Time `bson:"startDate"`
	EndDate   time.Time `bson:"endDate"`
	Warning   float64   `bson:"warningThreshold"`
	Danger    float64   `bson:"dangerThreshold"`
	IsActive  bool      `bson:"isActive"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toBudgetDoc(b *domain.Budget) budgetDoc {
	return budgetDoc{
		ID: b.ID, UserID: b.UserID, Category: b.Category, Amount: b.Amount, Period: string(b.Period),
		StartDate: b.StartDate, EndDate: b.EndDate, Warning: b.AlertThresholds.Warning,
		Danger: b.AlertThresholds.Danger, IsActive: b.IsActive, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (d budgetDoc) toDomain() domain.Budget {
	return domain.Budget{
		ID: d.ID, UserID: d.UserID, Category: d.Category, Amount: d.Amount, Period: domain.Period(d.Period),
		StartDate: d.StartDate.UTC(), EndDate: d.EndDate.UTC(),
		AlertThresholds: domain.AlertThresholds{Warning: d.Warning, Danger: d.Danger},
		IsActive:        d.IsActive, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type goalDoc struct {
	ID            string     `bson:"_id"`
	UserID        string     `bson:"userId"`
	Name          string     `bson:"name"`
	Description   string     `bson:"description,omitempty"`
	TargetAmount  float64    `bson:"targetAmount"`
	CurrentAmount float64    `bson:"currentAmount"`
	Category      string     `bson:"category,omitempty"`
	Priority      string     `bson:"priority"`
	Deadline      *time.Time `bson:"deadline,omitempty"`
	Status        string     `bson:"status"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

func toGoalDoc(g *domain.Goal) goalDoc {
	return goalDoc{
		ID: g.ID, UserID: g.UserID, Name: g.Name, Description: g.Description,
		TargetAmount: g.TargetAmount, CurrentAmount: g.CurrentAmount, Category: g.Category,
		Priority: string(g.Priority), Deadline: g.Deadline, Status: string(g.Status),
		CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (d goalDoc) toDomain() domain.Goal {
	g := domain.Goal{
		ID: d.ID, UserID: d.UserID, Name: d.Name, Description: d.Description,
		TargetAmount: d.TargetAmount, CurrentAmount: d.CurrentAmount, Category: d.Category,
		Priority: domain.Priority(d.Priority), Status: domain.GoalStatus(d.Status),
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.Deadline != nil {
		t := d.Deadline.UTC()
		g.Deadline = &t
	}
	return g
}

type paymentDoc struct {
	ID                 string    `bson:"id"`
	Amount             float64   `bson:"amount"`
	PaidDate           time.Time `bson:"paidDate"`
	Method             string    `bson:"method"`
	ConfirmationNumber string    `bson:"confirmationNumber,omitempty"`
	Notes              string    `bson:"notes,omitempty"`
	CycleDueDate       time.Time `bson:"cycleDueDate"`
}

type billDoc struct {
	ID             string       `bson:"_id"`
	UserID         string       `bson:"userId"`
	Name           string       `bson:"name"`
	Amount         float64      `bson:"amount"`
	Category       string       `bson:"category"`
	DueDate        time.Time    `bson:"dueDate"`
	Frequency      string       `bson:"frequency"`
	ReminderDays   int          `bson:"reminderDays"`
	AutoPay        bool         `bson:"autoPay"`
	Notes          string       `bson:"notes,omitempty"`
	Status         string       `bson:"status"`
	LastPaidDate   *time.Time   `bson:"lastPaidDate,omitempty"`
	PaymentHistory []paymentDoc `bson:"paymentHistory"`
	CreatedAt      time.Time    `bson:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt"`
}

func toBillDoc(b *domain.Bill) billDoc {
	history := make([]paymentDoc, 0, len(b.PaymentHistory))
	for _, p := range b.PaymentHistory {
		history = append(history, paymentDoc{
			ID: p.ID, Amount: p.Amount, PaidDate: p.PaidDate, Method: string(p.Method),
			ConfirmationNumber: p.ConfirmationNumber, Notes: p.Notes, CycleDueDate: p.CycleDueDate,
		})
	}
	return billDoc{
		ID: b.ID, UserID: b.UserID, Name: b.Name, Amount: b.Amount, Category: b.Category,
		DueDate: b.DueDate, Frequency: string(b.Frequency), ReminderDays: b.ReminderDays,
		AutoPay: b.AutoPay, Notes: b.Notes, Status: string(b.Status), LastPaidDate: b.LastPaidDate,
		PaymentHistory: history, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (d billDoc) toDomain() domain.Bill {
	history := make([]domain.PaymentRecord, 0, len(d.PaymentHistory))
	for _, p := range d.PaymentHistory {
		history = append(history, domain.PaymentRecord{
			ID: p.ID, Amount: p.Amount, PaidDate: p.PaidDate.UTC(), Method: domain.PaymentMethod(p.Method),
			ConfirmationNumber: p.ConfirmationNumber, Notes: p.Notes, CycleDueDate: p.CycleDueDate.UTC(),
		})
	}
	b := domain.Bill{
		ID: d.ID, UserID: d.UserID, Name: d.Name, Amount: d.Amount, Category: d.Category,
		DueDate: d.DueDate.UTC(), Frequency: domain.Frequency(d.Frequency), ReminderDays: d.ReminderDays,
		AutoPay: d.AutoPay, Notes: d.Notes, Status: domain.BillStatus(d.Status),
		PaymentHistory: history, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.LastPaidDate != nil {
		t := d.LastPaidDate.UTC()
		b.LastPaidDate = &t
	}
	return b
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
