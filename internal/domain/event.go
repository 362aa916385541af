package domain

import "time"

// EventType names a domain event published after a successful mutation.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBudgetCreated      EventType = "budget.created"
	EventGoalContributed    EventType = "goal.contributed"
	EventGoalCompleted      EventType = "goal.completed"
	EventBillPaid           EventType = "bill.paid"
	EventBillStatusChanged  EventType = "bill.status_changed"
)

// Event is the envelope published to the message broker.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"userId"`
	EntityID   string    `json:"entityId"`
	Amount     float64   `json:"amount,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
