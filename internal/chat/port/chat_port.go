// Package port defines what the assistant needs from the outside: a text
// generator and read access to the user's finances.
package port

import (
	"context"
	"time"

	chatdomain "github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// TextGenerator produces a free-text answer. Implemented by the Gemini
// adapter and by the HTTP agent client.
type TextGenerator interface {
	Generate(ctx context.Context, req *chatdomain.GenerateRequest) (*chatdomain.GenerateResult, error)
}

// LedgerReader lists transactions.
type LedgerReader interface {
	List(ctx context.Context, userID string, f domain.TransactionFilter) (*domain.ListResponse[domain.Transaction], error)
}

// BudgetReader lists budgets with their spending.
type BudgetReader interface {
	ListWithSpending(ctx context.Context, userID string, activeOnly bool) ([]domain.BudgetWithSpending, error)
}

// GoalReader lists goals, optionally by status.
type GoalReader interface {
	List(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.GoalView, error)
}

// BillReader lists active unpaid bills due within days.
type BillReader interface {
	Upcoming(ctx context.Context, userID string, days int) ([]domain.BillView, error)
}

// InsightReader exposes the aggregates that never fail.
type InsightReader interface {
	Summary(ctx context.Context, userID string, from, to time.Time) domain.FinancialSummary
	Spending(ctx context.Context, userID string, from, to time.Time) domain.SpendingBreakdown
	GoalProgress(ctx context.Context, userID string) domain.GoalProgressSummary
	SpendingPatterns(ctx context.Context, userID string) domain.SpendingPatterns
	FinancialHealthScore(ctx context.Context, userID string) domain.HealthScore
}

// ContextLoader builds the financial snapshot of one user.
type ContextLoader interface {
	Load(ctx context.Context, userID string) (*chatdomain.FinancialContext, error)
}
