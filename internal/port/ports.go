// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// GetOrLoad serves key from the cache or calls load and stores a
	// successful result.
	GetOrLoad(key string, load func() (T, error)) (T, bool, error)
}

// TransactionStore persists the ledger and answers its grouping queries.
// Get returns (nil, nil) when the entity is absent or owned by someone else;
// Update and Delete return *domain.ErrNotFound in that case.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	CreateTransactions(ctx context.Context, txs []*domain.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	// ListTransactions applies filter, sort and skip/limit and returns the
	// page together with the unpaginated total.
	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error)

	// SumTransactions groups matching rows by kind.
	SumTransactions(ctx context.Context, f domain.TransactionFilter) (domain.KindTotals, error)

	// SumByCategory groups matching rows by (kind, category), descending by total.
	SumByCategory(ctx context.Context, f domain.TransactionFilter) ([]domain.CategoryTotal, error)

	// SumByMonth groups a user's rows in [from, to] by (year, month, kind).
	SumByMonth(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthKindTotal, error)
}

// BudgetStore persists budgets. CreateBudget and UpdateBudget return
// *domain.ErrDuplicateBudget on a (user, category, period, startDate) clash.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b *domain.Budget) error
	GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error)
	FindBudget(ctx context.Context, userID, category string, period domain.Period, start time.Time) (*domain.Budget, error)
	ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]domain.Budget, error)
	UpdateBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, userID, id string) error
}

// GoalStore persists goals.
type GoalStore interface {
	CreateGoal(ctx context.Context, g *domain.Goal) error
	GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error)
	ListGoals(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.Goal, error)
	UpdateGoal(ctx context.Context, g *domain.Goal) error
	DeleteGoal(ctx context.Context, userID, id string) error

	// IncrementGoal adds amount to currentAmount in a single store operation
	// and returns the updated goal, or (nil, nil) when not found.
	IncrementGoal(ctx context.Context, userID, id string, amount float64) (*domain.Goal, error)
}

// BillStore persists bills. ListBills returns rows ascending by dueDate.
type BillStore interface {
	CreateBill(ctx context.Context, b *domain.Bill) error
	GetBill(ctx context.Context, userID, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, f domain.BillFilter) ([]domain.Bill, error)
	UpdateBill(ctx context.Context, b *domain.Bill) error
	DeleteBill(ctx context.Context, userID, id string) error
}

// UserStore persists account owners. CreateUser returns *domain.ErrConflict
// when the e-mail is taken.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Store is the full record store implemented by every storage adapter.
type Store interface {
	TransactionStore
	BudgetStore
	GoalStore
	BillStore
	UserStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// EventPublisher delivers domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
	Close() error
}

// TransactionExporter renders ledger rows into a downloadable document.
type TransactionExporter interface {
	ContentType() string
	FileExtension() string
	Export(w io.Writer, txs []domain.Transaction, breakdown domain.SpendingBreakdown) error
}
