package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var budgetTracer = otel.Tracer("service/budgets")

// BudgetService manages budgets and derives their spending from the ledger.
type BudgetService struct {
	budgets port.BudgetStore
	txs     port.TransactionStore
	emitter
	now Clock
}

func NewBudgetService(budgets port.BudgetStore, txs port.TransactionStore, events port.EventPublisher, logger *zap.Logger) *BudgetService {
	return &BudgetService{
		budgets: budgets,
		txs:     txs,
		emitter: emitter{events: events, logger: logger},
		now:     systemClock,
	}
}

// WithClock overrides the time source.
func (s *BudgetService) WithClock(c Clock) *BudgetService {
	s.now = c
	return s
}

func (s *BudgetService) Create(ctx context.Context, userID string, in *domain.BudgetInput) (*domain.BudgetWithSpending, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	b := &domain.Budget{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
	}
	s.apply(b, in, now)

	if err := s.ensureUnique(ctx, b); err != nil {
		return nil, err
	}
	if err := s.budgets.CreateBudget(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("budget created",
		zap.String("user_id", userID),
		zap.String("budget_id", b.ID),
		zap.String("category", b.Category),
		zap.String("period", string(b.Period)),
	)
	s.emit(ctx, domain.EventBudgetCreated, userID, b.ID, b.Amount, b.Category)
	return s.enrich(ctx, b)
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (*domain.BudgetWithSpending, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Get")
	defer span.End()

	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, b)
}

func (s *BudgetService) List(ctx context.Context, userID string, activeOnly bool) ([]domain.Budget, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.List")
	defer span.End()

	rows, err := s.budgets.ListBudgets(ctx, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if rows == nil {
		rows = []domain.Budget{}
	}
	return rows, nil
}

// Update replaces the budget fields, recomputing the window end and checking
// the (category, period, startDate) key against the caller's other budgets.
func (s *BudgetService) Update(ctx context.Context, userID, id string, in *domain.BudgetInput) (*domain.BudgetWithSpending, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Update")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	b, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.StartDate.IsZero() {
		in.StartDate = domain.NewDate(b.StartDate)
	}
	if in.AlertThresholds == nil {
		t := b.AlertThresholds
		in.AlertThresholds = &t
	}
	if in.IsActive == nil {
		active := b.IsActive
		in.IsActive = &active
	}
	s.apply(b, in, s.now())

	if err := s.ensureUnique(ctx, b); err != nil {
		return nil, err
	}
	if err := s.budgets.UpdateBudget(ctx, b); err != nil {
		return nil, err
	}
	s.changed(userID)
	return s.enrich(ctx, b)
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Delete")
	defer span.End()

	if err := s.budgets.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("budget deleted", zap.String("user_id", userID), zap.String("budget_id", id))
	s.changed(userID)
	return nil
}

// ComputeSpending sums the expenses of the budget's category inside its
// inclusive [startDate, endDate] window.
func (s *BudgetService) ComputeSpending(ctx context.Context, b *domain.Budget) (domain.BudgetSpending, error) {
	totals, err := s.txs.SumTransactions(ctx, domain.TransactionFilter{
		UserID:   b.UserID,
		Kind:     domain.KindExpense,
		Category: b.Category,
		From:     domain.DateOnly(b.StartDate),
		To:       domain.EndOfDay(b.EndDate),
	})
	if err != nil {
		return domain.BudgetSpending{}, fmt.Errorf("sum budget spending: %w", err)
	}
	return domain.ComputeSpending(b, totals.Expenses, totals.ExpenseCount), nil
}

// ListWithSpending enriches every budget (or only active ones) with its
// spending view. It performs no writes.
func (s *BudgetService) ListWithSpending(ctx context.Context, userID string, activeOnly bool) ([]domain.BudgetWithSpending, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.ListWithSpending")
	defer span.End()

	rows, err := s.List(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BudgetWithSpending, 0, len(rows))
	for i := range rows {
		spending, err := s.ComputeSpending(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, domain.BudgetWithSpending{Budget: rows[i], BudgetSpending: spending})
	}
	return out, nil
}

// Summary rolls up the caller's active budgets.
func (s *BudgetService) Summary(ctx context.Context, userID string) (*domain.BudgetUtilization, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Summary")
	defer span.End()

	rows, err := s.ListWithSpending(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	u := domain.SummarizeBudgets(rows)
	return &u, nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *BudgetService) find(ctx context.Context, userID, id string) (*domain.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if b == nil {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return b, nil
}

func (s *BudgetService) ensureUnique(ctx context.Context, b *domain.Budget) error {
	other, err := s.budgets.FindBudget(ctx, b.UserID, b.Category, b.Period, b.StartDate)
	if err != nil {
		return fmt.Errorf("find budget: %w", err)
	}
	if other != nil && other.ID != b.ID {
		return &domain.ErrDuplicateBudget{
			Category:  b.Category,
			Period:    string(b.Period),
			StartDate: b.StartDate.Format(domain.DateLayout),
		}
	}
	return nil
}

func (s *BudgetService) enrich(ctx context.Context, b *domain.Budget) (*domain.BudgetWithSpending, error) {
	spending, err := s.ComputeSpending(ctx, b)
	if err != nil {
		return nil, err
	}
	return &domain.BudgetWithSpending{Budget: *b, BudgetSpending: spending}, nil
}

// apply copies a validated input onto b. A missing start date opens the
// window on the first day of the current month (today for weekly budgets).
func (s *BudgetService) apply(b *domain.Budget, in *domain.BudgetInput, now time.Time) {
	start := in.StartDate.Time
	if start.IsZero() {
		today := domain.DateOnly(now)
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		if in.Period == domain.PeriodWeekly {
			start = today
		}
	}
	thresholds := domain.DefaultThresholds()
	if in.AlertThresholds != nil {
		thresholds = *in.AlertThresholds
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	b.Category = in.Category
	b.Amount = domain.Round2(in.Amount)
	b.Period = in.Period
	b.StartDate = domain.DateOnly(start)
	b.EndDate = domain.BudgetEndDate(start, in.Period)
	b.AlertThresholds = thresholds
	b.IsActive = active
	b.UpdatedAt = now
}
