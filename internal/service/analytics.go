package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var analyticsTracer = otel.Tracer("service/analytics")

// Aggregator windows.
const (
	DefaultTrendMonths   = 12
	MaxTrendMonths       = 36
	OverviewBillsWindow  = 30
	DiversificationDays  = 90
	storeErrorMetricName = "store"
)

// AnalyticsService composes the ledger and the trackers into dashboard views.
//
// Overview propagates the first failing sub-fetch. Every other aggregate logs
// the failure and returns a zero-valued result so a single broken query never
// takes a dashboard widget down.
type AnalyticsService struct {
	txs     port.TransactionStore
	budgets *BudgetService
	goals   *GoalService
	bills   *BillService
	metrics *observability.Metrics
	logger  *zap.Logger
	now     Clock
}

func NewAnalyticsService(
	txs port.TransactionStore,
	budgets *BudgetService,
	goals *GoalService,
	bills *BillService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		txs:     txs,
		budgets: budgets,
		goals:   goals,
		bills:   bills,
		metrics: metrics,
		logger:  logger,
		now:     systemClock,
	}
}

// WithClock overrides the time source of the aggregator and its trackers.
func (s *AnalyticsService) WithClock(c Clock) *AnalyticsService {
	s.now = c
	s.budgets.WithClock(c)
	s.goals.WithClock(c)
	s.bills.WithClock(c)
	return s
}

// ============================================================
// Overview: GET /v1/analytics/overview
// ============================================================

// Overview fans out the independent reads and waits for all of them. Any
// failure aborts the whole view.
func (s *AnalyticsService) Overview(ctx context.Context, userID string, from, to time.Time) (*domain.Overview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.Overview")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("analytics.overview", time.Since(start))
	}()

	from, to, err := resolveRange(s.now(), from, to)
	if err != nil {
		return nil, err
	}

	var (
		out    domain.Overview
		health domain.HealthScore
	)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, err := s.txs.SumTransactions(gCtx, domain.TransactionFilter{UserID: userID, From: from, To: to})
		if err != nil {
			return s.fail("summary", userID, err)
		}
		out.Summary = domain.NewFinancialSummary(from, to, totals)
		return nil
	})

	g.Go(func() error {
		cats, err := s.txs.SumByCategory(gCtx, domain.TransactionFilter{
			UserID: userID, Kind: domain.KindExpense, From: from, To: to,
		})
		if err != nil {
			return s.fail("spending", userID, err)
		}
		out.Spending = domain.NewSpendingBreakdown(cats)
		return nil
	})

	g.Go(func() error {
		trends, err := s.monthlyTrends(gCtx, userID, DefaultTrendMonths)
		if err != nil {
			return s.fail("trends", userID, err)
		}
		out.Trends = trends
		return nil
	})

	g.Go(func() error {
		budgets, err := s.budgets.ListWithSpending(gCtx, userID, true)
		if err != nil {
			return s.fail("budgets", userID, err)
		}
		out.Budgets = budgets
		return nil
	})

	g.Go(func() error {
		goals, err := s.goals.Stats(gCtx, userID)
		if err != nil {
			return s.fail("goals", userID, err)
		}
		out.Goals = *goals
		return nil
	})

	g.Go(func() error {
		bills, err := s.bills.Upcoming(gCtx, userID, OverviewBillsWindow)
		if err != nil {
			return s.fail("bills", userID, err)
		}
		out.Bills = bills
		return nil
	})

	g.Go(func() error {
		h, err := s.healthScore(gCtx, userID)
		if err != nil {
			return s.fail("health", userID, err)
		}
		health = h
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.HealthScore = &health
	return &out, nil
}

// ============================================================
// Independent aggregates (degrade to zero values)
// ============================================================

// MonthlyTrends returns one row per month, oldest first, ending this month.
func (s *AnalyticsService) MonthlyTrends(ctx context.Context, userID string, months int) []domain.MonthlyTrend {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.MonthlyTrends")
	defer span.End()

	months = clampMonths(months)
	trends, err := s.monthlyTrends(ctx, userID, months)
	if err != nil {
		s.degrade("trends", userID, err)
		return domain.PivotMonthlyTrends(nil, s.now(), months)
	}
	return trends
}

func (s *AnalyticsService) BudgetUtilization(ctx context.Context, userID string) domain.BudgetUtilization {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.BudgetUtilization")
	defer span.End()

	u, err := s.budgets.Summary(ctx, userID)
	if err != nil {
		s.degrade("budget_utilization", userID, err)
		return domain.SummarizeBudgets(nil)
	}
	return *u
}

func (s *AnalyticsService) GoalProgress(ctx context.Context, userID string) domain.GoalProgressSummary {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.GoalProgress")
	defer span.End()

	g, err := s.goals.Stats(ctx, userID)
	if err != nil {
		s.degrade("goal_progress", userID, err)
		return domain.SummarizeGoals(nil, s.now())
	}
	return *g
}

// Spending breaks the expenses of [from, to] down by category.
func (s *AnalyticsService) Spending(ctx context.Context, userID string, from, to time.Time) domain.SpendingBreakdown {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.Spending")
	defer span.End()

	from, to, err := resolveRange(s.now(), from, to)
	if err != nil {
		from, to = monthRange(s.now())
	}
	cats, err := s.txs.SumByCategory(ctx, domain.TransactionFilter{
		UserID: userID, Kind: domain.KindExpense, From: from, To: to,
	})
	if err != nil {
		s.degrade("spending", userID, err)
		return domain.NewSpendingBreakdown(nil)
	}
	return domain.NewSpendingBreakdown(cats)
}

// SpendingPatterns folds the last 30 days of expenses by weekday.
func (s *AnalyticsService) SpendingPatterns(ctx context.Context, userID string) domain.SpendingPatterns {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.SpendingPatterns")
	defer span.End()

	today := domain.DateOnly(s.now())
	rows, _, err := s.txs.ListTransactions(ctx, domain.TransactionFilter{
		UserID: userID,
		Kind:   domain.KindExpense,
		From:   today.AddDate(0, 0, -(domain.SpendingPatternWindow - 1)),
		To:     domain.EndOfDay(today),
		Asc:    true,
	})
	if err != nil {
		s.degrade("spending_patterns", userID, err)
		return domain.NewSpendingPatterns(nil)
	}
	return domain.NewSpendingPatterns(rows)
}

// FinancialHealthScore scores the caller from 0 to 100.
func (s *AnalyticsService) FinancialHealthScore(ctx context.Context, userID string) domain.HealthScore {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.FinancialHealthScore")
	defer span.End()

	h, err := s.healthScore(ctx, userID)
	if err != nil {
		s.degrade("health_score", userID, err)
		return domain.HealthScore{Grade: "poor", Components: []domain.HealthComponent{}}
	}
	return h
}

// Summary returns the headline totals of [from, to] (current month by default).
func (s *AnalyticsService) Summary(ctx context.Context, userID string, from, to time.Time) domain.FinancialSummary {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.Summary")
	defer span.End()

	from, to, err := resolveRange(s.now(), from, to)
	if err != nil {
		from, to = monthRange(s.now())
	}
	totals, err := s.txs.SumTransactions(ctx, domain.TransactionFilter{UserID: userID, From: from, To: to})
	if err != nil {
		s.degrade("summary", userID, err)
		return domain.NewFinancialSummary(from, to, domain.KindTotals{})
	}
	return domain.NewFinancialSummary(from, to, totals)
}

// ============================================================
// Internal helpers
// ============================================================

func (s *AnalyticsService) monthlyTrends(ctx context.Context, userID string, months int) ([]domain.MonthlyTrend, error) {
	now := s.now()
	rows, err := s.txs.SumByMonth(ctx, userID, domain.TrendWindowStart(now, months), domain.EndOfDay(now))
	if err != nil {
		return nil, err
	}
	return domain.PivotMonthlyTrends(rows, now, months), nil
}

// healthScore gathers the score inputs: savings rate of the current month,
// active budget utilization, mean goal progress and the number of distinct
// income categories over the last 90 days.
func (s *AnalyticsService) healthScore(ctx context.Context, userID string) (domain.HealthScore, error) {
	now := s.now()
	from, to := monthRange(now)

	totals, err := s.txs.SumTransactions(ctx, domain.TransactionFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return domain.HealthScore{}, fmt.Errorf("month totals: %w", err)
	}
	utilization, err := s.budgets.Summary(ctx, userID)
	if err != nil {
		return domain.HealthScore{}, err
	}
	goals, err := s.goals.Stats(ctx, userID)
	if err != nil {
		return domain.HealthScore{}, err
	}
	income, err := s.txs.SumByCategory(ctx, domain.TransactionFilter{
		UserID: userID,
		Kind:   domain.KindIncome,
		From:   domain.DateOnly(now).AddDate(0, 0, -DiversificationDays),
		To:     domain.EndOfDay(now),
	})
	if err != nil {
		return domain.HealthScore{}, fmt.Errorf("income categories: %w", err)
	}

	return domain.ComputeHealthScore(domain.HealthInputs{
		SavingsRate:      domain.NewFinancialSummary(from, to, totals).SavingsRate,
		UtilizationRate:  utilization.UtilizationRate,
		AverageProgress:  goals.AverageProgress,
		IncomeCategories: len(income),
	}), nil
}

func (s *AnalyticsService) fail(part, userID string, err error) error {
	s.logger.Error("overview sub-fetch failed",
		zap.String("part", part),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	s.metrics.IncrExternalError(storeErrorMetricName)
	return fmt.Errorf("overview %s: %w", part, err)
}

func (s *AnalyticsService) degrade(part, userID string, err error) {
	s.logger.Warn("aggregate degraded to zero value",
		zap.String("part", part),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	s.metrics.IncrExternalError(storeErrorMetricName)
}

func clampMonths(months int) int {
	switch {
	case months <= 0:
		return DefaultTrendMonths
	case months > MaxTrendMonths:
		return MaxTrendMonths
	}
	return months
}
