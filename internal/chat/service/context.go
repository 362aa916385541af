package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/chat/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/chat/port"
	maindomain "github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Context sizes.
const (
	RecentTransactions = 10
	ContextBillsWindow = 30
)

// FinanceContextLoader reads the snapshot from the trackers and the
// aggregator concurrently. Tracker failures abort the load; aggregates
// degrade on their own.
type FinanceContextLoader struct {
	ledger   port.LedgerReader
	budgets  port.BudgetReader
	goals    port.GoalReader
	bills    port.BillReader
	insights port.InsightReader
	now      func() time.Time
}

func NewFinanceContextLoader(
	ledger port.LedgerReader,
	budgets port.BudgetReader,
	goals port.GoalReader,
	bills port.BillReader,
	insights port.InsightReader,
) *FinanceContextLoader {
	return &FinanceContextLoader{
		ledger:   ledger,
		budgets:  budgets,
		goals:    goals,
		bills:    bills,
		insights: insights,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the snapshot timestamp source.
func (l *FinanceContextLoader) WithClock(now func() time.Time) *FinanceContextLoader {
	l.now = now
	return l
}

func (l *FinanceContextLoader) Load(ctx context.Context, userID string) (*domain.FinancialContext, error) {
	ctx, span := chatTracer.Start(ctx, "FinanceContextLoader.Load")
	defer span.End()

	fc := &domain.FinancialContext{GeneratedAt: l.now()}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := l.ledger.List(gCtx, userID, maindomain.TransactionFilter{Page: 1, PageSize: RecentTransactions})
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		fc.Recent = page.Data
		return nil
	})
	g.Go(func() error {
		budgets, err := l.budgets.ListWithSpending(gCtx, userID, true)
		if err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
		fc.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		goals, err := l.goals.List(gCtx, userID, maindomain.GoalActive)
		if err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		fc.Goals = goals
		return nil
	})
	g.Go(func() error {
		bills, err := l.bills.Upcoming(gCtx, userID, ContextBillsWindow)
		if err != nil {
			return fmt.Errorf("upcoming bills: %w", err)
		}
		fc.Bills = bills
		return nil
	})
	g.Go(func() error {
		fc.Summary = l.insights.Summary(gCtx, userID, time.Time{}, time.Time{})
		fc.Spending = l.insights.Spending(gCtx, userID, time.Time{}, time.Time{})
		return nil
	})
	g.Go(func() error {
		fc.GoalStats = l.insights.GoalProgress(gCtx, userID)
		fc.Patterns = l.insights.SpendingPatterns(gCtx, userID)
		fc.Health = l.insights.FinancialHealthScore(gCtx, userID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fc, nil
}

// RenderContext serialises the snapshot into the plain-text block sent to a
// text generator.
func RenderContext(fc *domain.FinancialContext) string {
	var b strings.Builder
	s := fc.Summary

	fmt.Fprintf(&b, "FINANCIAL SUMMARY (%s to %s)\n", s.From, s.To)
	fmt.Fprintf(&b, "Income: %s | Expenses: %s | Balance: %s | Savings rate: %s | Transactions: %d\n",
		money(s.TotalIncome), money(s.TotalExpenses), money(s.Balance), pct(s.SavingsRate), s.TransactionCount)
	fmt.Fprintf(&b, "Health score: %d/100 (%s)\n", fc.Health.Score, fc.Health.Grade)

	b.WriteString("\nRECENT TRANSACTIONS\n")
	if len(fc.Recent) == 0 {
		b.WriteString("- none\n")
	}
	for _, tx := range fc.Recent {
		fmt.Fprintf(&b, "- %s %s %s %s", date(tx.Date), tx.Kind, tx.Category, money(tx.Amount))
		if tx.Description != "" {
			fmt.Fprintf(&b, " %q", tx.Description)
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nACTIVE BUDGETS\n")
	if len(fc.Budgets) == 0 {
		b.WriteString("- none\n")
	}
	for _, x := range fc.Budgets {
		fmt.Fprintf(&b, "- %s %s: spent %s of %s (%s, %s)\n",
			x.Category, x.Period, money(x.Spent), money(x.Amount), pct(x.Percentage), x.Status)
	}

	b.WriteString("\nACTIVE GOALS\n")
	if len(fc.Goals) == 0 {
		b.WriteString("- none\n")
	}
	for _, g := range fc.Goals {
		fmt.Fprintf(&b, "- %s: %s of %s (%s)", g.Name, money(g.CurrentAmount), money(g.TargetAmount), pct(g.ProgressPercentage))
		if g.Deadline != nil {
			fmt.Fprintf(&b, ", deadline %s", date(*g.Deadline))
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nUPCOMING BILLS (%d days)\n", ContextBillsWindow)
	if len(fc.Bills) == 0 {
		b.WriteString("- none\n")
	}
	for _, bill := range fc.Bills {
		fmt.Fprintf(&b, "- %s %s due %s (%s)\n", bill.Name, money(bill.Amount), date(bill.DueDate), dueIn(bill.DaysUntilDue))
	}
	return b.String()
}
