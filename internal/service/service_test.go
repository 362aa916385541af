package service_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"
	"github.com/boddenberg/fintrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type captureExporter struct {
	rows      []domain.Transaction
	breakdown domain.SpendingBreakdown
}

func (c *captureExporter) ContentType() string   { return "text/plain" }
func (c *captureExporter) FileExtension() string { return "txt" }
func (c *captureExporter) Export(w io.Writer, txs []domain.Transaction, b domain.SpendingBreakdown) error {
	c.rows = txs
	c.breakdown = b
	_, err := io.WriteString(w, "ok")
	return err
}

// failingStore breaks the category grouping and, optionally, kind totals.
type failingStore struct {
	*memstore.Store
	failTotals bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) SumByCategory(context.Context, domain.TransactionFilter) ([]domain.CategoryTotal, error) {
	return nil, errStoreDown
}

func (f *failingStore) SumTransactions(ctx context.Context, flt domain.TransactionFilter) (domain.KindTotals, error) {
	if f.failTotals {
		return domain.KindTotals{}, errStoreDown
	}
	return f.Store.SumTransactions(ctx, flt)
}

// --- Fixture ---

var today = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

type env struct {
	store     port.Store
	events    *recordingPublisher
	exporter  *captureExporter
	txs       *service.TransactionService
	budgets   *service.BudgetService
	goals     *service.GoalService
	bills     *service.BillService
	analytics *service.AnalyticsService
}

func newEnv(t *testing.T, store port.Store) *env {
	t.Helper()
	if store == nil {
		store = memstore.New()
	}
	logger := zap.NewNop()
	e := &env{store: store, events: &recordingPublisher{}, exporter: &captureExporter{}}
	e.txs = service.NewTransactionService(store, store, e.exporter, e.events, logger).WithClock(fixedClock)
	e.budgets = service.NewBudgetService(store, store, e.events, logger)
	e.goals = service.NewGoalService(store, e.events, logger)
	e.bills = service.NewBillService(store, e.events, logger)
	e.analytics = service.NewAnalyticsService(store, e.budgets, e.goals, e.bills, observability.NewMetrics(), logger).
		WithClock(fixedClock)
	return e
}

func day(y int, m time.Month, d int) domain.Date {
	return domain.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (e *env) expense(t *testing.T, user, category string, amount float64, d domain.Date) *domain.Transaction {
	t.Helper()
	tx, err := e.txs.Create(context.Background(), user, &domain.TransactionInput{
		Kind: domain.KindExpense, Amount: amount, Category: category, Date: d,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return tx
}

func (e *env) income(t *testing.T, user, category string, amount float64, d domain.Date) *domain.Transaction {
	t.Helper()
	tx, err := e.txs.Create(context.Background(), user, &domain.TransactionInput{
		Kind: domain.KindIncome, Amount: amount, Category: category, Date: d,
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	return tx
}

// --- Budget Tracker ---

func TestBudget_SpendingWarningWithinWindow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	b, err := e.budgets.Create(ctx, "u1", &domain.BudgetInput{
		Category: "food", Amount: 300, Period: domain.PeriodMonthly, StartDate: day(2024, 3, 1),
		AlertThresholds: &domain.AlertThresholds{Warning: 80, Danger: 95},
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if got := b.EndDate.Format(domain.DateLayout); got != "2024-03-31" {
		t.Errorf("endDate = %s", got)
	}

	e.expense(t, "u1", "food", 200, day(2024, 3, 2))
	e.expense(t, "u1", "food", 50, day(2024, 3, 31))
	e.expense(t, "u1", "food", 999, day(2024, 4, 1))           // outside the window
	e.expense(t, "u1", "transportation", 40, day(2024, 3, 10)) // other category
	e.expense(t, "u2", "food", 70, day(2024, 3, 10))           // other user

	got, err := e.budgets.Get(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if got.Spent != 250 || got.Remaining != 50 || got.TransactionCount != 2 {
		t.Errorf("spent %.2f remaining %.2f count %d", got.Spent, got.Remaining, got.TransactionCount)
	}
	if got.Percentage != 83.33 {
		t.Errorf("percentage = %.2f, want 83.33", got.Percentage)
	}
	if got.Status != domain.BudgetWarning {
		t.Errorf("status = %s, want warning", got.Status)
	}
}

func TestBudget_FullySpentIsExceeded(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	b, err := e.budgets.Create(ctx, "u1", &domain.BudgetInput{Category: "travel", Amount: 100, StartDate: day(2024, 3, 1)})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	e.expense(t, "u1", "travel", 60.1, day(2024, 3, 3))
	e.expense(t, "u1", "travel", 39.9, day(2024, 3, 4))

	got, _ := e.budgets.Get(ctx, "u1", b.ID)
	if got.Status != domain.BudgetExceeded || got.Remaining != 0 {
		t.Errorf("status %s remaining %.2f, want exceeded / 0", got.Status, got.Remaining)
	}
}

func TestBudget_DuplicateAndUpdate(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	in := func() *domain.BudgetInput {
		return &domain.BudgetInput{Category: "food", Amount: 300, Period: domain.PeriodMonthly, StartDate: day(2024, 3, 1)}
	}

	first, err := e.budgets.Create(ctx, "u1", in())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var dup *domain.ErrDuplicateBudget
	if _, err := e.budgets.Create(ctx, "u1", in()); !errors.As(err, &dup) {
		t.Fatalf("second create = %v, want ErrDuplicateBudget", err)
	}
	if _, err := e.budgets.Create(ctx, "u2", in()); err != nil {
		t.Fatalf("other user should not clash: %v", err)
	}

	weekly := &domain.BudgetInput{Category: "food", Amount: 80, Period: domain.PeriodWeekly, StartDate: day(2024, 3, 1)}
	updated, err := e.budgets.Update(ctx, "u1", first.ID, weekly)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := updated.EndDate.Format(domain.DateLayout); got != "2024-03-07" {
		t.Errorf("weekly endDate = %s", got)
	}

	if _, err := e.budgets.Create(ctx, "u1", in()); err != nil {
		t.Fatalf("monthly slot should be free after update: %v", err)
	}
	var nf *domain.ErrNotFound
	if _, err := e.budgets.Update(ctx, "u2", first.ID, weekly); !errors.As(err, &nf) {
		t.Errorf("foreign update = %v, want ErrNotFound", err)
	}
}

func TestBudget_ListWithSpendingIsIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, c := range []string{"food", "housing"} {
		if _, err := e.budgets.Create(ctx, "u1", &domain.BudgetInput{Category: c, Amount: 500, StartDate: day(2024, 3, 1)}); err != nil {
			t.Fatal(err)
		}
	}
	e.expense(t, "u1", "food", 120, day(2024, 3, 5))

	first, err := e.budgets.ListWithSpending(ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.budgets.ListWithSpending(ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("listWithSpending differs between calls:\n%+v\n%+v", first, second)
	}

	summary, err := e.budgets.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalAllocated != 1000 || summary.TotalSpent != 120 || summary.UtilizationRate != 12 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TopCategories[0].Category != "food" || summary.StatusCounts[domain.BudgetGood] != 2 {
		t.Errorf("summary ordering/counts = %+v", summary)
	}
}

// --- Goal Tracker ---

func TestGoal_FullGoalAcceptsOverSaving(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	g, err := e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Laptop", TargetAmount: 1000, CurrentAmount: 1000})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if g.ProgressPercentage != 100 || g.RemainingAmount != 0 {
		t.Errorf("progress %.2f remaining %.2f", g.ProgressPercentage, g.RemainingAmount)
	}

	more, err := e.goals.AddContribution(ctx, "u1", g.ID, 50)
	if err != nil {
		t.Fatalf("over-saving should be allowed: %v", err)
	}
	if more.CurrentAmount != 1050 || more.ProgressPercentage != 100 || more.RemainingAmount != 0 {
		t.Errorf("after contribution = %+v", more)
	}

	var amountErr *domain.ErrInvalidAmount
	if _, err := e.goals.AddContribution(ctx, "u1", g.ID, 0); !errors.As(err, &amountErr) {
		t.Errorf("zero contribution = %v, want ErrInvalidAmount", err)
	}
	if _, err := e.goals.AddContribution(ctx, "u1", g.ID, -5); !errors.As(err, &amountErr) {
		t.Errorf("negative contribution = %v, want ErrInvalidAmount", err)
	}
}

func TestGoal_ContributionCompletesGoal(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	g, _ := e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Trip", TargetAmount: 500, CurrentAmount: 400})
	got, err := e.goals.AddContribution(ctx, "u1", g.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.GoalCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	types := e.events.types()
	if len(types) != 2 || types[0] != domain.EventGoalContributed || types[1] != domain.EventGoalCompleted {
		t.Errorf("events = %v", types)
	}
}

func TestGoal_ContributionRules(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	g, _ := e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Car", TargetAmount: 5000})

	var nf *domain.ErrNotFound
	if _, err := e.goals.AddContribution(ctx, "intruder", g.ID, 10); !errors.As(err, &nf) {
		t.Errorf("foreign contribution = %v, want ErrNotFound", err)
	}

	in := &domain.GoalInput{Name: "Car", TargetAmount: 5000, Status: domain.GoalCancelled}
	if _, err := e.goals.Update(ctx, "u1", g.ID, in); err != nil {
		t.Fatal(err)
	}
	var ve *domain.ErrValidation
	if _, err := e.goals.AddContribution(ctx, "u1", g.ID, 10); !errors.As(err, &ve) {
		t.Errorf("cancelled contribution = %v, want ErrValidation", err)
	}
}

func TestGoal_StatsUseUnweightedMean(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, _ = e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Small", TargetAmount: 100, CurrentAmount: 100})
	_, _ = e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Big", TargetAmount: 10000, CurrentAmount: 0})

	stats, err := e.goals.Stats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.AverageProgress != 50 {
		t.Errorf("averageProgress = %.2f, want 50", stats.AverageProgress)
	}
	if stats.TotalTarget != 10100 || stats.TotalSaved != 100 || stats.TotalGoals != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.TopGoals) != 2 || stats.TopGoals[0].Name != "Small" {
		t.Errorf("top goals = %+v", stats.TopGoals)
	}
}

// --- Bill Tracker ---

func TestBill_UpcomingWindow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	three := 3

	b, err := e.bills.Create(ctx, "u1", &domain.BillInput{
		Name: "Internet", Amount: 99.9, DueDate: day(2024, 3, 20), ReminderDays: &three,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if b.DaysUntilDue != 5 || b.InReminder {
		t.Errorf("daysUntilDue %d inReminder %v", b.DaysUntilDue, b.InReminder)
	}

	for _, tc := range []struct {
		days int
		want int
	}{{7, 1}, {5, 1}, {4, 0}, {3, 0}} {
		got, err := e.bills.Upcoming(ctx, "u1", tc.days)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.want {
			t.Errorf("upcoming(%d) = %d bills, want %d", tc.days, len(got), tc.want)
		}
	}
}

func TestBill_MarkPaidAdvancesDueDate(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	b, _ := e.bills.Create(ctx, "u1", &domain.BillInput{Name: "Rent", Amount: 1200, DueDate: day(2024, 1, 31)})
	amount := b.Amount
	paid, err := e.bills.MarkPaid(ctx, "u1", b.ID, &domain.PaymentInput{Amount: &amount})
	if err != nil {
		t.Fatalf("markPaid: %v", err)
	}

	if len(paid.PaymentHistory) != 1 {
		t.Fatalf("history = %d entries, want 1", len(paid.PaymentHistory))
	}
	rec := paid.PaymentHistory[0]
	if rec.Amount != 1200 || rec.Method != domain.MethodOther {
		t.Errorf("payment = %+v", rec)
	}
	if got := rec.CycleDueDate.Format(domain.DateLayout); got != "2024-01-31" {
		t.Errorf("cycleDueDate = %s", got)
	}
	want := domain.NextOccurrence(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), domain.FrequencyMonthly)
	if !paid.DueDate.Equal(want) || want.Format(domain.DateLayout) != "2024-02-29" {
		t.Errorf("dueDate = %s, want %s", paid.DueDate, want)
	}
	if paid.IsPaid {
		t.Error("the new cycle must start unpaid")
	}
	if paid.LastPaidDate == nil || !paid.LastPaidDate.Equal(today) {
		t.Errorf("lastPaidDate = %v", paid.LastPaidDate)
	}

	stored, _ := e.bills.Get(ctx, "u1", b.ID)
	if len(stored.PaymentHistory) != 1 || !stored.DueDate.Equal(want) {
		t.Errorf("stored bill = %+v", stored)
	}
	if types := e.events.types(); len(types) != 1 || types[0] != domain.EventBillPaid {
		t.Errorf("events = %v", types)
	}
}

func TestBill_StateMachine(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	b, _ := e.bills.Create(ctx, "u1", &domain.BillInput{Name: "Gym", Amount: 40, DueDate: day(2024, 3, 25)})

	var it *domain.ErrInvalidTransition
	if _, err := e.bills.Resume(ctx, "u1", b.ID); !errors.As(err, &it) {
		t.Errorf("resume active = %v, want ErrInvalidTransition", err)
	}
	if _, err := e.bills.Pause(ctx, "u1", b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.bills.MarkPaid(ctx, "u1", b.ID, &domain.PaymentInput{}); !errors.As(err, &it) {
		t.Errorf("pay paused = %v, want ErrInvalidTransition", err)
	}
	if v, err := e.bills.Resume(ctx, "u1", b.ID); err != nil || v.Status != domain.BillActive {
		t.Fatalf("resume = %v, %v", v, err)
	}
	if v, err := e.bills.Cancel(ctx, "u1", b.ID); err != nil || v.Status != domain.BillCancelled {
		t.Fatalf("cancel = %v, %v", v, err)
	}
	if _, err := e.bills.Resume(ctx, "u1", b.ID); !errors.As(err, &it) {
		t.Errorf("resume cancelled = %v, want ErrInvalidTransition", err)
	}
	if _, err := e.bills.Cancel(ctx, "u1", b.ID); !errors.As(err, &it) {
		t.Errorf("cancel cancelled = %v, want ErrInvalidTransition", err)
	}
}

func TestBill_OverdueAndStats(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	late, _ := e.bills.Create(ctx, "u1", &domain.BillInput{Name: "Water", Amount: 30, DueDate: day(2024, 3, 10)})
	_, _ = e.bills.Create(ctx, "u1", &domain.BillInput{Name: "Phone", Amount: 60, DueDate: day(2024, 3, 30)})
	_, _ = e.bills.Create(ctx, "u1", &domain.BillInput{
		Name: "Insurance", Amount: 1200, DueDate: day(2024, 6, 1), Frequency: domain.FrequencyYearly, Category: "insurance",
	})

	overdue, err := e.bills.Overdue(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 1 || overdue[0].ID != late.ID || !overdue[0].IsOverdue || overdue[0].DaysUntilDue != -5 {
		t.Fatalf("overdue = %+v", overdue)
	}

	stats, err := e.bills.Stats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalBills != 3 || stats.OverdueCount != 1 || stats.OverdueAmount != 30 {
		t.Errorf("overdue stats = %+v", stats)
	}
	if stats.UpcomingCount != 1 || stats.UpcomingAmount != 60 {
		t.Errorf("upcoming stats = %+v", stats)
	}
	if stats.MonthlyTotal != 190 {
		t.Errorf("monthlyTotal = %.2f, want 190", stats.MonthlyTotal)
	}

	if _, err := e.bills.MarkPaid(ctx, "u1", late.ID, &domain.PaymentInput{}); err != nil {
		t.Fatal(err)
	}
	overdue, _ = e.bills.Overdue(ctx, "u1")
	if len(overdue) != 0 {
		t.Errorf("paid bill still overdue: %+v", overdue)
	}
	stats, _ = e.bills.Stats(ctx, "u1")
	if stats.PaidThisMonth != 30 || stats.PaymentsThisMonth != 1 {
		t.Errorf("paid stats = %+v", stats)
	}
}

// --- Ledger ---

func TestTransactions_KindIsImmutable(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	tx := e.expense(t, "u1", "food", 10, day(2024, 3, 1))

	var ve *domain.ErrValidation
	_, err := e.txs.Update(ctx, "u1", tx.ID, &domain.TransactionInput{Kind: domain.KindIncome, Amount: 10, Category: "salary"})
	if !errors.As(err, &ve) || ve.Field != "kind" {
		t.Fatalf("kind change = %v, want ErrValidation on kind", err)
	}

	updated, err := e.txs.Update(ctx, "u1", tx.ID, &domain.TransactionInput{Amount: 12.5, Category: "Shopping", Date: day(2024, 3, 2)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Kind != domain.KindExpense || updated.Category != "shopping" || !updated.CreatedAt.Equal(tx.CreatedAt) {
		t.Errorf("updated = %+v", updated)
	}
}

func TestTransactions_BulkIsAllOrNothing(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	in := &domain.BulkTransactionInput{Transactions: []domain.TransactionInput{
		{Kind: domain.KindExpense, Amount: 10, Category: "food"},
		{Kind: domain.KindExpense, Amount: -1, Category: "food"},
	}}
	var ae *domain.ErrInvalidAmount
	if _, err := e.txs.BulkCreate(ctx, "u1", in); !errors.As(err, &ae) || ae.Field != "transactions[1].amount" {
		t.Fatalf("bulk = %v, want ErrInvalidAmount on transactions[1].amount", err)
	}
	page, _ := e.txs.List(ctx, "u1", domain.TransactionFilter{})
	if page.Total != 0 {
		t.Fatalf("partial bulk insert: %d rows", page.Total)
	}

	in.Transactions[1].Amount = 5
	out, err := e.txs.BulkCreate(ctx, "u1", in)
	if err != nil || len(out) != 2 {
		t.Fatalf("bulk = %d, %v", len(out), err)
	}

	tooMany := &domain.BulkTransactionInput{Transactions: make([]domain.TransactionInput, domain.MaxBulkTransactions+1)}
	var ve *domain.ErrValidation
	if _, err := e.txs.BulkCreate(ctx, "u1", tooMany); !errors.As(err, &ve) {
		t.Errorf("oversized bulk = %v, want ErrValidation", err)
	}
}

func TestTransactions_GoalLinks(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	g, _ := e.goals.Create(ctx, "u1", &domain.GoalInput{Name: "Fund", TargetAmount: 1000, CurrentAmount: 100})

	var ve *domain.ErrValidation
	_, err := e.txs.Create(ctx, "u2", &domain.TransactionInput{Kind: domain.KindIncome, Amount: 5, Category: "gift", GoalID: g.ID})
	if !errors.As(err, &ve) || ve.Field != "goalId" {
		t.Fatalf("foreign goal link = %v", err)
	}

	for _, amt := range []float64{150, 75.25} {
		if _, err := e.txs.Create(ctx, "u1", &domain.TransactionInput{
			Kind: domain.KindIncome, Amount: amt, Category: "salary", GoalID: g.ID, Date: day(2024, 3, 1),
		}); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = e.txs.Create(ctx, "u1", &domain.TransactionInput{
		Kind: domain.KindExpense, Amount: 20, Category: "savings", GoalID: g.ID, Date: day(2024, 3, 2),
	})

	view, err := e.txs.ByGoal(ctx, "u1", g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Transactions) != 3 || view.LinkedSaved != 225.25 || view.Difference != 125.25 {
		t.Errorf("goal view = %+v", view)
	}
	stored, _ := e.goals.Get(ctx, "u1", g.ID)
	if stored.CurrentAmount != 100 {
		t.Errorf("linked transactions must not move currentAmount, got %.2f", stored.CurrentAmount)
	}
}

func TestTransactions_StatsAndExport(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.income(t, "u1", "salary", 4000, day(2024, 3, 1))
	e.expense(t, "u1", "housing", 1500, day(2024, 3, 2))
	e.expense(t, "u1", "food", 500, day(2024, 3, 3))
	e.expense(t, "u1", "food", 100, day(2024, 2, 3))

	stats, err := e.txs.Stats(ctx, "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.From != "2024-03-01" || stats.TotalIncome != 4000 || stats.TotalExpenses != 2000 || stats.Balance != 2000 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ExpenseByCategory) != 2 || stats.ExpenseByCategory[0].Percentage != 75 {
		t.Errorf("expense categories = %+v", stats.ExpenseByCategory)
	}

	var sink countingWriter
	if err := e.txs.Export(ctx, "u1", day(2024, 2, 1).Time, day(2024, 3, 31).Time, &sink); err != nil {
		t.Fatal(err)
	}
	if len(e.exporter.rows) != 4 || !e.exporter.rows[0].Date.Before(e.exporter.rows[3].Date) {
		t.Errorf("export rows = %+v", e.exporter.rows)
	}
	if e.exporter.breakdown.Total != 2100 || e.exporter.breakdown.Categories[0].Category != "housing" {
		t.Errorf("export breakdown = %+v", e.exporter.breakdown)
	}
}

type countingWriter struct{ n int }

func (s *countingWriter) Write(p []byte) (int, error) {
	s.n += len(p)
	return len(p), nil
}

func TestEvents_PublishFailureDoesNotFailMutation(t *testing.T) {
	e := newEnv(t, nil)
	e.events.err = errors.New("broker down")

	if _, err := e.txs.Create(context.Background(), "u1", &domain.TransactionInput{
		Kind: domain.KindExpense, Amount: 3, Category: "food",
	}); err != nil {
		t.Fatalf("create with failing broker = %v", err)
	}
}

func TestOnChange_FiresForEveryMutation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	logger := zap.NewNop()
	txs := service.NewTransactionService(store, store, &captureExporter{}, nil, logger)
	budgets := service.NewBudgetService(store, store, nil, logger)
	goals := service.NewGoalService(store, nil, logger)
	bills := service.NewBillService(store, nil, logger)

	var changed []string
	record := func(userID string) { changed = append(changed, userID) }
	txs.OnChange(record)
	budgets.OnChange(record)
	goals.OnChange(record)
	bills.OnChange(record)

	step := func(name string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(changed) == 0 || changed[len(changed)-1] != "u1" {
			t.Fatalf("%s did not report a change for u1: %v", name, changed)
		}
		changed = changed[:0]
	}

	tx, err := txs.Create(ctx, "u1", &domain.TransactionInput{Kind: domain.KindExpense, Amount: 10, Category: "food"})
	step("create transaction", err)
	_, err = txs.Update(ctx, "u1", tx.ID, &domain.TransactionInput{Kind: domain.KindExpense, Amount: 12, Category: "food"})
	step("update transaction", err)
	step("delete transaction", txs.Delete(ctx, "u1", tx.ID))

	b, err := budgets.Create(ctx, "u1", &domain.BudgetInput{Category: "food", Amount: 100})
	step("create budget", err)
	_, err = budgets.Update(ctx, "u1", b.ID, &domain.BudgetInput{Category: "food", Amount: 200})
	step("update budget", err)
	step("delete budget", budgets.Delete(ctx, "u1", b.ID))

	g, err := goals.Create(ctx, "u1", &domain.GoalInput{Name: "Trip", TargetAmount: 500})
	step("create goal", err)
	_, err = goals.AddContribution(ctx, "u1", g.ID, 50)
	step("contribute", err)
	_, err = goals.Update(ctx, "u1", g.ID, &domain.GoalInput{Name: "Trip", TargetAmount: 600, CurrentAmount: 50})
	step("update goal", err)
	step("delete goal", goals.Delete(ctx, "u1", g.ID))

	bill, err := bills.Create(ctx, "u1", &domain.BillInput{Name: "Gym", Amount: 30, DueDate: day(2024, 4, 1)})
	step("create bill", err)
	_, err = bills.Update(ctx, "u1", bill.ID, &domain.BillInput{Name: "Gym", Amount: 35})
	step("update bill", err)
	_, err = bills.MarkPaid(ctx, "u1", bill.ID, &domain.PaymentInput{})
	step("mark paid", err)
	_, err = bills.Pause(ctx, "u1", bill.ID)
	step("pause bill", err)
	step("delete bill", bills.Delete(ctx, "u1", bill.ID))

	if _, err := budgets.Create(ctx, "u1", &domain.BudgetInput{Category: "food", Amount: 0.004}); err == nil {
		t.Fatal("expected a sub-cent budget to be rejected")
	}
	if len(changed) != 0 {
		t.Errorf("a rejected mutation reported changes: %v", changed)
	}
}

// --- Aggregator ---

func TestAnalytics_EmptyUserOverview(t *testing.T) {
	e := newEnv(t, nil)

	ov, err := e.analytics.Overview(context.Background(), "nobody", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	s := ov.Summary
	if s.TotalIncome != 0 || s.TotalExpenses != 0 || s.Balance != 0 || s.SavingsRate != 0 {
		t.Errorf("summary = %+v", s)
	}
	if len(ov.Trends) != service.DefaultTrendMonths || ov.Trends[11].Month != "2024-03" {
		t.Errorf("trends = %+v", ov.Trends)
	}
	if len(ov.Budgets) != 0 || len(ov.Bills) != 0 || ov.Goals.TotalGoals != 0 || ov.HealthScore == nil {
		t.Errorf("overview = %+v", ov)
	}
}

func TestAnalytics_OverviewComposesEverything(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.income(t, "u1", "salary", 5000, day(2024, 3, 1))
	e.expense(t, "u1", "housing", 2000, day(2024, 3, 2))
	e.expense(t, "u1", "food", 500, day(2024, 3, 3))
	e.expense(t, "u1", "food", 300, day(2024, 1, 3))
	_, _ = e.budgets.Create(ctx, "u1", &domain.BudgetInput{Category: "food", Amount: 400, StartDate: day(2024, 3, 1)})
	_, _ = e.bills.Create(ctx, "u1", &domain.BillInput{Name: "Power", Amount: 80, DueDate: day(2024, 4, 1)})

	ov, err := e.analytics.Overview(ctx, "u1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if ov.Summary.Balance != 2500 || ov.Summary.SavingsRate != 50 {
		t.Errorf("summary = %+v", ov.Summary)
	}
	if ov.Spending.Total != 2500 || ov.Spending.TopCategories[0].Category != "housing" {
		t.Errorf("spending = %+v", ov.Spending)
	}
	if ov.Trends[9].Expenses != 300 || ov.Trends[11].Income != 5000 {
		t.Errorf("trends = %+v", ov.Trends)
	}
	if len(ov.Budgets) != 1 || ov.Budgets[0].Status != domain.BudgetExceeded {
		t.Errorf("budgets = %+v", ov.Budgets)
	}
	if len(ov.Bills) != 1 || ov.Bills[0].Name != "Power" {
		t.Errorf("bills = %+v", ov.Bills)
	}
}

func TestAnalytics_OverviewPropagatesSubFetchFailure(t *testing.T) {
	e := newEnv(t, &failingStore{Store: memstore.New()})

	_, err := e.analytics.Overview(context.Background(), "u1", time.Time{}, time.Time{})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("overview error = %v, want store failure", err)
	}
}

func TestAnalytics_AggregatesDegradeToZero(t *testing.T) {
	e := newEnv(t, &failingStore{Store: memstore.New(), failTotals: true})
	ctx := context.Background()
	_, _ = e.budgets.Create(ctx, "u1", &domain.BudgetInput{Category: "food", Amount: 400, StartDate: day(2024, 3, 1)})

	u := e.analytics.BudgetUtilization(ctx, "u1")
	if u.TotalAllocated != 0 || u.BudgetCount != 0 || len(u.StatusCounts) != 4 {
		t.Errorf("utilization = %+v", u)
	}
	h := e.analytics.FinancialHealthScore(ctx, "u1")
	if h.Score != 0 || h.Grade != "poor" {
		t.Errorf("health = %+v", h)
	}
}

func TestAnalytics_HealthScore(t *testing.T) {
	e := newEnv(t, nil)
	e.income(t, "u1", "salary", 1000, day(2024, 3, 1))
	e.expense(t, "u1", "food", 700, day(2024, 3, 2))

	h := e.analytics.FinancialHealthScore(context.Background(), "u1")
	// savings 30% -> 30, no budgets -> 25, no goals -> 5, bills 15, one income source -> 5
	if h.Score != 80 || h.Grade != "excellent" {
		t.Errorf("health = %+v", h)
	}
	if len(h.Components) != 5 {
		t.Errorf("components = %d", len(h.Components))
	}
}

func TestAnalytics_SpendingPatterns(t *testing.T) {
	e := newEnv(t, nil)
	e.expense(t, "u1", "food", 30, day(2024, 3, 11)) // Monday
	e.expense(t, "u1", "food", 60, day(2024, 3, 13)) // Wednesday
	e.expense(t, "u1", "food", 30, day(2024, 3, 4))  // Monday
	e.expense(t, "u1", "food", 500, day(2024, 1, 1)) // outside window
	e.expense(t, "u1", "food", 30, day(2024, 2, 15)) // first day of the 30-day window
	e.expense(t, "u1", "food", 90, day(2024, 2, 14)) // one day before it

	p := e.analytics.SpendingPatterns(context.Background(), "u1")
	if p.TotalSpent != 150 || p.DailyAverage != 5 || p.Transactions != 4 {
		t.Errorf("patterns = %+v", p)
	}
	// Monday and Wednesday tie at 60; the lower weekday wins.
	if p.PeakWeekday != 1 || p.PeakDayName != "Monday" {
		t.Errorf("peak = %d %s", p.PeakWeekday, p.PeakDayName)
	}
}
