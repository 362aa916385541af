// Package storetest holds a behavioural suite every port.Store adapter runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"github.com/google/uuid"
)

// Run exercises store against the port contracts. Each subtest works under a
// fresh user id so a shared database does not leak between runs.
func Run(t *testing.T, store port.Store) {
	t.Helper()
	t.Run("TransactionsCRUD", func(t *testing.T) { transactionsCRUD(t, store) })
	t.Run("TransactionListing", func(t *testing.T) { transactionListing(t, store) })
	t.Run("TransactionAggregates", func(t *testing.T) { transactionAggregates(t, store) })
	t.Run("BudgetUniqueness", func(t *testing.T) { budgetUniqueness(t, store) })
	t.Run("GoalIncrement", func(t *testing.T) { goalIncrement(t, store) })
	t.Run("BillHistory", func(t *testing.T) { billHistory(t, store) })
	t.Run("Users", func(t *testing.T) { users(t, store) })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTx(userID string, kind domain.Kind, amount float64, category string, date time.Time) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Transaction{
		ID: uuid.NewString(), UserID: userID, Kind: kind, Amount: amount, Category: category,
		Date: date, Tags: []string{}, CreatedAt: now, UpdatedAt: now,
	}
}

func transactionsCRUD(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()

	tx := newTx(user, domain.KindExpense, 42.5, "food", day(2024, 3, 10))
	tx.Description = "Groceries"
	tx.Tags = []string{"weekly", "market"}
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := s.GetTransaction(ctx, user, tx.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTransaction = %v, %v", got, err)
	}
	if got.Amount != 42.5 || got.Category != "food" || len(got.Tags) != 2 || !got.Date.Equal(tx.Date) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	other, err := s.GetTransaction(ctx, uuid.NewString(), tx.ID)
	if err != nil || other != nil {
		t.Errorf("foreign GetTransaction = %v, %v, want nil, nil", other, err)
	}

	got.Amount = 50
	got.Description = "Groceries and snacks"
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	again, _ := s.GetTransaction(ctx, user, tx.ID)
	if again.Amount != 50 || again.Description != "Groceries and snacks" {
		t.Errorf("update not persisted: %+v", again)
	}

	if err := s.DeleteTransaction(ctx, user, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	var nf *domain.ErrNotFound
	if err := s.DeleteTransaction(ctx, user, tx.ID); !errors.As(err, &nf) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func transactionListing(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()

	batch := []*domain.Transaction{
		newTx(user, domain.KindExpense, 10, "food", day(2024, 1, 5)),
		newTx(user, domain.KindExpense, 30, "transportation", day(2024, 1, 6)),
		newTx(user, domain.KindExpense, 20, "food", day(2024, 1, 7)),
		newTx(user, domain.KindIncome, 1000, "salary", day(2024, 1, 1)),
	}
	batch[2].Description = "Lunch with TEAM"
	if err := s.CreateTransactions(ctx, batch); err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}

	rows, total, err := s.ListTransactions(ctx, domain.TransactionFilter{UserID: user, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if total != 4 || len(rows) != 2 {
		t.Fatalf("total=%d len=%d, want 4 and 2", total, len(rows))
	}
	if !rows[0].Date.Equal(day(2024, 1, 7)) {
		t.Errorf("default order should be newest first, got %v", rows[0].Date)
	}

	rows, _, _ = s.ListTransactions(ctx, domain.TransactionFilter{UserID: user, Kind: domain.KindExpense, SortBy: "amount", Asc: true})
	if len(rows) != 3 || rows[0].Amount != 10 || rows[2].Amount != 30 {
		t.Errorf("amount ascending = %+v", rows)
	}

	rows, total, _ = s.ListTransactions(ctx, domain.TransactionFilter{UserID: user, Search: "team"})
	if total != 1 || len(rows) != 1 || rows[0].Amount != 20 {
		t.Errorf("search = %d rows, total %d", len(rows), total)
	}

	rows, total, _ = s.ListTransactions(ctx, domain.TransactionFilter{
		UserID: user, From: day(2024, 1, 6), To: domain.EndOfDay(day(2024, 1, 6)),
	})
	if total != 1 || rows[0].Category != "transportation" {
		t.Errorf("inclusive date range = %+v", rows)
	}
}

func transactionAggregates(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()

	batch := []*domain.Transaction{
		newTx(user, domain.KindIncome, 5000, "salary", day(2024, 1, 1)),
		newTx(user, domain.KindExpense, 0.1, "food", day(2024, 1, 2)),
		newTx(user, domain.KindExpense, 0.2, "food", day(2024, 1, 3)),
		newTx(user, domain.KindExpense, 800, "housing", day(2024, 1, 4)),
		newTx(user, domain.KindExpense, 150, "food", day(2024, 2, 10)),
	}
	if err := s.CreateTransactions(ctx, batch); err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}

	jan := domain.TransactionFilter{UserID: user, From: day(2024, 1, 1), To: domain.EndOfDay(day(2024, 1, 31))}
	totals, err := s.SumTransactions(ctx, jan)
	if err != nil {
		t.Fatalf("SumTransactions: %v", err)
	}
	if totals.Income != 5000 || totals.Expenses != 800.3 || totals.Count() != 4 {
		t.Errorf("totals = %+v", totals)
	}

	jan.Kind = domain.KindExpense
	cats, err := s.SumByCategory(ctx, jan)
	if err != nil {
		t.Fatalf("SumByCategory: %v", err)
	}
	if len(cats) != 2 || cats[0].Category != "housing" || cats[1].Total != 0.3 || cats[1].Count != 2 {
		t.Errorf("categories = %+v", cats)
	}

	months, err := s.SumByMonth(ctx, user, day(2024, 1, 1), domain.EndOfDay(day(2024, 2, 29)))
	if err != nil {
		t.Fatalf("SumByMonth: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("months = %+v, want 3 rows", months)
	}
	last := months[2]
	if last.Month != time.February || last.Kind != domain.KindExpense || last.Total != 150 {
		t.Errorf("february row = %+v", last)
	}
}

func budgetUniqueness(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	mk := func(category string) *domain.Budget {
		start := day(2024, 3, 1)
		return &domain.Budget{
			ID: uuid.NewString(), UserID: user, Category: category, Amount: 500,
			Period: domain.PeriodMonthly, StartDate: start, EndDate: domain.BudgetEndDate(start, domain.PeriodMonthly),
			AlertThresholds: domain.DefaultThresholds(), IsActive: true, CreatedAt: now, UpdatedAt: now,
		}
	}

	food := mk("food")
	if err := s.CreateBudget(ctx, food); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	var dup *domain.ErrDuplicateBudget
	if err := s.CreateBudget(ctx, mk("food")); !errors.As(err, &dup) {
		t.Fatalf("duplicate create = %v, want ErrDuplicateBudget", err)
	}

	travel := mk("travel")
	if err := s.CreateBudget(ctx, travel); err != nil {
		t.Fatalf("CreateBudget travel: %v", err)
	}
	travel.Category = "food"
	if err := s.UpdateBudget(ctx, travel); !errors.As(err, &dup) {
		t.Errorf("clashing update = %v, want ErrDuplicateBudget", err)
	}

	found, err := s.FindBudget(ctx, user, "food", domain.PeriodMonthly, day(2024, 3, 1))
	if err != nil || found == nil || found.ID != food.ID {
		t.Errorf("FindBudget = %+v, %v", found, err)
	}

	list, err := s.ListBudgets(ctx, user, true)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListBudgets = %d, %v", len(list), err)
	}
	if list[0].Category != "food" || !list[0].EndDate.Equal(day(2024, 3, 31)) {
		t.Errorf("first budget = %+v", list[0])
	}
}

func goalIncrement(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)
	deadline := day(2025, 12, 31)

	g := &domain.Goal{
		ID: uuid.NewString(), UserID: user, Name: "Emergency fund", TargetAmount: 1000, CurrentAmount: 100,
		Priority: domain.PriorityHigh, Deadline: &deadline, Status: domain.GoalActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	updated, err := s.IncrementGoal(ctx, user, g.ID, 250.25)
	if err != nil || updated == nil {
		t.Fatalf("IncrementGoal = %v, %v", updated, err)
	}
	if updated.CurrentAmount != 350.25 {
		t.Errorf("CurrentAmount = %v, want 350.25", updated.CurrentAmount)
	}
	if updated.Deadline == nil || !updated.Deadline.Equal(deadline) {
		t.Errorf("deadline lost: %v", updated.Deadline)
	}

	missing, err := s.IncrementGoal(ctx, uuid.NewString(), g.ID, 10)
	if err != nil || missing != nil {
		t.Errorf("foreign IncrementGoal = %v, %v, want nil, nil", missing, err)
	}

	active, _ := s.ListGoals(ctx, user, domain.GoalActive)
	paused, _ := s.ListGoals(ctx, user, domain.GoalPaused)
	if len(active) != 1 || len(paused) != 0 {
		t.Errorf("status filter: active=%d paused=%d", len(active), len(paused))
	}
}

func billHistory(t *testing.T, s port.Store) {
	ctx := context.Background()
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	mk := func(name string, due time.Time) *domain.Bill {
		return &domain.Bill{
			ID: uuid.NewString(), UserID: user, Name: name, Amount: 120, Category: "utilities",
			DueDate: due, Frequency: domain.FrequencyMonthly, ReminderDays: domain.DefaultReminderDays,
			Status: domain.BillActive, PaymentHistory: []domain.PaymentRecord{}, CreatedAt: now, UpdatedAt: now,
		}
	}
	power := mk("Power", day(2024, 1, 31))
	water := mk("water", day(2024, 1, 15))
	internet := mk("Internet", day(2024, 1, 15))
	for _, b := range []*domain.Bill{power, water, internet} {
		if err := s.CreateBill(ctx, b); err != nil {
			t.Fatalf("CreateBill: %v", err)
		}
	}

	power.MarkPaid(uuid.NewString(), domain.PaymentInput{Method: domain.MethodCard}, now)
	if err := s.UpdateBill(ctx, power); err != nil {
		t.Fatalf("UpdateBill: %v", err)
	}

	got, err := s.GetBill(ctx, user, power.ID)
	if err != nil || got == nil {
		t.Fatalf("GetBill = %v, %v", got, err)
	}
	if len(got.PaymentHistory) != 1 || !got.PaymentHistory[0].CycleDueDate.Equal(day(2024, 1, 31)) {
		t.Errorf("history = %+v", got.PaymentHistory)
	}
	if !got.DueDate.Equal(day(2024, 2, 29)) || got.LastPaidDate == nil {
		t.Errorf("due=%v lastPaid=%v", got.DueDate, got.LastPaidDate)
	}

	list, err := s.ListBills(ctx, domain.BillFilter{UserID: user, Status: domain.BillActive})
	if err != nil || len(list) != 3 {
		t.Fatalf("ListBills = %d, %v", len(list), err)
	}
	if list[0].Name != "Internet" || list[1].Name != "water" || list[2].Name != "Power" {
		t.Errorf("order = %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}

	window, _ := s.ListBills(ctx, domain.BillFilter{UserID: user, DueFrom: day(2024, 1, 1), DueTo: day(2024, 1, 20)})
	if len(window) != 2 {
		t.Errorf("due window = %d bills, want 2", len(window))
	}

	if err := s.DeleteBill(ctx, user, water.ID); err != nil {
		t.Fatalf("DeleteBill: %v", err)
	}
	if b, _ := s.GetBill(ctx, user, water.ID); b != nil {
		t.Errorf("deleted bill still readable")
	}
}

func users(t *testing.T, s port.Store) {
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	u := &domain.User{
		ID: uuid.NewString(), Name: "Ana", Email: email, PasswordHash: "hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	var conflict *domain.ErrConflict
	dup := *u
	dup.ID = uuid.NewString()
	if err := s.CreateUser(ctx, &dup); !errors.As(err, &conflict) {
		t.Errorf("duplicate email = %v, want ErrConflict", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, email)
	if err != nil || byEmail == nil || byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail = %+v, %v", byEmail, err)
	}
	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil || byID == nil || byID.PasswordHash != "hash" {
		t.Errorf("GetUserByID = %+v, %v", byID, err)
	}
	none, err := s.GetUserByID(ctx, uuid.NewString())
	if err != nil || none != nil {
		t.Errorf("missing user = %+v, %v", none, err)
	}
}
