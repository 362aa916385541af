// Package memstore is a thread-safe in-memory record store. It backs local
// development and tests; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

// Store keeps every collection in maps keyed by id.
type Store struct {
	mu sync.RWMutex

	transactions map[string]domain.Transaction
	budgets      map[string]domain.Budget
	goals        map[string]domain.Goal
	bills        map[string]domain.Bill
	users        map[string]domain.User
}

// New creates an empty store.
func New() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		budgets:      make(map[string]domain.Budget),
		goals:        make(map[string]domain.Goal),
		bills:        make(map[string]domain.Bill),
		users:        make(map[string]domain.User),
	}
}

func (s *Store) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

// ============================================================
// Transactions
// ============================================================

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = cloneTx(*tx)
	return nil
}

func (s *Store) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.transactions[tx.ID] = cloneTx(*tx)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, nil
	}
	out := cloneTx(tx)
	return &out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[tx.ID]
	if !ok || cur.UserID != tx.UserID {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	s.transactions[tx.ID] = cloneTx(*tx)
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(s.transactions, id)
	return nil
}

// matching returns copies of every transaction accepted by f, unsorted.
func (s *Store) matching(f domain.TransactionFilter) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0)
	for _, tx := range s.transactions {
		if f.Matches(&tx) {
			out = append(out, cloneTx(tx))
		}
	}
	return out
}

func (s *Store) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	rows := s.matching(f)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !f.Asc {
			a, b = b, a
		}
		if f.SortBy == "amount" && a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})

	total := len(rows)
	start := f.Skip()
	if start > total {
		start = total
	}
	end := total
	if f.PageSize > 0 && start+f.PageSize < total {
		end = start + f.PageSize
	}
	return rows[start:end], total, nil
}

func (s *Store) SumTransactions(ctx context.Context, f domain.TransactionFilter) (domain.KindTotals, error) {
	var income, expenses []float64
	for _, tx := range s.matching(f) {
		if tx.Kind == domain.KindIncome {
			income = append(income, tx.Amount)
		} else {
			expenses = append(expenses, tx.Amount)
		}
	}
	return domain.KindTotals{
		Income:       domain.SumAmounts(income...),
		Expenses:     domain.SumAmounts(expenses...),
		IncomeCount:  len(income),
		ExpenseCount: len(expenses),
	}, nil
}

func (s *Store) SumByCategory(ctx context.Context, f domain.TransactionFilter) ([]domain.CategoryTotal, error) {
	type key struct {
		kind     domain.Kind
		category string
	}
	groups := make(map[key]*domain.CategoryTotal)
	order := make([]key, 0)
	for _, tx := range s.matching(f) {
		k := key{tx.Kind, tx.Category}
		g, ok := groups[k]
		if !ok {
			g = &domain.CategoryTotal{Kind: tx.Kind, Category: tx.Category}
			groups[k] = g
			order = append(order, k)
		}
		g.Total = domain.SumAmounts(g.Total, tx.Amount)
		g.Count++
	}

	out := make([]domain.CategoryTotal, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].Category < out[j].Category
		}
		return out[i].Total > out[j].Total
	})
	return out, nil
}

func (s *Store) SumByMonth(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthKindTotal, error) {
	type key struct {
		year  int
		month time.Month
		kind  domain.Kind
	}
	groups := make(map[key]*domain.MonthKindTotal)
	for _, tx := range s.matching(domain.TransactionFilter{UserID: userID, From: from, To: to}) {
		d := tx.Date.UTC()
		k := key{d.Year(), d.Month(), tx.Kind}
		g, ok := groups[k]
		if !ok {
			g = &domain.MonthKindTotal{Year: k.year, Month: k.month, Kind: k.kind}
			groups[k] = g
		}
		g.Total = domain.SumAmounts(g.Total, tx.Amount)
		g.Count++
	}

	out := make([]domain.MonthKindTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// ============================================================
// Budgets
// ============================================================

func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dup := s.budgetClash(b); dup {
		return duplicateOf(b)
	}
	s.budgets[b.ID] = *b
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) FindBudget(ctx context.Context, userID, category string, period domain.Period, start time.Time) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start = domain.DateOnly(start)
	for _, b := range s.budgets {
		if b.UserID == userID && b.Category == category && b.Period == period && b.StartDate.Equal(start) {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID != userID || (activeOnly && !b.IsActive) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.UserID != b.UserID {
		return &domain.ErrNotFound{Resource: "budget", ID: b.ID}
	}
	if s.budgetClash(b) {
		return duplicateOf(b)
	}
	s.budgets[b.ID] = *b
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	delete(s.budgets, id)
	return nil
}

// budgetClash reports another budget with the same unique key. Caller holds mu.
func (s *Store) budgetClash(b *domain.Budget) bool {
	for id, o := range s.budgets {
		if id != b.ID && o.UserID == b.UserID && o.Category == b.Category &&
			o.Period == b.Period && o.StartDate.Equal(b.StartDate) {
			return true
		}
	}
	return false
}

func duplicateOf(b *domain.Budget) error {
	return &domain.ErrDuplicateBudget{
		Category:  b.Category,
		Period:    string(b.Period),
		StartDate: b.StartDate.Format(domain.DateLayout),
	}
}

// ============================================================
// Goals
// ============================================================

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = cloneGoal(*g)
	return nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	g = cloneGoal(g)
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Goal, 0)
	for _, g := range s.goals {
		if g.UserID != userID || (status != "" && g.Status != status) {
			continue
		}
		out = append(out, cloneGoal(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[g.ID]
	if !ok || cur.UserID != g.UserID {
		return &domain.ErrNotFound{Resource: "goal", ID: g.ID}
	}
	s.goals[g.ID] = cloneGoal(*g)
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "goal", ID: id}
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) IncrementGoal(ctx context.Context, userID, id string, amount float64) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	g.CurrentAmount = domain.SumAmounts(g.CurrentAmount, amount)
	g.UpdatedAt = time.Now().UTC()
	s.goals[id] = g
	g = cloneGoal(g)
	return &g, nil
}

// ============================================================
// Bills
// ============================================================

func (s *Store) CreateBill(ctx context.Context, b *domain.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = cloneBill(*b)
	return nil
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[id]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	out := cloneBill(b)
	return &out, nil
}

func (s *Store) ListBills(ctx context.Context, f domain.BillFilter) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Bill, 0)
	for _, b := range s.bills {
		if f.Matches(&b) {
			out = append(out, cloneBill(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if !strings.EqualFold(out[i].Name, out[j].Name) {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateBill(ctx context.Context, b *domain.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bills[b.ID]
	if !ok || cur.UserID != b.UserID {
		return &domain.ErrNotFound{Resource: "bill", ID: b.ID}
	}
	s.bills[b.ID] = cloneBill(*b)
	return nil
}

func (s *Store) DeleteBill(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bills[id]
	if !ok || cur.UserID != userID {
		return &domain.ErrNotFound{Resource: "bill", ID: id}
	}
	delete(s.bills, id)
	return nil
}

// ============================================================
// Users
// ============================================================

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.users {
		if o.Email == u.Email {
			return &domain.ErrConflict{Message: "e-mail already registered"}
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// slices and pointers are copied so callers never alias stored state.

func cloneTx(tx domain.Transaction) domain.Transaction {
	tags := make([]string, len(tx.Tags))
	copy(tags, tx.Tags)
	tx.Tags = tags
	return tx
}

func cloneGoal(g domain.Goal) domain.Goal {
	if g.Deadline != nil {
		d := *g.Deadline
		g.Deadline = &d
	}
	return g
}

func cloneBill(b domain.Bill) domain.Bill {
	history := make([]domain.PaymentRecord, len(b.PaymentHistory))
	copy(history, b.PaymentHistory)
	b.PaymentHistory = history
	if b.LastPaidDate != nil {
		t := *b.LastPaidDate
		b.LastPaidDate = &t
	}
	return b
}
