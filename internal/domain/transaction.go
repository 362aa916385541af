package domain

import (
	"strings"
	"time"
)

// ============================================================
// Transaction Ledger
// ============================================================

// Kind distinguishes income from expense entries.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// IncomeCategories lists the categories allowed for income entries.
var IncomeCategories = []string{
	"salary", "freelance", "business", "investment", "rental", "gift", "refund", "other_income",
}

// ExpenseCategories lists the categories allowed for expense entries and budgets.
var ExpenseCategories = []string{
	"food", "transportation", "housing", "utilities", "healthcare", "entertainment",
	"shopping", "education", "personal_care", "insurance", "debt", "savings",
	"travel", "subscriptions", "other_expense",
}

// IsCategoryOf reports whether category belongs to kind's category set.
func IsCategoryOf(kind Kind, category string) bool {
	set := ExpenseCategories
	if kind == KindIncome {
		set = IncomeCategories
	}
	for _, c := range set {
		if c == category {
			return true
		}
	}
	return false
}

// Transaction is a single income or expense record.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Kind        Kind      `json:"kind"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	GoalID      string    `json:"goalId,omitempty"`
	Tags        []string  `json:"tags"`
	Recurring   bool      `json:"recurring"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TransactionInput is the create/replace payload for a transaction.
type TransactionInput struct {
	Kind        Kind     `json:"kind"`
	Amount      float64  `json:"amount"`
	Category    string   `json:"category"`
	Date        Date     `json:"date"`
	Description string   `json:"description"`
	GoalID      string   `json:"goalId"`
	Tags        []string `json:"tags"`
	Recurring   bool     `json:"recurring"`
}

// Validate checks enum membership and amount sign.
func (in *TransactionInput) Validate() error {
	if !in.Kind.Valid() {
		return &ErrValidation{Field: "kind", Message: "must be 'income' or 'expense'"}
	}
	if err := CheckPositive("amount", in.Amount); err != nil {
		return err
	}
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		return &ErrValidation{Field: "category", Message: "is required"}
	}
	if !IsCategoryOf(in.Kind, in.Category) {
		return &ErrValidation{Field: "category", Message: "'" + in.Category + "' is not a valid " + string(in.Kind) + " category"}
	}
	if len(in.Description) > 500 {
		return &ErrValidation{Field: "description", Message: "must be at most 500 characters"}
	}
	return nil
}

// MaxBulkTransactions caps a single bulk insert.
const MaxBulkTransactions = 100

// BulkTransactionInput wraps a batch create.
type BulkTransactionInput struct {
	Transactions []TransactionInput `json:"transactions"`
}

// TransactionFilter selects ledger entries. Zero values mean "any".
type TransactionFilter struct {
	UserID   string
	Kind     Kind
	Category string
	GoalID   string
	From     time.Time // inclusive
	To       time.Time // inclusive
	Search   string
	SortBy   string // "date" (default) or "amount"
	Asc      bool
	Page     int
	PageSize int // 0 = no limit
}

// Skip returns the number of rows to skip for the filter's page.
func (f TransactionFilter) Skip() int {
	if f.PageSize <= 0 || f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether tx satisfies the filter.
func (f TransactionFilter) Matches(tx *Transaction) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.GoalID != "" && tx.GoalID != f.GoalID {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(tx.Description), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// KindTotals is the result of summing transactions grouped by kind.
type KindTotals struct {
	Income       float64 `json:"income"`
	Expenses     float64 `json:"expenses"`
	IncomeCount  int     `json:"incomeCount"`
	ExpenseCount int     `json:"expenseCount"`
}

// Count returns the number of transactions summed.
func (k KindTotals) Count() int { return k.IncomeCount + k.ExpenseCount }

// CategoryTotal is a per-category sum.
type CategoryTotal struct {
	Category   string  `json:"category"`
	Kind       Kind    `json:"kind"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthKindTotal is the first grouping stage of the monthly trend:
// one row per (year, month, kind).
type MonthKindTotal struct {
	Year  int
	Month time.Month
	Kind  Kind
	Total float64
	Count int
}

// TransactionStats is the response of GET /transactions/stats.
type TransactionStats struct {
	From              string          `json:"from"`
	To                string          `json:"to"`
	TotalIncome       float64         `json:"totalIncome"`
	TotalExpenses     float64         `json:"totalExpenses"`
	Balance           float64         `json:"balance"`
	TransactionCount  int             `json:"transactionCount"`
	IncomeByCategory  []CategoryTotal `json:"incomeByCategory"`
	ExpenseByCategory []CategoryTotal `json:"expenseByCategory"`
}

// GoalTransactions is the goal-linked view of the ledger.
type GoalTransactions struct {
	GoalID       string        `json:"goalId"`
	Transactions []Transaction `json:"transactions"`
	LinkedSaved  float64       `json:"linkedSaved"`
	GoalCurrent  float64       `json:"goalCurrentAmount"`
	Difference   float64       `json:"difference"`
}
