package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/transactions")

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TransactionService manages the ledger.
type TransactionService struct {
	txs      port.TransactionStore
	goals    port.GoalStore
	exporter port.TransactionExporter
	emitter
	now Clock
}

// NewTransactionService creates the ledger service. exporter may be nil when
// export is not offered.
func NewTransactionService(txs port.TransactionStore, goals port.GoalStore, exporter port.TransactionExporter, events port.EventPublisher, logger *zap.Logger) *TransactionService {
	return &TransactionService{
		txs:      txs,
		goals:    goals,
		exporter: exporter,
		emitter:  emitter{events: events, logger: logger},
		now:      systemClock,
	}
}

// WithClock overrides the time source.
func (s *TransactionService) WithClock(c Clock) *TransactionService {
	s.now = c
	return s
}

// ============================================================
// Create: POST /v1/transactions
// ============================================================

func (s *TransactionService) Create(ctx context.Context, userID string, in *domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkGoal(ctx, userID, in.GoalID, "goalId"); err != nil {
		return nil, err
	}

	tx := s.build(userID, in)
	if err := s.txs.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.Info("transaction created",
		zap.String("user_id", userID),
		zap.String("transaction_id", tx.ID),
		zap.String("kind", string(tx.Kind)),
		zap.Float64("amount", tx.Amount),
	)
	s.emit(ctx, domain.EventTransactionCreated, userID, tx.ID, tx.Amount, tx.Category)
	return tx, nil
}

// ============================================================
// BulkCreate: POST /v1/transactions/bulk
// ============================================================

// BulkCreate validates every item before writing any of them.
func (s *TransactionService) BulkCreate(ctx context.Context, userID string, in *domain.BulkTransactionInput) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.BulkCreate")
	defer span.End()
	span.SetAttributes(attribute.Int("bulk.size", len(in.Transactions)))

	switch n := len(in.Transactions); {
	case n == 0:
		return nil, &domain.ErrValidation{Field: "transactions", Message: "must contain at least one transaction"}
	case n > domain.MaxBulkTransactions:
		return nil, &domain.ErrValidation{
			Field:   "transactions",
			Message: "must contain at most " + strconv.Itoa(domain.MaxBulkTransactions) + " transactions",
		}
	}

	checked := make(map[string]bool)
	batch := make([]*domain.Transaction, 0, len(in.Transactions))
	for i := range in.Transactions {
		item := &in.Transactions[i]
		prefix := fmt.Sprintf("transactions[%d].", i)
		if err := item.Validate(); err != nil {
			return nil, prefixField(err, prefix)
		}
		if item.GoalID != "" && !checked[item.GoalID] {
			if err := s.checkGoal(ctx, userID, item.GoalID, prefix+"goalId"); err != nil {
				return nil, err
			}
			checked[item.GoalID] = true
		}
		batch = append(batch, s.build(userID, item))
	}

	if err := s.txs.CreateTransactions(ctx, batch); err != nil {
		return nil, fmt.Errorf("bulk create transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(batch))
	for _, tx := range batch {
		out = append(out, *tx)
		s.emit(ctx, domain.EventTransactionCreated, userID, tx.ID, tx.Amount, tx.Category)
	}
	s.logger.Info("transactions bulk created", zap.String("user_id", userID), zap.Int("count", len(out)))
	return out, nil
}

func prefixField(err error, prefix string) error {
	switch e := err.(type) {
	case *domain.ErrValidation:
		return &domain.ErrValidation{Field: prefix + e.Field, Message: e.Message}
	case *domain.ErrInvalidAmount:
		return &domain.ErrInvalidAmount{Field: prefix + e.Field, Amount: e.Amount}
	}
	return err
}

// ============================================================
// Get / Update / Delete: /v1/transactions/{id}
// ============================================================

func (s *TransactionService) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Get")
	defer span.End()

	tx, err := s.txs.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if tx == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return tx, nil
}

// Update replaces every mutable field. The kind of a transaction is fixed at
// creation.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in *domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Update")
	defer span.End()

	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Kind == "" {
		in.Kind = existing.Kind
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Kind != existing.Kind {
		return nil, &domain.ErrValidation{Field: "kind", Message: "cannot be changed after creation"}
	}
	if err := s.checkGoal(ctx, userID, in.GoalID, "goalId"); err != nil {
		return nil, err
	}

	updated := s.build(userID, in)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if err := s.txs.UpdateTransaction(ctx, updated); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(userID)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()

	if err := s.txs.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("transaction deleted", zap.String("user_id", userID), zap.String("transaction_id", id))
	s.emit(ctx, domain.EventTransactionDeleted, userID, id, 0, "")
	return nil
}

// ============================================================
// List: GET /v1/transactions
// ============================================================

// List returns one page of the caller's ledger. Page and PageSize are clamped
// to their defaults and limits.
func (s *TransactionService) List(ctx context.Context, userID string, f domain.TransactionFilter) (*domain.ListResponse[domain.Transaction], error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.List")
	defer span.End()

	f.UserID = userID
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	if f.SortBy != "" && f.SortBy != "date" && f.SortBy != "amount" {
		return nil, &domain.ErrValidation{Field: "sort", Message: "must be 'date' or 'amount'"}
	}
	if !f.To.IsZero() {
		f.To = domain.EndOfDay(f.To)
	}

	rows, total, err := s.txs.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	resp := domain.NewListResponse(rows, total, f.Page, f.PageSize)
	return &resp, nil
}

// ============================================================
// Stats: GET /v1/transactions/stats
// ============================================================

func (s *TransactionService) Stats(ctx context.Context, userID string, from, to time.Time) (*domain.TransactionStats, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Stats")
	defer span.End()

	from, to, err := resolveRange(s.now(), from, to)
	if err != nil {
		return nil, err
	}
	f := domain.TransactionFilter{UserID: userID, From: from, To: to}

	totals, err := s.txs.SumTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	cats, err := s.txs.SumByCategory(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}

	summary := domain.NewFinancialSummary(from, to, totals)
	stats := &domain.TransactionStats{
		From:              summary.From,
		To:                summary.To,
		TotalIncome:       summary.TotalIncome,
		TotalExpenses:     summary.TotalExpenses,
		Balance:           summary.Balance,
		TransactionCount:  summary.TransactionCount,
		IncomeByCategory:  []domain.CategoryTotal{},
		ExpenseByCategory: []domain.CategoryTotal{},
	}
	for _, c := range cats {
		if c.Kind == domain.KindIncome {
			c.Percentage = domain.Percent(c.Total, summary.TotalIncome)
			stats.IncomeByCategory = append(stats.IncomeByCategory, c)
		} else {
			c.Percentage = domain.Percent(c.Total, summary.TotalExpenses)
			stats.ExpenseByCategory = append(stats.ExpenseByCategory, c)
		}
	}
	return stats, nil
}

// ============================================================
// ByGoal: GET /v1/transactions/goal/{goalId}
// ============================================================

// ByGoal lists the transactions tagged with a goal. LinkedSaved sums the
// income among them; the goal itself is never modified here.
func (s *TransactionService) ByGoal(ctx context.Context, userID, goalID string) (*domain.GoalTransactions, error) {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.ByGoal")
	defer span.End()

	goal, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if goal == nil {
		return nil, &domain.ErrNotFound{Resource: "goal", ID: goalID}
	}

	rows, _, err := s.txs.ListTransactions(ctx, domain.TransactionFilter{UserID: userID, GoalID: goalID})
	if err != nil {
		return nil, fmt.Errorf("list goal transactions: %w", err)
	}

	var income []float64
	for _, tx := range rows {
		if tx.Kind == domain.KindIncome {
			income = append(income, tx.Amount)
		}
	}
	linked := domain.SumAmounts(income...)
	if rows == nil {
		rows = []domain.Transaction{}
	}
	return &domain.GoalTransactions{
		GoalID:       goalID,
		Transactions: rows,
		LinkedSaved:  linked,
		GoalCurrent:  goal.CurrentAmount,
		Difference:   domain.SumAmounts(linked, -goal.CurrentAmount),
	}, nil
}

// ============================================================
// Export: GET /v1/transactions/export
// ============================================================

// ExportFormat returns the content type and file extension of exports.
func (s *TransactionService) ExportFormat() (contentType, ext string) {
	if s.exporter == nil {
		return "", ""
	}
	return s.exporter.ContentType(), s.exporter.FileExtension()
}

// Export writes the caller's transactions in [from, to], oldest first, along
// with the expense breakdown of the same range.
func (s *TransactionService) Export(ctx context.Context, userID string, from, to time.Time, w io.Writer) error {
	ctx, span := ledgerTracer.Start(ctx, "TransactionService.Export")
	defer span.End()

	if s.exporter == nil {
		return &domain.ErrValidation{Field: "format", Message: "export is not available"}
	}
	from, to, err := resolveRange(s.now(), from, to)
	if err != nil {
		return err
	}

	rows, _, err := s.txs.ListTransactions(ctx, domain.TransactionFilter{UserID: userID, From: from, To: to, Asc: true})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	cats, err := s.txs.SumByCategory(ctx, domain.TransactionFilter{UserID: userID, Kind: domain.KindExpense, From: from, To: to})
	if err != nil {
		return fmt.Errorf("sum by category: %w", err)
	}

	if err := s.exporter.Export(w, rows, domain.NewSpendingBreakdown(cats)); err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}
	s.logger.Info("transactions exported", zap.String("user_id", userID), zap.Int("rows", len(rows)))
	return nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *TransactionService) checkGoal(ctx context.Context, userID, goalID, field string) error {
	if goalID == "" {
		return nil
	}
	g, err := s.goals.GetGoal(ctx, userID, goalID)
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}
	if g == nil {
		return &domain.ErrValidation{Field: field, Message: "does not reference one of your goals"}
	}
	return nil
}

func (s *TransactionService) build(userID string, in *domain.TransactionInput) *domain.Transaction {
	now := s.now()
	date := in.Date.Time
	if date.IsZero() {
		date = domain.DateOnly(now)
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      domain.Round2(in.Amount),
		Category:    in.Category,
		Date:        domain.DateOnly(date),
		Description: in.Description,
		GoalID:      in.GoalID,
		Tags:        tags,
		Recurring:   in.Recurring,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
