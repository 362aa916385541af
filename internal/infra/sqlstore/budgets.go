package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

const budgetColumns = `id, user_id, category, amount_cents, period, start_date, end_date,
	warning_threshold, danger_threshold, is_active, created_at, updated_at`

func scanBudget(row scanner) (domain.Budget, error) {
	var (
		b                  domain.Budget
		period, start, end string
		cAt, uAt           string
		cents              int64
		active             int
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &cents, &period, &start, &end,
		&b.AlertThresholds.Warning, &b.AlertThresholds.Danger, &active, &cAt, &uAt)
	if err != nil {
		return b, err
	}
	b.Amount = domain.FromCents(cents)
	b.Period = domain.Period(period)
	b.StartDate = parseTS(start)
	b.EndDate = parseTS(end)
	b.IsActive = active == 1
	b.CreatedAt = parseTS(cAt)
	b.UpdatedAt = parseTS(uAt)
	return b, nil
}

func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateBudget")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, domain.ToCents(b.Amount), string(b.Period), ts(b.StartDate), ts(b.EndDate),
		b.AlertThresholds.Warning, b.AlertThresholds.Danger, boolInt(b.IsActive), ts(b.CreatedAt), ts(b.UpdatedAt))
	if isUniqueViolation(err) {
		return duplicateBudget(b)
	}
	return s.wrap("insert budget", err)
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetBudget")
	defer span.End()
	return s.queryBudget(ctx, `WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *Store) FindBudget(ctx context.Context, userID, category string, period domain.Period, start time.Time) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindBudget")
	defer span.End()
	return s.queryBudget(ctx, `WHERE user_id = ? AND category = ? AND period = ? AND start_date = ?`,
		userID, category, string(period), ts(domain.DateOnly(start)))
}

func (s *Store) queryBudget(ctx context.Context, where string, args ...any) (*domain.Budget, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	b, err := scanBudget(s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets `+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get budget", err)
	}
	return &b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListBudgets")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY category, start_date, id`, userID)
	if err != nil {
		return nil, s.wrap("list budgets", err)
	}
	defer rows.Close()

	out := make([]domain.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, s.wrap("scan budget", err)
		}
		out = append(out, b)
	}
	return out, s.wrap("list budgets", rows.Err())
}

func (s *Store) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateBudget")
	defer span.End()

	err := s.exec(ctx, "budget", b.ID, `
		UPDATE budgets SET category = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ?,
			warning_threshold = ?, danger_threshold = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		b.Category, domain.ToCents(b.Amount), string(b.Period), ts(b.StartDate), ts(b.EndDate),
		b.AlertThresholds.Warning, b.AlertThresholds.Danger, boolInt(b.IsActive), ts(b.UpdatedAt), b.ID, b.UserID)
	switch {
	case err == nil, isNotFound(err):
		return err
	case isUniqueViolation(err):
		return duplicateBudget(b)
	}
	return s.wrap("update budget", err)
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteBudget")
	defer span.End()

	err := s.exec(ctx, "budget", id, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("delete budget", err)
}

func duplicateBudget(b *domain.Budget) error {
	return &domain.ErrDuplicateBudget{
		Category:  b.Category,
		Period:    string(b.Period),
		StartDate: b.StartDate.Format(domain.DateLayout),
	}
}
