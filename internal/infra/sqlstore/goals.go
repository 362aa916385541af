package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

const goalColumns = `id, user_id, name, description, target_cents, current_cents, category, priority,
	deadline, status, created_at, updated_at`

func scanGoal(row scanner) (domain.Goal, error) {
	var (
		g                          domain.Goal
		target, current            int64
		priority, status, cAt, uAt string
		deadline                   sql.NullString
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &target, &current, &g.Category,
		&priority, &deadline, &status, &cAt, &uAt)
	if err != nil {
		return g, err
	}
	g.TargetAmount = domain.FromCents(target)
	g.CurrentAmount = domain.FromCents(current)
	g.Priority = domain.Priority(priority)
	g.Deadline = parseNullTS(deadline)
	g.Status = domain.GoalStatus(status)
	g.CreatedAt = parseTS(cAt)
	g.UpdatedAt = parseTS(uAt)
	return g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateGoal")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Description, domain.ToCents(g.TargetAmount), domain.ToCents(g.CurrentAmount),
		g.Category, string(g.Priority), nullTS(g.Deadline), string(g.Status), ts(g.CreatedAt), ts(g.UpdatedAt))
	return s.wrap("insert goal", err)
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetGoal")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get goal", err)
	}
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListGoals")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, s.wrap("list goals", err)
	}
	defer rows.Close()

	out := make([]domain.Goal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, s.wrap("scan goal", err)
		}
		out = append(out, g)
	}
	return out, s.wrap("list goals", rows.Err())
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateGoal")
	defer span.End()

	err := s.exec(ctx, "goal", g.ID, `
		UPDATE goals SET name = ?, description = ?, target_cents = ?, current_cents = ?, category = ?,
			priority = ?, deadline = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		g.Name, g.Description, domain.ToCents(g.TargetAmount), domain.ToCents(g.CurrentAmount), g.Category,
		string(g.Priority), nullTS(g.Deadline), string(g.Status), ts(g.UpdatedAt), g.ID, g.UserID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("update goal", err)
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteGoal")
	defer span.End()

	err := s.exec(ctx, "goal", id, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("delete goal", err)
}

// IncrementGoal adds amount in a single UPDATE and reads the row back.
func (s *Store) IncrementGoal(ctx context.Context, userID, id string, amount float64) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.IncrementGoal")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	g, err := scanGoal(s.db.QueryRowContext(ctx, `
		UPDATE goals SET current_cents = current_cents + ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING `+goalColumns,
		domain.ToCents(amount), ts(time.Now()), id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("increment goal", err)
	}
	return &g, nil
}
