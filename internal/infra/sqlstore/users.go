package sqlstore

import (
	"context"
	"database/sql"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateUser")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, ts(u.CreatedAt))
	if isUniqueViolation(err) {
		return &domain.ErrConflict{Message: "an account with this e-mail already exists"}
	}
	return s.wrap("insert user", err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetUserByEmail")
	defer span.End()
	return s.queryUser(ctx, `email = ?`, email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetUserByID")
	defer span.End()
	return s.queryUser(ctx, `id = ?`, id)
}

func (s *Store) queryUser(ctx context.Context, cond string, arg any) (*domain.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		u         domain.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get user", err)
	}
	u.CreatedAt = parseTS(createdAt)
	return &u, nil
}
