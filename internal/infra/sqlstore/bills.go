package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

const billColumns = `id, user_id, name, amount_cents, category, due_date, frequency, reminder_days,
	auto_pay, notes, status, last_paid_date, created_at, updated_at`

func scanBill(row scanner) (domain.Bill, error) {
	var (
		b                 domain.Bill
		cents             int64
		due, freq, status string
		cAt, uAt          string
		autoPay           int
		lastPaid          sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &cents, &b.Category, &due, &freq, &b.ReminderDays,
		&autoPay, &b.Notes, &status, &lastPaid, &cAt, &uAt)
	if err != nil {
		return b, err
	}
	b.Amount = domain.FromCents(cents)
	b.DueDate = parseTS(due)
	b.Frequency = domain.Frequency(freq)
	b.AutoPay = autoPay == 1
	b.Status = domain.BillStatus(status)
	b.LastPaidDate = parseNullTS(lastPaid)
	b.CreatedAt = parseTS(cAt)
	b.UpdatedAt = parseTS(uAt)
	b.PaymentHistory = []domain.PaymentRecord{}
	return b, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPayments(ctx context.Context, db execer, billID string, history []domain.PaymentRecord) error {
	for i, p := range history {
		_, err := db.ExecContext(ctx, `
			INSERT INTO bill_payments (id, bill_id, seq, amount_cents, paid_date, method, confirmation_number, notes, cycle_due_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, billID, i, domain.ToCents(p.Amount), ts(p.PaidDate), string(p.Method),
			p.ConfirmationNumber, p.Notes, ts(p.CycleDueDate))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateBill(ctx context.Context, b *domain.Bill) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateBill")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, `INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, domain.ToCents(b.Amount), b.Category, ts(b.DueDate), string(b.Frequency),
		b.ReminderDays, boolInt(b.AutoPay), b.Notes, string(b.Status), nullTS(b.LastPaidDate),
		ts(b.CreatedAt), ts(b.UpdatedAt))
	if err != nil {
		return s.wrap("insert bill", err)
	}
	if err := insertPayments(ctx, dbtx, b.ID, b.PaymentHistory); err != nil {
		return s.wrap("insert payments", err)
	}
	return s.wrap("commit", dbtx.Commit())
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetBill")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	b, err := scanBill(s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get bill", err)
	}
	bills := []domain.Bill{b}
	if err := s.attachPayments(ctx, bills); err != nil {
		return nil, s.wrap("load payments", err)
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, f domain.BillFilter) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListBills")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds, args = append(conds, "user_id = ?"), append(args, f.UserID)
	}
	if f.Status != "" {
		conds, args = append(conds, "status = ?"), append(args, string(f.Status))
	}
	if !f.DueFrom.IsZero() {
		conds, args = append(conds, "due_date >= ?"), append(args, ts(f.DueFrom))
	}
	if !f.DueTo.IsZero() {
		conds, args = append(conds, "due_date <= ?"), append(args, ts(f.DueTo))
	}
	query := `SELECT ` + billColumns + ` FROM bills`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY due_date, lower(name), id`

	bills, err := s.queryBills(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("list bills", err)
	}
	if err := s.attachPayments(ctx, bills); err != nil {
		return nil, s.wrap("load payments", err)
	}
	return bills, nil
}

// queryBills drains the result set before returning; the pool holds a
// single connection, so payments can only be loaded afterwards.
func (s *Store) queryBills(ctx context.Context, query string, args ...any) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) attachPayments(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	index := make(map[string]int, len(bills))
	placeholders := make([]string, 0, len(bills))
	args := make([]any, 0, len(bills))
	for i := range bills {
		index[bills[i].ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, bills[i].ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_id, id, amount_cents, paid_date, method, confirmation_number, notes, cycle_due_date
		FROM bill_payments WHERE bill_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY bill_id, seq`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			billID, paid, method, cycle string
			cents                       int64
			p                           domain.PaymentRecord
		)
		if err := rows.Scan(&billID, &p.ID, &cents, &paid, &method, &p.ConfirmationNumber, &p.Notes, &cycle); err != nil {
			return err
		}
		p.Amount = domain.FromCents(cents)
		p.PaidDate = parseTS(paid)
		p.Method = domain.PaymentMethod(method)
		p.CycleDueDate = parseTS(cycle)
		if i, ok := index[billID]; ok {
			bills[i].PaymentHistory = append(bills[i].PaymentHistory, p)
		}
	}
	return rows.Err()
}

// UpdateBill rewrites the row and its payment history atomically.
func (s *Store) UpdateBill(ctx context.Context, b *domain.Bill) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateBill")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer dbtx.Rollback()

	res, err := dbtx.ExecContext(ctx, `
		UPDATE bills SET name = ?, amount_cents = ?, category = ?, due_date = ?, frequency = ?,
			reminder_days = ?, auto_pay = ?, notes = ?, status = ?, last_paid_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		b.Name, domain.ToCents(b.Amount), b.Category, ts(b.DueDate), string(b.Frequency),
		b.ReminderDays, boolInt(b.AutoPay), b.Notes, string(b.Status), nullTS(b.LastPaidDate),
		ts(b.UpdatedAt), b.ID, b.UserID)
	if err != nil {
		return s.wrap("update bill", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "bill", ID: b.ID}
	}
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM bill_payments WHERE bill_id = ?`, b.ID); err != nil {
		return s.wrap("clear payments", err)
	}
	if err := insertPayments(ctx, dbtx, b.ID, b.PaymentHistory); err != nil {
		return s.wrap("insert payments", err)
	}
	return s.wrap("commit", dbtx.Commit())
}

func (s *Store) DeleteBill(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteBill")
	defer span.End()

	err := s.exec(ctx, "bill", id, `DELETE FROM bills WHERE id = ? AND user_id = ?`, id, userID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("delete bill", err)
}
