package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
)

const txColumns = `id, user_id, kind, amount_cents, category, date, description, goal_id, tags, recurring, created_at, updated_at`

func txArgs(tx *domain.Transaction) []any {
	tags, _ := json.Marshal(nonNil(tx.Tags))
	return []any{
		tx.ID, tx.UserID, string(tx.Kind), domain.ToCents(tx.Amount), tx.Category, ts(tx.Date),
		tx.Description, tx.GoalID, string(tags), boolInt(tx.Recurring), ts(tx.CreatedAt), ts(tx.UpdatedAt),
	}
}

func scanTx(row scanner) (domain.Transaction, error) {
	var (
		tx                         domain.Transaction
		kind, date, tags, cAt, uAt string
		cents                      int64
		recurring                  int
	)
	err := row.Scan(&tx.ID, &tx.UserID, &kind, &cents, &tx.Category, &date,
		&tx.Description, &tx.GoalID, &tags, &recurring, &cAt, &uAt)
	if err != nil {
		return tx, err
	}
	tx.Kind = domain.Kind(kind)
	tx.Amount = domain.FromCents(cents)
	tx.Date = parseTS(date)
	tx.Recurring = recurring == 1
	tx.CreatedAt = parseTS(cAt)
	tx.UpdatedAt = parseTS(uAt)
	if err := json.Unmarshal([]byte(tags), &tx.Tags); err != nil || tx.Tags == nil {
		tx.Tags = []string{}
	}
	return tx, nil
}

const insertTx = `INSERT INTO transactions (` + txColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateTransaction")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, insertTx, txArgs(tx)...)
	return s.wrap("insert transaction", err)
}

// CreateTransactions inserts the batch in one transaction: all or nothing.
func (s *Store) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateTransactions")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, insertTx)
	if err != nil {
		return s.wrap("prepare insert transaction", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx, txArgs(tx)...); err != nil {
			return s.wrap("insert transaction", err)
		}
	}
	return s.wrap("commit", dbtx.Commit())
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetTransaction")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	tx, err := scanTx(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get transaction", err)
	}
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateTransaction")
	defer span.End()

	tags, _ := json.Marshal(nonNil(tx.Tags))
	err := s.exec(ctx, "transaction", tx.ID, `
		UPDATE transactions SET kind = ?, amount_cents = ?, category = ?, date = ?, description = ?,
			goal_id = ?, tags = ?, recurring = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		string(tx.Kind), domain.ToCents(tx.Amount), tx.Category, ts(tx.Date), tx.Description,
		tx.GoalID, string(tags), boolInt(tx.Recurring), ts(tx.UpdatedAt), tx.ID, tx.UserID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("update transaction", err)
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteTransaction")
	defer span.End()

	err := s.exec(ctx, "transaction", id, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if isNotFound(err) {
		return err
	}
	return s.wrap("delete transaction", err)
}

func (s *Store) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactions")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	where, args := whereTx(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, s.wrap("count transactions", err)
	}

	dir := "DESC"
	if f.Asc {
		dir = "ASC"
	}
	order := " ORDER BY date " + dir + ", id " + dir
	if f.SortBy == "amount" {
		order = " ORDER BY amount_cents " + dir + ", date " + dir + ", id " + dir
	}
	query := `SELECT ` + txColumns + ` FROM transactions` + where + order
	if f.PageSize > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, f.Skip())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, s.wrap("list transactions", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, 0, s.wrap("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.wrap("list transactions", err)
	}
	return out, total, nil
}

func (s *Store) SumTransactions(ctx context.Context, f domain.TransactionFilter) (domain.KindTotals, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SumTransactions")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	where, args := whereTx(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions`+where+` GROUP BY kind`, args...)
	if err != nil {
		return domain.KindTotals{}, s.wrap("sum transactions", err)
	}
	defer rows.Close()

	var out domain.KindTotals
	for rows.Next() {
		var (
			kind  string
			cents int64
			count int
		)
		if err := rows.Scan(&kind, &cents, &count); err != nil {
			return domain.KindTotals{}, s.wrap("scan totals", err)
		}
		switch domain.Kind(kind) {
		case domain.KindIncome:
			out.Income, out.IncomeCount = domain.FromCents(cents), count
		case domain.KindExpense:
			out.Expenses, out.ExpenseCount = domain.FromCents(cents), count
		}
	}
	return out, s.wrap("sum transactions", rows.Err())
}

func (s *Store) SumByCategory(ctx context.Context, f domain.TransactionFilter) ([]domain.CategoryTotal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SumByCategory")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	where, args := whereTx(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, category, SUM(amount_cents) AS total, COUNT(*)
		FROM transactions`+where+`
		GROUP BY kind, category
		ORDER BY total DESC, category ASC`, args...)
	if err != nil {
		return nil, s.wrap("sum by category", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryTotal, 0)
	for rows.Next() {
		var (
			ct    domain.CategoryTotal
			kind  string
			cents int64
		)
		if err := rows.Scan(&kind, &ct.Category, &cents, &ct.Count); err != nil {
			return nil, s.wrap("scan category total", err)
		}
		ct.Kind = domain.Kind(kind)
		ct.Total = domain.FromCents(cents)
		out = append(out, ct)
	}
	return out, s.wrap("sum by category", rows.Err())
}

func (s *Store) SumByMonth(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthKindTotal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SumByMonth")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	where, args := whereTx(domain.TransactionFilter{UserID: userID, From: from, To: to})
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(substr(date, 1, 4) AS INTEGER) AS y, CAST(substr(date, 6, 2) AS INTEGER) AS m,
			kind, SUM(amount_cents), COUNT(*)
		FROM transactions`+where+`
		GROUP BY y, m, kind
		ORDER BY y, m, kind`, args...)
	if err != nil {
		return nil, s.wrap("sum by month", err)
	}
	defer rows.Close()

	out := make([]domain.MonthKindTotal, 0)
	for rows.Next() {
		var (
			r     domain.MonthKindTotal
			month int
			kind  string
			cents int64
		)
		if err := rows.Scan(&r.Year, &month, &kind, &cents, &r.Count); err != nil {
			return nil, s.wrap("scan month total", err)
		}
		r.Month = time.Month(month)
		r.Kind = domain.Kind(kind)
		r.Total = domain.FromCents(cents)
		out = append(out, r)
	}
	return out, s.wrap("sum by month", rows.Err())
}

// whereTx renders a filter as a WHERE clause with positional args.
func whereTx(f domain.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.GoalID != "" {
		add("goal_id = ?", f.GoalID)
	}
	if !f.From.IsZero() {
		add("date >= ?", ts(f.From))
	}
	if !f.To.IsZero() {
		add("date <= ?", ts(f.To))
	}
	if f.Search != "" {
		add(`description LIKE ? ESCAPE '\'`, "%"+escapeLike(f.Search)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
