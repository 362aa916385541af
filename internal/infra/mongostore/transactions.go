package mongostore

import (
	"context"
	"regexp"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateTransaction")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.transactions.InsertOne(ctx, toTransactionDoc(tx))
	return s.wrap("insert transaction", err)
}

func (s *Store) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateTransactions")
	defer span.End()

	if len(txs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(txs))
	for _, tx := range txs {
		docs = append(docs, toTransactionDoc(tx))
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.transactions.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return s.wrap("insert transactions", err)
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetTransaction")
	defer span.End()

	var doc transactionDoc
	found, err := s.findOne(ctx, s.transactions, bson.M{"_id": id, "userId": userID}, &doc)
	if err != nil || !found {
		return nil, err
	}
	tx := doc.toDomain()
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Mongo.UpdateTransaction")
	defer span.End()

	err := s.replaceOwned(ctx, s.transactions, "transaction", tx.UserID, tx.ID, toTransactionDoc(tx))
	if _, notFound := err.(*domain.ErrNotFound); notFound {
		return err
	}
	return s.wrap("update transaction", err)
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Mongo.DeleteTransaction")
	defer span.End()
	return s.deleteOwned(ctx, s.transactions, "transaction", userID, id)
}

func (s *Store) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int, error) {
	ctx, span := tracer.Start(ctx, "Mongo.ListTransactions")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := transactionFilter(f)
	total, err := s.transactions.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, s.wrap("count transactions", err)
	}

	dir := -1
	if f.Asc {
		dir = 1
	}
	sortKey := bson.D{{Key: "date", Value: dir}, {Key: "_id", Value: dir}}
	if f.SortBy == "amount" {
		sortKey = bson.D{{Key: "amount", Value: dir}, {Key: "date", Value: dir}, {Key: "_id", Value: dir}}
	}
	opts := options.Find().SetSort(sortKey)
	if f.PageSize > 0 {
		opts.SetSkip(int64(f.Skip())).SetLimit(int64(f.PageSize))
	}

	cur, err := s.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, s.wrap("find transactions", err)
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, s.wrap("decode transactions", err)
	}

	out := make([]domain.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, int(total), nil
}

func (s *Store) SumTransactions(ctx context.Context, f domain.TransactionFilter) (domain.KindTotals, error) {
	ctx, span := tracer.Start(ctx, "Mongo.SumTransactions")
	defer span.End()

	pipeline := bson.A{
		bson.M{"$match": transactionFilter(f)},
		bson.M{"$group": bson.M{
			"_id":   "$kind",
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}},
	}
	var rows []struct {
		Kind  string  `bson:"_id"`
		Total float64 `bson:"total"`
		Count int     `bson:"count"`
	}
	if err := s.aggregate(ctx, "sum transactions", pipeline, &rows); err != nil {
		return domain.KindTotals{}, err
	}

	var out domain.KindTotals
	for _, r := range rows {
		switch domain.Kind(r.Kind) {
		case domain.KindIncome:
			out.Income, out.IncomeCount = domain.Round2(r.Total), r.Count
		case domain.KindExpense:
			out.Expenses, out.ExpenseCount = domain.Round2(r.Total), r.Count
		}
	}
	return out, nil
}

func (s *Store) SumByCategory(ctx context.Context, f domain.TransactionFilter) ([]domain.CategoryTotal, error) {
	ctx, span := tracer.Start(ctx, "Mongo.SumByCategory")
	defer span.End()

	pipeline := bson.A{
		bson.M{"$match": transactionFilter(f)},
		bson.M{"$group": bson.M{
			"_id":   bson.M{"kind": "$kind", "category": "$category"},
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}},
		bson.M{"$sort": bson.D{{Key: "total", Value: -1}, {Key: "_id.category", Value: 1}}},
	}
	var rows []struct {
		Key struct {
			Kind     string `bson:"kind"`
			Category string `bson:"category"`
		} `bson:"_id"`
		Total float64 `bson:"total"`
		Count int     `bson:"count"`
	}
	if err := s.aggregate(ctx, "sum by category", pipeline, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CategoryTotal{
			Category: r.Key.Category,
			Kind:     domain.Kind(r.Key.Kind),
			Total:    domain.Round2(r.Total),
			Count:    r.Count,
		})
	}
	return out, nil
}

func (s *Store) SumByMonth(ctx context.Context, userID string, from, to time.Time) ([]domain.MonthKindTotal, error) {
	ctx, span := tracer.Start(ctx, "Mongo.SumByMonth")
	defer span.End()

	pipeline := bson.A{
		bson.M{"$match": transactionFilter(domain.TransactionFilter{UserID: userID, From: from, To: to})},
		bson.M{"$group": bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$date"},
				"month": bson.M{"$month": "$date"},
				"kind":  "$kind",
			},
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}},
		bson.M{"$sort": bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}, {Key: "_id.kind", Value: 1}}},
	}
	var rows []struct {
		Key struct {
			Year  int    `bson:"year"`
			Month int    `bson:"month"`
			Kind  string `bson:"kind"`
		} `bson:"_id"`
		Total float64 `bson:"total"`
		Count int     `bson:"count"`
	}
	if err := s.aggregate(ctx, "sum by month", pipeline, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.MonthKindTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MonthKindTotal{
			Year:  r.Key.Year,
			Month: time.Month(r.Key.Month),
			Kind:  domain.Kind(r.Key.Kind),
			Total: domain.Round2(r.Total),
			Count: r.Count,
		})
	}
	return out, nil
}

func (s *Store) aggregate(ctx context.Context, op string, pipeline bson.A, out any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	cur, err := s.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return s.wrap(op, err)
	}
	return s.wrap(op, cur.All(ctx, out))
}

// transactionFilter translates a ledger filter into a query document.
func transactionFilter(f domain.TransactionFilter) bson.M {
	q := bson.M{}
	if f.UserID != "" {
		q["userId"] = f.UserID
	}
	if f.Kind != "" {
		q["kind"] = string(f.Kind)
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.GoalID != "" {
		q["goalId"] = f.GoalID
	}
	date := bson.M{}
	if !f.From.IsZero() {
		date["$gte"] = f.From
	}
	if !f.To.IsZero() {
		date["$lte"] = f.To
	}
	if len(date) > 0 {
		q["date"] = date
	}
	if f.Search != "" {
		q["description"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	return q
}
