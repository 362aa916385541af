package mongostore

import (
	"context"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateBudget")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.budgets.InsertOne(ctx, toBudgetDoc(b))
	if mongo.IsDuplicateKeyError(err) {
		return duplicateBudget(b)
	}
	return s.wrap("insert budget", err)
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetBudget")
	defer span.End()
	return s.findBudget(ctx, bson.M{"_id": id, "userId": userID})
}

func (s *Store) FindBudget(ctx context.Context, userID, category string, period domain.Period, start time.Time) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Mongo.FindBudget")
	defer span.End()
	return s.findBudget(ctx, bson.M{
		"userId":    userID,
		"category":  category,
		"period":    string(period),
		"startDate": domain.DateOnly(start),
	})
}

func (s *Store) findBudget(ctx context.Context, filter bson.M) (*domain.Budget, error) {
	var doc budgetDoc
	found, err := s.findOne(ctx, s.budgets, filter, &doc)
	if err != nil || !found {
		return nil, err
	}
	b := doc.toDomain()
	return &b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Mongo.ListBudgets")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{"userId": userID}
	if activeOnly {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "startDate", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.budgets.Find(ctx, filter, opts)
	if err != nil {
		return nil, s.wrap("find budgets", err)
	}
	var docs []budgetDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, s.wrap("decode budgets", err)
	}
	out := make([]domain.Budget, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "Mongo.UpdateBudget")
	defer span.End()

	err := s.replaceOwned(ctx, s.budgets, "budget", b.UserID, b.ID, toBudgetDoc(b))
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return duplicateBudget(b)
	}
	if _, notFound := err.(*domain.ErrNotFound); notFound {
		return err
	}
	return s.wrap("update budget", err)
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Mongo.DeleteBudget")
	defer span.End()
	return s.deleteOwned(ctx, s.budgets, "budget", userID, id)
}

func duplicateBudget(b *domain.Budget) error {
	return &domain.ErrDuplicateBudget{
		Category:  b.Category,
		Period:    string(b.Period),
		StartDate: b.StartDate.Format(domain.DateLayout),
	}
}
