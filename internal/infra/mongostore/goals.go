package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateGoal")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.goals.InsertOne(ctx, toGoalDoc(g))
	return s.wrap("insert goal", err)
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetGoal")
	defer span.End()

	var doc goalDoc
	found, err := s.findOne(ctx, s.goals, bson.M{"_id": id, "userId": userID}, &doc)
	if err != nil || !found {
		return nil, err
	}
	g := doc.toDomain()
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, status domain.GoalStatus) ([]domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Mongo.ListGoals")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{"userId": userID}
	if status != "" {
		filter["status"] = string(status)
	}
	cur, err := s.goals.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, s.wrap("find goals", err)
	}
	var docs []goalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, s.wrap("decode goals", err)
	}
	out := make([]domain.Goal, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	ctx, span := tracer.Start(ctx, "Mongo.UpdateGoal")
	defer span.End()

	err := s.replaceOwned(ctx, s.goals, "goal", g.UserID, g.ID, toGoalDoc(g))
	if _, notFound := err.(*domain.ErrNotFound); notFound {
		return err
	}
	return s.wrap("update goal", err)
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Mongo.DeleteGoal")
	defer span.End()
	return s.deleteOwned(ctx, s.goals, "goal", userID, id)
}

// IncrementGoal applies $inc so concurrent contributions never lose updates.
func (s *Store) IncrementGoal(ctx context.Context, userID, id string, amount float64) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Mongo.IncrementGoal")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"currentAmount": amount},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc goalDoc
	err := s.goals.FindOneAndUpdate(ctx, bson.M{"_id": id, "userId": userID}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("increment goal", err)
	}
	g := doc.toDomain()
	g.CurrentAmount = domain.Round2(g.CurrentAmount)
	return &g, nil
}
