// Package mongostore implements the record store on MongoDB. Ledger
// aggregates run server-side as $group pipelines.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/mongostore")

const serviceName = "mongodb"

// Store is the MongoDB adapter.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  *zap.Logger

	transactions *mongo.Collection
	budgets      *mongo.Collection
	goals        *mongo.Collection
	bills        *mongo.Collection
	users        *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string, timeout time.Duration, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		db:           db,
		timeout:      timeout,
		logger:       logger,
		transactions: db.Collection("transactions"),
		budgets:      db.Collection("budgets"),
		goals:        db.Collection("goals"),
		bills:        db.Collection("bills"),
		users:        db.Collection("users"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("mongodb store connected", zap.String("database", database))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.transactions: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "kind", Value: 1}, {Key: "category", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "goalId", Value: 1}}},
		},
		s.budgets: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "category", Value: 1}, {Key: "period", Value: 1}, {Key: "startDate", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("budget_unique_window"),
			},
		},
		s.goals: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
		},
		s.bills: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}, {Key: "dueDate", Value: 1}}},
		},
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// wrap turns driver errors into domain errors.
func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "mongodb " + op}
	}
	s.logger.Error("mongodb operation failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: serviceName, Err: fmt.Errorf("%s: %w", op, err)}
}

// findOne decodes a single document into out; it reports false on no match.
func (s *Store) findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out any) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap("find "+coll.Name(), err)
	}
	return true, nil
}

// replaceOwned replaces the document with id owned by userID.
func (s *Store) replaceOwned(ctx context.Context, coll *mongo.Collection, resource, userID, id string, doc any) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "userId": userID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

// deleteOwned removes the document with id owned by userID.
func (s *Store) deleteOwned(ctx context.Context, coll *mongo.Collection, resource, userID, id string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return s.wrap("delete "+resource, err)
	}
	if res.DeletedCount == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
