package mongostore

import (
	"context"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateUser")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.users.InsertOne(ctx, userDoc{
		ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return &domain.ErrConflict{Message: "an account with this e-mail already exists"}
	}
	return s.wrap("insert user", err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetUserByEmail")
	defer span.End()
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetUserByID")
	defer span.End()
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	found, err := s.findOne(ctx, s.users, filter, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &domain.User{
		ID: doc.ID, Name: doc.Name, Email: doc.Email, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}
