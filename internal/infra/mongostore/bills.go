package mongostore

import (
	"context"
	"strings"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateBill(ctx context.Context, b *domain.Bill) error {
	ctx, span := tracer.Start(ctx, "Mongo.CreateBill")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	_, err := s.bills.InsertOne(ctx, toBillDoc(b))
	return s.wrap("insert bill", err)
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (*domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "Mongo.GetBill")
	defer span.End()

	var doc billDoc
	found, err := s.findOne(ctx, s.bills, bson.M{"_id": id, "userId": userID}, &doc)
	if err != nil || !found {
		return nil, err
	}
	b := doc.toDomain()
	return &b, nil
}

func (s *Store) ListBills(ctx context.Context, f domain.BillFilter) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "Mongo.ListBills")
	defer span.End()

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	due := bson.M{}
	if !f.DueFrom.IsZero() {
		due["$gte"] = f.DueFrom
	}
	if !f.DueTo.IsZero() {
		due["$lte"] = f.DueTo
	}
	if len(due) > 0 {
		filter["dueDate"] = due
	}

	cur, err := s.bills.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, s.wrap("find bills", err)
	}
	out, err := decodeBills(ctx, cur)
	if err != nil {
		return nil, s.wrap("decode bills", err)
	}
	return out, nil
}

// decodeBills drains the cursor and applies the name tiebreak the other
// adapters use for bills due on the same day.
func decodeBills(ctx context.Context, cur *mongo.Cursor) ([]domain.Bill, error) {
	var docs []billDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Bill, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sameDayBefore(&out[j], &out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func sameDayBefore(a, b *domain.Bill) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return false
	}
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

func (s *Store) UpdateBill(ctx context.Context, b *domain.Bill) error {
	ctx, span := tracer.Start(ctx, "Mongo.UpdateBill")
	defer span.End()

	err := s.replaceOwned(ctx, s.bills, "bill", b.UserID, b.ID, toBillDoc(b))
	if _, notFound := err.(*domain.ErrNotFound); notFound {
		return err
	}
	return s.wrap("update bill", err)
}

func (s *Store) DeleteBill(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Mongo.DeleteBill")
	defer span.End()
	return s.deleteOwned(ctx, s.bills, "bill", userID, id)
}
