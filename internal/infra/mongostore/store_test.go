package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/infra/mongostore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/storetest"

	"go.uber.org/zap"
)

// Runs only against a live server: MONGO_URI=mongodb://localhost:27017 go test ./...
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	s, err := mongostore.Connect(ctx, uri, "fintrack_test", 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	storetest.Run(t, s)
}
