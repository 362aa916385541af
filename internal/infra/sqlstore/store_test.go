package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/storetest"

	"go.uber.org/zap"
)

func openTemp(t *testing.T) *sqlstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "fintrack.db")
	s, err := sqlstore.Open(path, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openTemp(t))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")

	first, err := sqlstore.Open(path, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	_ = first.Close(context.Background())

	second, err := sqlstore.Open(path, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer second.Close(context.Background())

	if err := second.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
