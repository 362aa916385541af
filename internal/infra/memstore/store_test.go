package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, memstore.New())
}

func TestGoalDeadlineIsNotShared(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	deadline := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	want := deadline

	g := &domain.Goal{ID: "g1", UserID: "u1", Name: "Trip", TargetAmount: 100, Deadline: &deadline}
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	*g.Deadline = deadline.AddDate(1, 0, 0)

	got, err := s.GetGoal(ctx, "u1", "g1")
	if err != nil || got == nil {
		t.Fatalf("GetGoal = %v, %v", got, err)
	}
	if !got.Deadline.Equal(want) {
		t.Fatalf("caller's pointer leaked into the store: %s", got.Deadline)
	}
	*got.Deadline = want.AddDate(0, 0, 1)

	list, err := s.ListGoals(ctx, "u1", "")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListGoals = %v, %v", list, err)
	}
	if !list[0].Deadline.Equal(want) {
		t.Fatalf("GetGoal result aliases the store: %s", list[0].Deadline)
	}
	*list[0].Deadline = want.AddDate(0, 0, 2)

	inc, err := s.IncrementGoal(ctx, "u1", "g1", 10)
	if err != nil || inc == nil {
		t.Fatalf("IncrementGoal = %v, %v", inc, err)
	}
	if !inc.Deadline.Equal(want) {
		t.Errorf("ListGoals result aliases the store: %s", inc.Deadline)
	}
}
