package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestPublish_PersistentJSONRoutedByType(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(nil, ch, "fintrack.events", observability.NewMetrics(), zap.NewNop())

	e := domain.Event{
		ID: "evt-1", Type: domain.EventBillPaid, UserID: "u1", EntityID: "bill-1",
		Amount: 120, OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	msg := ch.published[0]
	if ch.keys[0] != "bill.paid" {
		t.Errorf("routing key = %q", ch.keys[0])
	}
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("delivery mode %d, content type %q", msg.DeliveryMode, msg.ContentType)
	}
	var got domain.Event
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.EntityID != "bill-1" || got.Amount != 120 {
		t.Errorf("body = %+v", got)
	}
}

func TestPublish_FailureIsTypedAndBreakerOpens(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newPublisher(nil, ch, "fintrack.events", observability.NewMetrics(), zap.NewNop())
	e := domain.Event{ID: "evt", Type: domain.EventTransactionCreated}

	var ext *domain.ErrExternalService
	if err := p.Publish(context.Background(), e); !errors.As(err, &ext) {
		t.Fatalf("first failure = %v, want ErrExternalService", err)
	}

	// Five consecutive failures trip the breaker.
	for i := 0; i < 4; i++ {
		_ = p.Publish(context.Background(), e)
	}
	var open *domain.ErrCircuitOpen
	if err := p.Publish(context.Background(), e); !errors.As(err, &open) {
		t.Errorf("after repeated failures = %v, want ErrCircuitOpen", err)
	}
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())
	if err := p.Publish(context.Background(), domain.Event{Type: domain.EventGoalCompleted}); err != nil {
		t.Errorf("Publish = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
