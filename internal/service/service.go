// Package service holds the trackers, the aggregator and the identity flows.
// Every service reads through the storage ports and publishes domain events
// after successful mutations.
package service

import (
	"context"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock returns the current instant. Services take one so tests can pin today.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// emitter publishes events without letting broker failures reach the caller,
// and tells OnChange subscribers whose data moved.
type emitter struct {
	events    port.EventPublisher
	logger    *zap.Logger
	onChanged []func(userID string)
}

// OnChange registers fn to run after every successful mutation, with the
// owner of the changed entity.
func (e *emitter) OnChange(fn func(userID string)) {
	e.onChanged = append(e.onChanged, fn)
}

func (e emitter) changed(userID string) {
	for _, fn := range e.onChanged {
		fn(userID)
	}
}

func (e emitter) emit(ctx context.Context, t domain.EventType, userID, entityID string, amount float64, detail string) {
	e.changed(userID)
	if e.events == nil {
		return
	}
	evt := domain.Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		EntityID:   entityID,
		Amount:     amount,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, evt); err != nil {
		e.logger.Warn("event publish failed",
			zap.String("event_type", string(t)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// monthRange returns [first day of the month, end of today] for now.
func monthRange(now time.Time) (time.Time, time.Time) {
	today := domain.DateOnly(now)
	return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), domain.EndOfDay(today)
}

// resolveRange fills a missing bound with the current-month default and makes
// the upper bound inclusive of its whole day.
func resolveRange(now, from, to time.Time) (time.Time, time.Time, error) {
	defFrom, defTo := monthRange(now)
	if from.IsZero() {
		from = defFrom
	}
	if to.IsZero() {
		to = defTo
	} else {
		to = domain.EndOfDay(to)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, &domain.ErrValidation{Field: "from", Message: "must not be after 'to'"}
	}
	return domain.DateOnly(from), to, nil
}
