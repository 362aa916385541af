package events

import (
	"context"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"go.uber.org/zap"
)

// NoopPublisher drops events. Used when AMQP_URL is empty.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, e domain.Event) error {
	p.logger.Debug("event dropped", zap.String("type", string(e.Type)), zap.String("entity_id", e.EntityID))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
