// Package events publishes domain events to RabbitMQ. Delivery is best
// effort: services log publish failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/fintrack-bfa-go/internal/domain"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-bfa-go/internal/infra/resilience"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/events")

const serviceName = "amqp"

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events to a durable direct exchange, routed by event
// type. A single channel is shared and guarded by mu; amqp channels are not
// safe for concurrent publishing.
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       channel
	exchange string
	cb       *gobreaker.CircuitBreaker
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, metrics *observability.Metrics, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("amqp publisher ready", zap.String("exchange", exchange))
	return newPublisher(conn, ch, exchange, metrics, logger), nil
}

func newPublisher(conn *amqp.Connection, ch channel, exchange string, metrics *observability.Metrics, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		cb:       resilience.NewCircuitBreaker("amqp-publisher"),
		metrics:  metrics,
		logger:   logger,
	}
}

// Publish sends e as a persistent JSON message with routing key e.Type.
func (p *AMQPPublisher) Publish(ctx context.Context, e domain.Event) error {
	ctx, span := tracer.Start(ctx, "AMQPPublisher.Publish")
	defer span.End()

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = p.cb.Execute(func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return nil, p.ch.PublishWithContext(ctx,
			p.exchange,     // exchange
			string(e.Type), // routing key
			false,          // mandatory
			false,          // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    e.ID,
				Timestamp:    e.OccurredAt,
				Type:         string(e.Type),
				Body:         body,
			},
		)
	})

	p.metrics.IncrEvent(string(e.Type), err == nil)
	if err != nil {
		p.metrics.IncrExternalError(serviceName)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domain.ErrCircuitOpen{Service: serviceName}
		}
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	p.logger.Debug("event published",
		zap.String("type", string(e.Type)),
		zap.String("entity_id", e.EntityID),
		zap.String("exchange", p.exchange),
	)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
