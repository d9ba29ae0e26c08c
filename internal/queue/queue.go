package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
)

const (
	exchangeKind   = "topic"
	publishTimeout = 5 * time.Second
)

// EventPublisher delivers fund events to downstream consumers.
//
//go:generate mockery --name=EventPublisher --output=../../tests/mocks --outpkg=mocks --filename=mock_event_publisher.go
type EventPublisher interface {
	Publish(ctx context.Context, event *FundEvent) error
	Shutdown()
}

// QueueManager publishes fund events to a RabbitMQ topic exchange. The
// routing key is the event type.
type QueueManager struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewQueueManager(cfg *config.QueueConfig, logger *zap.Logger) (*QueueManager, error) {
	amqpURL, err := dialURL(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open queue channel: %w", err)
	}

	err = channel.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("connected to queue", zap.String("exchange", cfg.Exchange))

	return &QueueManager{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (qm *QueueManager) Publish(ctx context.Context, event *FundEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	qm.mu.Lock()
	defer qm.mu.Unlock()

	err = qm.channel.PublishWithContext(ctx, qm.exchange, event.Type.String(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Unix(event.Timestamp, 0),
		Body:         body,
	})
	if err != nil {
		metrics.RecordQueueSendError()
		qm.logger.Error("failed to publish event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.Type.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	qm.logger.Debug("event published",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.Type.String()),
	)
	return nil
}

// Shutdown gracefully stops the interaction with the queue, ensuring all resources are properly released.
func (qm *QueueManager) Shutdown() {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	qm.logger.Info("Shutting down queue manager")
	if err := qm.channel.Close(); err != nil {
		qm.logger.Warn("failed to close queue channel", zap.Error(err))
	}
	if err := qm.conn.Close(); err != nil {
		qm.logger.Warn("failed to close queue connection", zap.Error(err))
	}
}

// dialURL builds the amqp url from the configured address, which may or may
// not carry a scheme, and the configured credentials.
func dialURL(cfg *config.QueueConfig) (string, error) {
	raw := cfg.Url
	if !strings.Contains(raw, "://") {
		raw = "amqp://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid queue url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", fmt.Errorf("unsupported queue url scheme %q", u.Scheme)
	}
	u.User = url.UserPassword(cfg.User, cfg.Password)
	return u.String(), nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. It is used
// when no queue is configured.
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *FundEvent) error {
	return nil
}

func (noopPublisher) Shutdown() {}
