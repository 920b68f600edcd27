package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/lexvault/document-workflow-service/internal/config"
	"github.com/lexvault/document-workflow-service/internal/domain"
)

// KafkaPublisher publishes notifications and audit events to Kafka topics.
// A token bucket limiter caps the publish rate so a sweep archiving a large
// backlog cannot flood the brokers.
type KafkaPublisher struct {
	notificationWriter *kafka.Writer
	auditWriter        *kafka.Writer
	limiter            *rate.Limiter
	logger             zerolog.Logger
}

// Compile-time interface verification.
var (
	_ Notifier = (*KafkaPublisher)(nil)
	_ Auditor  = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates a publisher for the configured topics.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireOne,
		}
	}

	return &KafkaPublisher{
		notificationWriter: newWriter(cfg.NotificationTopic),
		auditWriter:        newWriter(cfg.AuditTopic),
		limiter:            rate.NewLimiter(rate.Limit(cfg.PublishRateLimit), cfg.PublishBurst),
		logger:             logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

// Notify publishes a user notification keyed by user ID so all notifications
// for one user land on the same partition in order.
func (p *KafkaPublisher) Notify(ctx context.Context, notification *domain.Notification) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	value, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = p.notificationWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.UserID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Audit publishes an audit event keyed by entity ID.
func (p *KafkaPublisher) Audit(ctx context.Context, event *domain.AuditEvent) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = p.auditWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writers.
func (p *KafkaPublisher) Close() error {
	var firstErr error
	if err := p.notificationWriter.Close(); err != nil {
		firstErr = err
	}
	if err := p.auditWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
