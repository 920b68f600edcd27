// Package notify delivers workflow side effects to downstream systems.
//
// Notifications and audit events are best-effort: publish failures are
// reported to the caller for logging and metrics but never fail the workflow
// transition that produced them.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// Notifier publishes user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, notification *domain.Notification) error
}

// Auditor publishes audit trail events.
type Auditor interface {
	Audit(ctx context.Context, event *domain.AuditEvent) error
}

// LogSink is a Notifier and Auditor that writes events to the service log.
// Used when Kafka publishing is disabled.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify_log_sink").Logger()}
}

// Notify logs the notification at debug level.
func (s *LogSink) Notify(_ context.Context, notification *domain.Notification) error {
	s.logger.Debug().
		Str("user_id", notification.UserID.String()).
		Str("title", notification.Title).
		Str("type", string(notification.Type)).
		Msg("notification")
	return nil
}

// Audit logs the audit event at debug level.
func (s *LogSink) Audit(_ context.Context, event *domain.AuditEvent) error {
	s.logger.Debug().
		Str("action", event.Action).
		Str("entity_type", event.EntityType).
		Str("entity_id", event.EntityID.String()).
		Str("category", string(event.Category)).
		Msg("audit event")
	return nil
}
