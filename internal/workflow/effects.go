package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/notify"
	"github.com/lexvault/document-workflow-service/internal/observability"
)

// effectTimeout bounds each individual side effect so a slow sink cannot
// hold up the request that triggered it.
const effectTimeout = 5 * time.Second

// EffectRunner delivers the best-effort side effects of a committed
// transition. Each effect is wrapped individually: failures are logged and
// counted, never propagated.
type EffectRunner struct {
	notifier notify.Notifier
	auditor  notify.Auditor
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewEffectRunner creates an effect runner over the given sinks.
func NewEffectRunner(notifier notify.Notifier, auditor notify.Auditor, metrics *observability.Metrics, logger zerolog.Logger) *EffectRunner {
	return &EffectRunner{
		notifier: notifier,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger.With().Str("component", "effect_runner").Logger(),
	}
}

// Notify sends a user notification. Failures are swallowed.
func (r *EffectRunner) Notify(ctx context.Context, notification *domain.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectTimeout)
	defer cancel()

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	if err := r.notifier.Notify(ctx, notification); err != nil {
		r.metrics.SideEffectFailures.WithLabelValues("notification").Inc()
		r.logger.Warn().
			Err(err).
			Str("user_id", notification.UserID.String()).
			Str("title", notification.Title).
			Msg("notification delivery failed")
	}
}

// NotifyUsers sends the same notification to each user in the list.
// Used for role-wide alerts such as an unassignable document.
func (r *EffectRunner) NotifyUsers(ctx context.Context, userIDs []uuid.UUID, template domain.Notification) {
	for _, userID := range userIDs {
		n := template
		n.UserID = userID
		r.Notify(ctx, &n)
	}
}

// Audit records an audit event. Failures are swallowed.
func (r *EffectRunner) Audit(ctx context.Context, event *domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectTimeout)
	defer cancel()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := r.auditor.Audit(ctx, event); err != nil {
		r.metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		r.logger.Warn().
			Err(err).
			Str("action", event.Action).
			Str("entity_id", event.EntityID.String()).
			Msg("audit delivery failed")
	}
}
