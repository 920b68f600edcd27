package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/observability"
	"github.com/lexvault/document-workflow-service/internal/repository"
)

// Balancer selects the least-loaded active reviewer of a role within a firm.
//
// The workload count is a read taken at assignment time with no reservation.
// Two concurrent assignments can both count before either commits, producing
// mild imbalance under load; this is a soft heuristic, not a hard constraint,
// and taking cross-document locks here would stall unrelated assignments.
type Balancer struct {
	users   repository.UserRepository
	docs    repository.DocumentRepository
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewBalancer creates a balancer over the given repositories.
func NewBalancer(users repository.UserRepository, docs repository.DocumentRepository, metrics *observability.Metrics, logger zerolog.Logger) *Balancer {
	return &Balancer{
		users:   users,
		docs:    docs,
		metrics: metrics,
		logger:  logger.With().Str("component", "balancer").Logger(),
	}
}

// AssignLeastLoaded returns the active member of the role's pool with the
// fewest in-flight assigned documents. Ties go to the first candidate in the
// pool's stable retrieval order. An empty pool is not an error: the method
// returns (nil, nil) and the caller leaves the document unassigned.
func (b *Balancer) AssignLeastLoaded(ctx context.Context, firmID uuid.UUID, role domain.ReviewerRole) (*domain.User, error) {
	candidates, err := b.users.ListActiveByRole(ctx, firmID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s pool: %w", role, err)
	}

	if len(candidates) == 0 {
		b.metrics.AssignmentsUnavailable.WithLabelValues(string(role)).Inc()
		b.logger.Warn().
			Str("firm_id", firmID.String()).
			Str("role", string(role)).
			Msg("no active reviewers available for assignment")
		return nil, nil
	}

	var best *domain.User
	bestCount := -1
	for _, candidate := range candidates {
		count, err := b.docs.CountInFlightForReviewer(ctx, candidate.ID, role)
		if err != nil {
			return nil, fmt.Errorf("failed to count workload for %s: %w", candidate.ID, err)
		}

		// Strictly-less keeps the first candidate on ties.
		if best == nil || count < bestCount {
			best = candidate
			bestCount = count
		}
	}

	b.metrics.DocumentsAssigned.WithLabelValues(string(role)).Inc()
	b.logger.Debug().
		Str("firm_id", firmID.String()).
		Str("role", string(role)).
		Str("reviewer_id", best.ID.String()).
		Int("workload", bestCount).
		Msg("selected least-loaded reviewer")

	return best, nil
}
