package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// UserRepository handles firm membership lookups for the reviewer pool balancer.
type UserRepository interface {
	// Get retrieves a user by its ID within a firm.
	// Returns domain.ErrNotFound if no matching user exists.
	Get(ctx context.Context, firmID, id uuid.UUID) (*domain.User, error)

	// ListActiveByRole retrieves all active users in the firm holding the
	// given role, in stable ascending creation order. The ordering matters:
	// the balancer breaks workload ties by picking the first candidate.
	ListActiveByRole(ctx context.Context, firmID uuid.UUID, role domain.ReviewerRole) ([]*domain.User, error)
}
