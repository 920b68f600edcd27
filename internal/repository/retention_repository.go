package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// RetentionRepository handles retention policies and per-document retention
// assignments.
type RetentionRepository interface {
	// CreatePolicy inserts a new retention policy.
	// Returns domain.ErrAlreadyExists on a duplicate ID or duplicate active
	// default for the same (firm, document type).
	CreatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error

	// GetPolicy retrieves a policy by its ID within a firm.
	// Returns domain.ErrNotFound if no matching policy exists.
	GetPolicy(ctx context.Context, firmID, id uuid.UUID) (*domain.RetentionPolicy, error)

	// UpdatePolicy persists changes to an existing policy.
	// Returns domain.ErrNotFound if no matching policy exists.
	UpdatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error

	// SetDefaultPolicy atomically flags the policy as the default for its
	// (firm, document type) pair, clearing the flag on any other policy for
	// the same pair.
	SetDefaultPolicy(ctx context.Context, firmID, id uuid.UUID) error

	// GetDefaultPolicy retrieves the active default policy for a firm and
	// document type. Returns domain.ErrNotFound when no default exists;
	// callers fall back to the built-in retention period.
	GetDefaultPolicy(ctx context.Context, firmID uuid.UUID, documentType string) (*domain.RetentionPolicy, error)

	// ListPolicies retrieves all policies for a firm, default-first.
	ListPolicies(ctx context.Context, firmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error)

	// CreateRetention inserts a retention assignment for a document.
	// Returns domain.ErrAlreadyExists if the document already has a
	// retention row.
	CreateRetention(ctx context.Context, retention *domain.DocumentRetention) error

	// GetByDocument retrieves the retention assignment for a document.
	// Returns domain.ErrNotFound if the document has no retention row.
	GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error)

	// UpdateRetention persists changed period, expiry and archived fields of
	// an existing retention row.
	UpdateRetention(ctx context.Context, retention *domain.DocumentRetention) error

	// MarkArchived flags the document's retention row as archived. Marking an
	// already archived row is a no-op.
	MarkArchived(ctx context.Context, documentID uuid.UUID) error

	// ListExpired retrieves up to limit unarchived retention rows whose
	// expiry date is at or before the given time, oldest expiry first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.DocumentRetention, error)

	// DeleteByDocument removes the retention row for a document, if any.
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}
