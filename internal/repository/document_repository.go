package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// DocumentRepository handles document lifecycle state and version snapshots.
// Status and WorkflowStage are written exclusively through the workflow
// engine; the repository does not validate transitions itself.
type DocumentRepository interface {
	// Create inserts a new document.
	// Returns domain.ErrAlreadyExists if a document with the same ID already exists.
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by its ID within a firm.
	// Returns domain.ErrNotFound if no matching document exists.
	Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Document, error)

	// GetByID retrieves a document by ID without a firm scope. Used by the
	// archival sweep, which walks retention rows that carry no firm reference.
	// Returns domain.ErrNotFound if no matching document exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// Update performs a guarded update on a document using SELECT FOR UPDATE.
	// The provided function receives the current document state and should
	// return an error if the update should be aborted. Changes made to the
	// document in the function are persisted.
	// Returns domain.ErrNotFound if no matching document exists.
	Update(ctx context.Context, firmID, id uuid.UUID, fn func(*domain.Document) error) error

	// List retrieves documents matching the filter criteria.
	// Returns the matching documents and total count for pagination.
	List(ctx context.Context, filter DocumentFilter) ([]*domain.Document, int64, error)

	// CountInFlightForReviewer counts documents currently assigned to the
	// reviewer whose stage is one of the role's in-flight stages. This is the
	// balancer's workload read; it takes no reservation.
	CountInFlightForReviewer(ctx context.Context, reviewerID uuid.UUID, role domain.ReviewerRole) (int, error)

	// CreateVersion inserts a new version snapshot and flips the previous
	// current version's flag off in the same statement batch.
	CreateVersion(ctx context.Context, version *domain.DocumentVersion) error

	// ListVersions retrieves all versions for a document, newest first.
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error)

	// Delete permanently removes a document row. Dependent rows are removed
	// by the caller beforehand (or by ON DELETE CASCADE).
	// Returns domain.ErrNotFound if no matching document exists.
	Delete(ctx context.Context, firmID, id uuid.UUID) error
}

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	// FirmID filters by firm (required for tenant isolation).
	FirmID uuid.UUID

	// OwnerID filters by uploading user (optional).
	OwnerID *uuid.UUID

	// Status filters by one or more document statuses (optional).
	Status []domain.DocumentStatus

	// Stage filters by one or more workflow stages (optional).
	Stage []domain.WorkflowStage

	// AssignedTo filters to documents assigned to this user in any role (optional).
	AssignedTo *uuid.UUID

	// CreatedAfter filters to documents created after this timestamp (optional).
	CreatedAfter *time.Time

	// CreatedBefore filters to documents created before this timestamp (optional).
	CreatedBefore *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
// Returns domain.ErrInvalidInput if FirmID is empty.
func (f *DocumentFilter) Validate() error {
	if f.FirmID == uuid.Nil {
		return domain.NewValidationError("firm_id", "firm ID is required")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
