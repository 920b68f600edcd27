package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// ArchiveRepository handles archive rows. At most one active (non-restored,
// non-deleted) archive exists per document; the partial unique index on the
// archives table enforces this and Create maps the violation to
// domain.ErrAlreadyExists.
type ArchiveRepository interface {
	// Create inserts a new archive row.
	// Returns domain.ErrAlreadyExists if the document already has an active
	// archive.
	Create(ctx context.Context, archive *domain.Archive) error

	// Get retrieves an archive by its ID within a firm.
	// Returns domain.ErrNotFound if no matching archive exists.
	Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Archive, error)

	// GetActiveByDocument retrieves the document's active archive, if any.
	// Returns domain.ErrNotFound when the document has no active archive.
	GetActiveByDocument(ctx context.Context, documentID uuid.UUID) (*domain.Archive, error)

	// MarkRestored closes an active archive as restored.
	// Returns domain.ErrNotFound if the archive does not exist or is no
	// longer active.
	MarkRestored(ctx context.Context, firmID, id uuid.UUID, restoredByID uuid.UUID, restoredAt time.Time) error

	// MarkDeleted closes an active archive as permanently deleted.
	// Returns domain.ErrNotFound if the archive does not exist or is no
	// longer active.
	MarkDeleted(ctx context.Context, firmID, id uuid.UUID, deletedAt time.Time) error

	// List retrieves archives matching the filter criteria.
	List(ctx context.Context, filter ArchiveFilter) ([]*domain.Archive, int64, error)
}

// ArchiveFilter specifies criteria for listing archives.
type ArchiveFilter struct {
	// FirmID filters by firm (required for tenant isolation).
	FirmID uuid.UUID

	// DocumentID filters to archives of one document (optional).
	DocumentID *uuid.UUID

	// ArchiveType filters by one or more archive types (optional).
	ArchiveType []domain.ArchiveType

	// ActiveOnly restricts results to non-restored, non-deleted archives.
	ActiveOnly bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
// Returns domain.ErrInvalidInput if FirmID is empty.
func (f *ArchiveFilter) Validate() error {
	if f.FirmID == uuid.Nil {
		return domain.NewValidationError("firm_id", "firm ID is required")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
