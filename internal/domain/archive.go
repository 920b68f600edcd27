package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledDeleteOffset is how long after auto-archival a document is kept
// before it becomes eligible for permanent deletion.
const ScheduledDeleteOffset = 365 * 24 * time.Hour

// Archive records a document's removal from active circulation, preserving
// enough original state to support a later restore. At most one active
// (non-restored, non-deleted) archive row exists per document.
type Archive struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	FirmID     uuid.UUID

	ArchiveType  ArchiveType
	Reason       string
	ArchivedByID *uuid.UUID

	OriginalStatus   DocumentStatus
	OriginalStage    WorkflowStage
	OriginalFolderID *uuid.UUID

	IsRestored   bool
	RestoredByID *uuid.UUID
	RestoredAt   *time.Time

	ScheduledDeleteDate *time.Time
	IsDeleted           bool
	DeletedAt           *time.Time

	CreatedAt time.Time
}

// IsActive reports whether the archive still holds the document out of
// circulation (neither restored nor permanently deleted).
func (a *Archive) IsActive() bool {
	return !a.IsRestored && !a.IsDeleted
}

// RestoreTarget returns the status and stage a restored document should
// re-enter. Rejected archives always route back to the staff queue for
// re-review, since the rejected stage itself was transient.
func (a *Archive) RestoreTarget() (DocumentStatus, WorkflowStage) {
	if a.ArchiveType == ArchiveTypeRejected || a.OriginalStage.IsRejected() {
		return DocumentStatusPending, StagePendingStaffReview
	}
	return a.OriginalStatus, a.OriginalStage
}
