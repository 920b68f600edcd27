package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is the unit under review. Status and WorkflowStage are mutated by
// the workflow engine exclusively.
type Document struct {
	ID          uuid.UUID
	FirmID      uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string

	Status        DocumentStatus
	WorkflowStage WorkflowStage

	// DocumentType is the user-supplied or classifier-detected type used to
	// select a default retention policy. Empty types fall back to "Other".
	DocumentType string

	CurrentVersion int
	FileSize       int64
	ContentType    string

	// FileHash supports duplicate detection on upload.
	FileHash      string
	DuplicateOfID *uuid.UUID

	FolderID *uuid.UUID

	AssignedStaffID  *uuid.UUID
	AssignedLawyerID *uuid.UUID
	AssignedAdminID  *uuid.UUID

	// CurrentRemarks holds the most recent reviewer remarks for display.
	CurrentRemarks string

	StaffReviewedAt  *time.Time
	LawyerReviewedAt *time.Time
	AdminReviewedAt  *time.Time
	ApprovedAt       *time.Time

	// RetentionExpiryDate is a denormalized copy of the active retention
	// record's expiry, kept on the document for listing queries.
	RetentionExpiryDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssigneeForRole returns the currently assigned user for the given role.
func (d *Document) AssigneeForRole(role ReviewerRole) *uuid.UUID {
	switch role {
	case RoleStaff:
		return d.AssignedStaffID
	case RoleLawyer:
		return d.AssignedLawyerID
	case RoleAdmin:
		return d.AssignedAdminID
	default:
		return nil
	}
}

// DocumentVersion is an immutable snapshot of file content for a document.
// Exactly one version per document has IsCurrentVersion true at any moment.
type DocumentVersion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	VersionNumber int
	FilePath      string
	FileSize      int64
	ContentType   string
	FileHash      string

	IsCurrentVersion  bool
	ChangeDescription string
	UploadedByID      uuid.UUID

	CreatedAt time.Time
}
