// Package domain provides domain models and business rules for the Document
// Workflow Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the coarse outcome classification of a document.
// These values must match the database enum document_status.
type DocumentStatus string

const (
	DocumentStatusPending     DocumentStatus = "pending"
	DocumentStatusUnderReview DocumentStatus = "under_review"
	DocumentStatusApproved    DocumentStatus = "approved"
	DocumentStatusRejected    DocumentStatus = "rejected"
	DocumentStatusCompleted   DocumentStatus = "completed"
	DocumentStatusArchived    DocumentStatus = "archived"
)

// WorkflowStage is the fine-grained workflow position of a document.
// These values must match the database enum workflow_stage.
type WorkflowStage string

const (
	StageClientUpload        WorkflowStage = "client_upload"
	StagePendingStaffReview  WorkflowStage = "pending_staff_review"
	StageStaffReview         WorkflowStage = "staff_review"
	StageStaffRejected       WorkflowStage = "staff_rejected"
	StagePendingLawyerReview WorkflowStage = "pending_lawyer_review"
	StageLawyerReview        WorkflowStage = "lawyer_review"
	StageLawyerRejected      WorkflowStage = "lawyer_rejected"
	StagePendingAdminReview  WorkflowStage = "pending_admin_review"
	StageAdminReview         WorkflowStage = "admin_review"
	StageAdminRejected       WorkflowStage = "admin_rejected"
	StageCompleted           WorkflowStage = "completed"
	StageArchived            WorkflowStage = "archived"
)

// validStageTransitions defines the allowed stage transitions.
// Rejected stages are transient: a rejection is immediately followed by an
// archival transition, so they never persist as a steady state.
var validStageTransitions = map[WorkflowStage][]WorkflowStage{
	StageClientUpload: {
		StagePendingStaffReview,
		StageArchived,
	},
	StagePendingStaffReview: {
		StageStaffReview,
		StageStaffRejected,
		StagePendingLawyerReview,
		StageArchived,
	},
	StageStaffReview: {
		StageStaffRejected,
		StagePendingLawyerReview,
		StageArchived,
	},
	StageStaffRejected: {
		StageArchived,
	},
	StagePendingLawyerReview: {
		StageLawyerReview,
		StageLawyerRejected,
		StagePendingAdminReview,
		StageArchived,
	},
	StageLawyerReview: {
		StageLawyerRejected,
		StagePendingAdminReview,
		StageArchived,
	},
	StageLawyerRejected: {
		StageArchived,
	},
	StagePendingAdminReview: {
		StageAdminReview,
		StageAdminRejected,
		StageCompleted,
		StageArchived,
	},
	StageAdminReview: {
		StageAdminRejected,
		StageCompleted,
		StageArchived,
	},
	StageAdminRejected: {
		StageArchived,
	},
	StageCompleted: {
		StageArchived,
	},
	// Archived documents re-enter the workflow only through restore, which
	// sets stage directly from the archive's captured state.
}

// Valid reports whether s is one of the enumerated workflow stages.
func (s WorkflowStage) Valid() bool {
	switch s {
	case StageClientUpload, StagePendingStaffReview, StageStaffReview,
		StageStaffRejected, StagePendingLawyerReview, StageLawyerReview,
		StageLawyerRejected, StagePendingAdminReview, StageAdminReview,
		StageAdminRejected, StageCompleted, StageArchived:
		return true
	default:
		return false
	}
}

// IsRejected reports whether s is one of the transient rejection stages.
func (s WorkflowStage) IsRejected() bool {
	switch s {
	case StageStaffRejected, StageLawyerRejected, StageAdminRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is a terminal stage.
func (s WorkflowStage) IsTerminal() bool {
	return s == StageCompleted || s == StageArchived
}

// CanTransition reports whether the stage transition from -> to is allowed.
func CanTransition(from, to WorkflowStage) bool {
	for _, s := range validStageTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReviewerRole identifies the pool a reviewer belongs to.
// These values must match the database enum reviewer_role.
type ReviewerRole string

const (
	RoleStaff  ReviewerRole = "staff"
	RoleLawyer ReviewerRole = "lawyer"
	RoleAdmin  ReviewerRole = "admin"
)

// Valid reports whether r is one of the enumerated reviewer roles.
func (r ReviewerRole) Valid() bool {
	switch r {
	case RoleStaff, RoleLawyer, RoleAdmin:
		return true
	default:
		return false
	}
}

// InFlightStages returns the stages that count toward a reviewer's workload
// for this role. ClientUpload and PendingStaffReview are equivalent entry
// points for staff queueing.
func (r ReviewerRole) InFlightStages() []WorkflowStage {
	switch r {
	case RoleStaff:
		return []WorkflowStage{StageClientUpload, StagePendingStaffReview, StageStaffReview}
	case RoleLawyer:
		return []WorkflowStage{StagePendingLawyerReview, StageLawyerReview}
	case RoleAdmin:
		return []WorkflowStage{StagePendingAdminReview, StageAdminReview}
	default:
		return nil
	}
}

// ReviewDecision is the outcome of a single review.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// ArchiveType classifies why a document left active circulation.
// These values must match the database enum archive_type.
type ArchiveType string

const (
	ArchiveTypeManual      ArchiveType = "manual"
	ArchiveTypeRejected    ArchiveType = "rejected"
	ArchiveTypeRetention   ArchiveType = "retention"
	ArchiveTypeAutoExpired ArchiveType = "auto_expired"
	ArchiveTypeVersion     ArchiveType = "version"
)

// Valid reports whether t is one of the enumerated archive types.
func (t ArchiveType) Valid() bool {
	switch t {
	case ArchiveTypeManual, ArchiveTypeRejected, ArchiveTypeRetention,
		ArchiveTypeAutoExpired, ArchiveTypeVersion:
		return true
	default:
		return false
	}
}

// PermanentDeleteAllowed reports whether archives of this type may be
// permanently deleted without an explicit force flag.
func (t ArchiveType) PermanentDeleteAllowed() bool {
	return t == ArchiveTypeRetention || t == ArchiveTypeAutoExpired
}

// User represents a firm member who can own or review documents.
type User struct {
	ID        uuid.UUID
	FirmID    uuid.UUID
	Name      string
	Email     string
	Role      ReviewerRole
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
