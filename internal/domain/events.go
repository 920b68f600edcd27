package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a user notification for display.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is a user-facing message produced by a workflow transition.
// Delivery is fire-and-forget; failures never fail the transition.
type Notification struct {
	UserID     uuid.UUID        `json:"user_id"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	DocumentID *uuid.UUID       `json:"document_id,omitempty"`
	ActionURL  string           `json:"action_url,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// AuditCategory groups audit events for filtering.
type AuditCategory string

const (
	AuditCategoryWorkflow  AuditCategory = "workflow"
	AuditCategoryRetention AuditCategory = "retention"
	AuditCategoryArchive   AuditCategory = "archive"
	AuditCategoryDocument  AuditCategory = "document"
)

// AuditEvent is a best-effort audit trail entry for a workflow side effect.
type AuditEvent struct {
	Action      string                 `json:"action"`
	EntityType  string                 `json:"entity_type"`
	EntityID    uuid.UUID              `json:"entity_id"`
	ActorID     *uuid.UUID             `json:"actor_id,omitempty"`
	Description string                 `json:"description"`
	OldValues   map[string]interface{} `json:"old_values,omitempty"`
	NewValues   map[string]interface{} `json:"new_values,omitempty"`
	Category    AuditCategory          `json:"category"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Audit action constants.
const (
	AuditActionUploaded        = "document.uploaded"
	AuditActionAssigned        = "document.assigned"
	AuditActionStaffApproved   = "document.staff_approved"
	AuditActionStaffRejected   = "document.staff_rejected"
	AuditActionLawyerApproved  = "document.lawyer_approved"
	AuditActionLawyerRejected  = "document.lawyer_rejected"
	AuditActionAdminApproved   = "document.admin_approved"
	AuditActionAdminRejected   = "document.admin_rejected"
	AuditActionVersionUploaded = "document.version_uploaded"
	AuditActionArchived        = "document.archived"
	AuditActionRestored        = "document.restored"
	AuditActionDeleted         = "document.deleted"
	AuditActionRetentionSet    = "retention.set"
)
