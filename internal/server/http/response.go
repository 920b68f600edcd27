package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// Response types for JSON serialization.

type documentResponse struct {
	ID                  string     `json:"id"`
	FirmID              string     `json:"firm_id"`
	OwnerID             string     `json:"owner_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Status              string     `json:"status"`
	WorkflowStage       string     `json:"workflow_stage"`
	DocumentType        string     `json:"document_type,omitempty"`
	CurrentVersion      int        `json:"current_version"`
	FileSize            int64      `json:"file_size"`
	ContentType         string     `json:"content_type,omitempty"`
	FolderID            *string    `json:"folder_id,omitempty"`
	AssignedStaffID     *string    `json:"assigned_staff_id,omitempty"`
	AssignedLawyerID    *string    `json:"assigned_lawyer_id,omitempty"`
	AssignedAdminID     *string    `json:"assigned_admin_id,omitempty"`
	CurrentRemarks      string     `json:"current_remarks,omitempty"`
	StaffReviewedAt     *time.Time `json:"staff_reviewed_at,omitempty"`
	LawyerReviewedAt    *time.Time `json:"lawyer_reviewed_at,omitempty"`
	AdminReviewedAt     *time.Time `json:"admin_reviewed_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	RetentionExpiryDate *time.Time `json:"retention_expiry_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type createDocumentResponse struct {
	Document documentResponse `json:"document"`
	Assignee *string          `json:"assigned_staff_id,omitempty"`
	Message  string           `json:"message"`
}

type listDocumentsResponse struct {
	Documents     []documentResponse `json:"documents"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	TotalCount    int                `json:"total_count"`
}

type versionResponse struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id"`
	VersionNumber     int       `json:"version_number"`
	FileSize          int64     `json:"file_size"`
	ContentType       string    `json:"content_type,omitempty"`
	FileHash          string    `json:"file_hash,omitempty"`
	IsCurrentVersion  bool      `json:"is_current_version"`
	ChangeDescription string    `json:"change_description,omitempty"`
	UploadedByID      string    `json:"uploaded_by_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type listVersionsResponse struct {
	Versions []versionResponse `json:"versions"`
}

type reviewResponse struct {
	ID                  string    `json:"id"`
	DocumentID          string    `json:"document_id"`
	ReviewerID          string    `json:"reviewer_id"`
	ReviewerRole        string    `json:"reviewer_role"`
	Decision            string    `json:"decision"`
	Remarks             string    `json:"remarks,omitempty"`
	IsChecklistComplete bool      `json:"is_checklist_complete"`
	ChecklistScore      int       `json:"checklist_score"`
	ReviewedAt          time.Time `json:"reviewed_at"`
}

type submitReviewResponse struct {
	Review    reviewResponse     `json:"review"`
	Retention *retentionResponse `json:"retention,omitempty"`
	Message   string             `json:"message"`
}

type listReviewsResponse struct {
	Reviews []reviewResponse `json:"reviews"`
}

type checklistResultResponse struct {
	ID              string `json:"id"`
	ChecklistItemID int64  `json:"checklist_item_id"`
	Passed          bool   `json:"passed"`
	Comments        string `json:"comments,omitempty"`
}

type checklistResponse struct {
	ReviewID string                    `json:"review_id"`
	Results  []checklistResultResponse `json:"results"`
}

type assignResponse struct {
	DocumentID string  `json:"document_id"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Message    string  `json:"message"`
}

type retentionResponse struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	PolicyID   *string   `json:"policy_id,omitempty"`
	Years      int       `json:"years"`
	Months     int       `json:"months"`
	Days       int       `json:"days"`
	StartDate  time.Time `json:"start_date"`
	ExpiryDate time.Time `json:"expiry_date"`
	IsArchived bool      `json:"is_archived"`
}

type policyResponse struct {
	ID           string    `json:"id"`
	FirmID       string    `json:"firm_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	DocumentType string    `json:"document_type"`
	Years        int       `json:"years"`
	Months       int       `json:"months"`
	Days         int       `json:"days"`
	IsDefault    bool      `json:"is_default"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type listPoliciesResponse struct {
	Policies []policyResponse `json:"policies"`
}

type archiveResponse struct {
	ID                  string     `json:"id"`
	DocumentID          string     `json:"document_id"`
	FirmID              string     `json:"firm_id"`
	ArchiveType         string     `json:"archive_type"`
	Reason              string     `json:"reason,omitempty"`
	ArchivedByID        *string    `json:"archived_by_id,omitempty"`
	OriginalStatus      string     `json:"original_status"`
	OriginalStage       string     `json:"original_workflow_stage"`
	IsRestored          bool       `json:"is_restored"`
	RestoredByID        *string    `json:"restored_by_id,omitempty"`
	RestoredAt          *time.Time `json:"restored_at,omitempty"`
	ScheduledDeleteDate *time.Time `json:"scheduled_delete_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type listArchivesResponse struct {
	Archives      []archiveResponse `json:"archives"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	TotalCount    int               `json:"total_count"`
}

type sweepTriggerResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Message    string `json:"message"`
}

// Converter functions

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func domainDocumentToResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:                  d.ID.String(),
		FirmID:              d.FirmID.String(),
		OwnerID:             d.OwnerID.String(),
		Title:               d.Title,
		Description:         d.Description,
		Status:              string(d.Status),
		WorkflowStage:       string(d.WorkflowStage),
		DocumentType:        d.DocumentType,
		CurrentVersion:      d.CurrentVersion,
		FileSize:            d.FileSize,
		ContentType:         d.ContentType,
		FolderID:            uuidPtrToString(d.FolderID),
		AssignedStaffID:     uuidPtrToString(d.AssignedStaffID),
		AssignedLawyerID:    uuidPtrToString(d.AssignedLawyerID),
		AssignedAdminID:     uuidPtrToString(d.AssignedAdminID),
		CurrentRemarks:      d.CurrentRemarks,
		StaffReviewedAt:     d.StaffReviewedAt,
		LawyerReviewedAt:    d.LawyerReviewedAt,
		AdminReviewedAt:     d.AdminReviewedAt,
		ApprovedAt:          d.ApprovedAt,
		RetentionExpiryDate: d.RetentionExpiryDate,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func domainVersionToResponse(v *domain.DocumentVersion) versionResponse {
	return versionResponse{
		ID:                v.ID.String(),
		DocumentID:        v.DocumentID.String(),
		VersionNumber:     v.VersionNumber,
		FileSize:          v.FileSize,
		ContentType:       v.ContentType,
		FileHash:          v.FileHash,
		IsCurrentVersion:  v.IsCurrentVersion,
		ChangeDescription: v.ChangeDescription,
		UploadedByID:      v.UploadedByID.String(),
		CreatedAt:         v.CreatedAt,
	}
}

func domainReviewToResponse(r *domain.DocumentReview) reviewResponse {
	return reviewResponse{
		ID:                  r.ID.String(),
		DocumentID:          r.DocumentID.String(),
		ReviewerID:          r.ReviewerID.String(),
		ReviewerRole:        string(r.ReviewerRole),
		Decision:            string(r.Decision),
		Remarks:             r.Remarks,
		IsChecklistComplete: r.IsChecklistComplete,
		ChecklistScore:      r.ChecklistScore,
		ReviewedAt:          r.ReviewedAt,
	}
}

func domainRetentionToResponse(r *domain.DocumentRetention) retentionResponse {
	return retentionResponse{
		ID:         r.ID.String(),
		DocumentID: r.DocumentID.String(),
		PolicyID:   uuidPtrToString(r.PolicyID),
		Years:      r.Years,
		Months:     r.Months,
		Days:       r.Days,
		StartDate:  r.StartDate,
		ExpiryDate: r.ExpiryDate,
		IsArchived: r.IsArchived,
	}
}

func domainPolicyToResponse(p *domain.RetentionPolicy) policyResponse {
	return policyResponse{
		ID:           p.ID.String(),
		FirmID:       p.FirmID.String(),
		Name:         p.Name,
		Description:  p.Description,
		DocumentType: p.DocumentType,
		Years:        p.Years,
		Months:       p.Months,
		Days:         p.Days,
		IsDefault:    p.IsDefault,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
}

func domainArchiveToResponse(a *domain.Archive) archiveResponse {
	return archiveResponse{
		ID:                  a.ID.String(),
		DocumentID:          a.DocumentID.String(),
		FirmID:              a.FirmID.String(),
		ArchiveType:         string(a.ArchiveType),
		Reason:              a.Reason,
		ArchivedByID:        uuidPtrToString(a.ArchivedByID),
		OriginalStatus:      string(a.OriginalStatus),
		OriginalStage:       string(a.OriginalStage),
		IsRestored:          a.IsRestored,
		RestoredByID:        uuidPtrToString(a.RestoredByID),
		RestoredAt:          a.RestoredAt,
		ScheduledDeleteDate: a.ScheduledDeleteDate,
		CreatedAt:           a.CreatedAt,
	}
}
