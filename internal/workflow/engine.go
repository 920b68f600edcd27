package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/observability"
)

// checklistWriteRetries is how many times the checklist follow-up write is
// attempted after the review's core fields have committed.
const checklistWriteRetries = 2

// Engine owns the document Status/WorkflowStage pair and orchestrates every
// transition. No other component writes those fields.
type Engine struct {
	db       DB
	repos    Repos
	factory  RepoFactory
	balancer *Balancer
	archiver *Archiver
	effects  *EffectRunner
	files    FileStore
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine creates the workflow engine.
func NewEngine(db DB, factory RepoFactory, archiver *Archiver, effects *EffectRunner, files FileStore, metrics *observability.Metrics, logger zerolog.Logger) *Engine {
	repos := factory(db)
	return &Engine{
		db:       db,
		repos:    repos,
		factory:  factory,
		balancer: NewBalancer(repos.Users, repos.Documents, metrics, logger),
		archiver: archiver,
		effects:  effects,
		files:    files,
		metrics:  metrics,
		logger:   logger.With().Str("component", "workflow_engine").Logger(),
		now:      nowUTC,
	}
}

// Balancer exposes the engine's reviewer pool balancer.
func (e *Engine) Balancer() *Balancer {
	return e.balancer
}

// ReviewInput carries a reviewer's decision details.
type ReviewInput struct {
	Remarks       string
	InternalNotes string
	Checklist     []domain.ChecklistInput
}

// UploadInput describes a freshly uploaded document.
type UploadInput struct {
	FirmID       uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	Description  string
	DocumentType string
	FolderID     *uuid.UUID
	FilePath     string
	FileSize     int64
	ContentType  string
	FileHash     string
}

// VersionInput describes a replacement file uploaded during review.
type VersionInput struct {
	FilePath          string
	FileSize          int64
	ContentType       string
	FileHash          string
	ChangeDescription string
}

// CreateDocument registers an uploaded document with its initial version and
// queues it for staff review. The returned assignee is nil when the firm has
// no active staff; the document stays unassigned until an operator intervenes.
func (e *Engine) CreateDocument(ctx context.Context, input UploadInput) (*domain.Document, *domain.User, error) {
	if input.Title == "" {
		return nil, nil, domain.NewValidationError("title", "title is required")
	}
	if input.FirmID == uuid.Nil {
		return nil, nil, domain.NewValidationError("firm_id", "firm ID is required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, nil, domain.NewValidationError("owner_id", "owner ID is required")
	}

	now := e.now()
	doc := &domain.Document{
		ID:             uuid.New(),
		FirmID:         input.FirmID,
		OwnerID:        input.OwnerID,
		Title:          input.Title,
		Description:    input.Description,
		Status:         domain.DocumentStatusPending,
		WorkflowStage:  domain.StageClientUpload,
		DocumentType:   input.DocumentType,
		CurrentVersion: 1,
		FileSize:       input.FileSize,
		ContentType:    input.ContentType,
		FileHash:       input.FileHash,
		FolderID:       input.FolderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	version := &domain.DocumentVersion{
		ID:               uuid.New(),
		DocumentID:       doc.ID,
		VersionNumber:    1,
		FilePath:         input.FilePath,
		FileSize:         input.FileSize,
		ContentType:      input.ContentType,
		FileHash:         input.FileHash,
		IsCurrentVersion: true,
		UploadedByID:     input.OwnerID,
		CreatedAt:        now,
	}

	err := e.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		repos := e.factory(tx)
		if err := repos.Documents.Create(ctx, doc); err != nil {
			return err
		}
		return repos.Documents.CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, nil, err
	}

	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionUploaded,
		EntityType:  "document",
		EntityID:    doc.ID,
		ActorID:     &input.OwnerID,
		Description: fmt.Sprintf("document %q uploaded", doc.Title),
		Category:    domain.AuditCategoryDocument,
	})

	assignee, err := e.AssignToStaff(ctx, doc.FirmID, doc.ID)
	if err != nil {
		// The document is created and queued; assignment can be retried.
		e.logger.Error().Err(err).
			Str("document_id", doc.ID.String()).
			Msg("staff assignment failed after upload")
		return doc, nil, nil
	}

	return doc, assignee, nil
}

// AssignToStaff picks the least-loaded active staff member and queues the
// document for staff review. An empty staff pool leaves the document
// unassigned in PendingStaffReview; this is logged, not an error.
func (e *Engine) AssignToStaff(ctx context.Context, firmID, documentID uuid.UUID) (*domain.User, error) {
	assignee, err := e.balancer.AssignLeastLoaded(ctx, firmID, domain.RoleStaff)
	if err != nil {
		return nil, err
	}

	err = e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		return repos.Documents.Update(ctx, firmID, documentID, func(doc *domain.Document) error {
			if doc.WorkflowStage != domain.StageClientUpload && doc.WorkflowStage != domain.StagePendingStaffReview {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, domain.StagePendingStaffReview, "assign to staff")
			}
			doc.Status = domain.DocumentStatusPending
			doc.WorkflowStage = domain.StagePendingStaffReview
			if assignee != nil {
				doc.AssignedStaffID = &assignee.ID
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if assignee == nil {
		e.alertAdminsUnassigned(ctx, firmID, documentID)
		return nil, nil
	}

	e.effects.Notify(ctx, &domain.Notification{
		UserID:     assignee.ID,
		Title:      "Document assigned for review",
		Message:    "A new document is waiting for your staff review.",
		Type:       domain.NotificationInfo,
		DocumentID: &documentID,
	})
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionAssigned,
		EntityType:  "document",
		EntityID:    documentID,
		Description: fmt.Sprintf("assigned to staff %s", assignee.ID),
		NewValues:   map[string]interface{}{"assigned_staff_id": assignee.ID},
		Category:    domain.AuditCategoryWorkflow,
	})

	return assignee, nil
}

// StartReview moves a document from its pending queue into active review by
// the assigned reviewer and marks it under review.
func (e *Engine) StartReview(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole) error {
	var target domain.WorkflowStage
	switch role {
	case domain.RoleStaff:
		target = domain.StageStaffReview
	case domain.RoleLawyer:
		target = domain.StageLawyerReview
	case domain.RoleAdmin:
		target = domain.StageAdminReview
	default:
		return domain.NewValidationError("role", fmt.Sprintf("unknown reviewer role: %s", role))
	}

	return e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		return repos.Documents.Update(ctx, firmID, documentID, func(doc *domain.Document) error {
			if !domain.CanTransition(doc.WorkflowStage, target) {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, target, "start review")
			}
			if assigned := doc.AssigneeForRole(role); assigned == nil || *assigned != reviewerID {
				return domain.ErrForbidden
			}
			doc.WorkflowStage = target
			doc.Status = domain.DocumentStatusUnderReview
			return nil
		})
	})
}

// StaffApprove records the staff approval and forwards the document to the
// lawyer pool.
func (e *Engine) StaffApprove(ctx context.Context, firmID, documentID, staffID uuid.UUID, input ReviewInput) (*domain.DocumentReview, error) {
	return e.approveAndForward(ctx, firmID, documentID, staffID, domain.RoleStaff, input)
}

// StaffReject records the staff rejection and immediately archives the
// document. Remarks are mandatory.
func (e *Engine) StaffReject(ctx context.Context, firmID, documentID, staffID uuid.UUID, input ReviewInput) (*domain.DocumentReview, error) {
	return e.rejectAndArchive(ctx, firmID, documentID, staffID, domain.RoleStaff, input)
}

// LawyerApprove records the lawyer approval and forwards the document to the
// admin pool.
func (e *Engine) LawyerApprove(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input ReviewInput) (*domain.DocumentReview, error) {
	return e.approveAndForward(ctx, firmID, documentID, lawyerID, domain.RoleLawyer, input)
}

// LawyerReject records the lawyer rejection and immediately archives the
// document. The originally assigned staff member is notified as well.
func (e *Engine) LawyerReject(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input ReviewInput) (*domain.DocumentReview, error) {
	return e.rejectAndArchive(ctx, firmID, documentID, lawyerID, domain.RoleLawyer, input)
}

// StaffEditDocument uploads a replacement file during staff review.
func (e *Engine) StaffEditDocument(ctx context.Context, firmID, documentID, staffID uuid.UUID, input VersionInput) (*domain.DocumentVersion, error) {
	return e.editDocument(ctx, firmID, documentID, staffID, domain.RoleStaff, input)
}

// LawyerEditDocument uploads a replacement file during lawyer review.
func (e *Engine) LawyerEditDocument(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input VersionInput) (*domain.DocumentVersion, error) {
	return e.editDocument(ctx, firmID, documentID, lawyerID, domain.RoleLawyer, input)
}

// forwardTarget maps an approving role to the next stage, its pool role and
// the audit action.
func forwardTarget(role domain.ReviewerRole) (domain.WorkflowStage, domain.ReviewerRole, string, error) {
	switch role {
	case domain.RoleStaff:
		return domain.StagePendingLawyerReview, domain.RoleLawyer, domain.AuditActionStaffApproved, nil
	case domain.RoleLawyer:
		return domain.StagePendingAdminReview, domain.RoleAdmin, domain.AuditActionLawyerApproved, nil
	default:
		return "", "", "", domain.NewValidationError("role", fmt.Sprintf("role %s cannot forward a document", role))
	}
}

// rejectedStage maps a rejecting role to its transient rejection stage and
// audit action.
func rejectedStage(role domain.ReviewerRole) (domain.WorkflowStage, string, error) {
	switch role {
	case domain.RoleStaff:
		return domain.StageStaffRejected, domain.AuditActionStaffRejected, nil
	case domain.RoleLawyer:
		return domain.StageLawyerRejected, domain.AuditActionLawyerRejected, nil
	case domain.RoleAdmin:
		return domain.StageAdminRejected, domain.AuditActionAdminRejected, nil
	default:
		return "", "", domain.NewValidationError("role", fmt.Sprintf("role %s cannot reject a document", role))
	}
}

// approveAndForward commits the review row and stage advance in one
// transaction, then assigns the next role's reviewer, writes the checklist
// follow-up and runs notifications.
func (e *Engine) approveAndForward(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole, input ReviewInput) (*domain.DocumentReview, error) {
	start := e.now()
	nextStage, nextRole, auditAction, err := forwardTarget(role)
	if err != nil {
		return nil, err
	}

	// Workload read taken before the transaction; the balancer is a soft
	// heuristic and takes no reservation.
	nextAssignee, err := e.balancer.AssignLeastLoaded(ctx, firmID, nextRole)
	if err != nil {
		return nil, err
	}

	review := e.buildReview(documentID, reviewerID, role, domain.DecisionApproved, input)

	var ownerID uuid.UUID
	err = e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		err := repos.Documents.Update(ctx, firmID, documentID, func(doc *domain.Document) error {
			if !domain.CanTransition(doc.WorkflowStage, nextStage) {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, nextStage, string(role)+" approve")
			}
			stampReview(doc, role, review.ReviewedAt)
			doc.CurrentRemarks = input.Remarks
			doc.WorkflowStage = nextStage
			doc.Status = domain.DocumentStatusUnderReview
			switch nextRole {
			case domain.RoleLawyer:
				doc.AssignedLawyerID = assigneeID(nextAssignee)
			case domain.RoleAdmin:
				doc.AssignedAdminID = assigneeID(nextAssignee)
			}
			ownerID = doc.OwnerID
			return nil
		})
		if err != nil {
			return err
		}
		return repos.Reviews.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ReviewsRecorded.WithLabelValues(string(role), string(domain.DecisionApproved)).Inc()
	e.writeChecklist(ctx, review.ID, input.Checklist)

	if nextAssignee == nil {
		e.logger.Warn().
			Str("document_id", documentID.String()).
			Str("role", string(nextRole)).
			Msg("document forwarded without an assignee")
	} else {
		e.effects.Notify(ctx, &domain.Notification{
			UserID:     nextAssignee.ID,
			Title:      "Document assigned for review",
			Message:    fmt.Sprintf("A document is waiting for your %s review.", nextRole),
			Type:       domain.NotificationInfo,
			DocumentID: &documentID,
		})
	}
	e.effects.Notify(ctx, &domain.Notification{
		UserID:     ownerID,
		Title:      "Document review progressed",
		Message:    fmt.Sprintf("Your document passed %s review.", role),
		Type:       domain.NotificationSuccess,
		DocumentID: &documentID,
	})
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      auditAction,
		EntityType:  "document",
		EntityID:    documentID,
		ActorID:     &reviewerID,
		Description: fmt.Sprintf("%s approved, forwarded to %s", role, nextStage),
		NewValues:   map[string]interface{}{"workflow_stage": nextStage},
		Category:    domain.AuditCategoryWorkflow,
	})

	e.metrics.OperationDuration.WithLabelValues(string(role) + "_approve").Observe(e.now().Sub(start).Seconds())
	return review, nil
}

// rejectAndArchive commits the rejection review and transient rejected stage
// in one transaction, then invokes the immediate archive path. Archival is a
// best-effort consequence: its failure is logged but does not fail the
// rejection.
func (e *Engine) rejectAndArchive(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole, input ReviewInput) (*domain.DocumentReview, error) {
	start := e.now()
	if strings.TrimSpace(input.Remarks) == "" {
		return nil, domain.NewValidationError("remarks", "rejection remarks are required")
	}

	stage, auditAction, err := rejectedStage(role)
	if err != nil {
		return nil, err
	}

	review := e.buildReview(documentID, reviewerID, role, domain.DecisionRejected, input)

	var (
		ownerID uuid.UUID
		staffID *uuid.UUID
	)
	err = e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		err := repos.Documents.Update(ctx, firmID, documentID, func(doc *domain.Document) error {
			if !domain.CanTransition(doc.WorkflowStage, stage) {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, stage, string(role)+" reject")
			}
			stampReview(doc, role, review.ReviewedAt)
			doc.CurrentRemarks = input.Remarks
			doc.WorkflowStage = stage
			doc.Status = domain.DocumentStatusRejected
			ownerID = doc.OwnerID
			staffID = doc.AssignedStaffID
			return nil
		})
		if err != nil {
			return err
		}
		return repos.Reviews.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ReviewsRecorded.WithLabelValues(string(role), string(domain.DecisionRejected)).Inc()
	e.writeChecklist(ctx, review.ID, input.Checklist)

	if _, _, archErr := e.archiver.Archive(ctx, firmID, documentID, domain.ArchiveTypeRejected, input.Remarks, &reviewerID); archErr != nil {
		e.logger.Error().Err(archErr).
			Str("document_id", documentID.String()).
			Msg("immediate archive after rejection failed")
	}

	e.effects.Notify(ctx, &domain.Notification{
		UserID:     ownerID,
		Title:      "Document rejected",
		Message:    fmt.Sprintf("Your document was rejected during %s review: %s", role, input.Remarks),
		Type:       domain.NotificationError,
		DocumentID: &documentID,
	})
	// Lawyer and admin rejections also loop feedback to the staff reviewer.
	if role != domain.RoleStaff && staffID != nil && *staffID != reviewerID {
		e.effects.Notify(ctx, &domain.Notification{
			UserID:     *staffID,
			Title:      "Reviewed document rejected",
			Message:    fmt.Sprintf("A document you reviewed was rejected during %s review.", role),
			Type:       domain.NotificationWarning,
			DocumentID: &documentID,
		})
	}
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      auditAction,
		EntityType:  "document",
		EntityID:    documentID,
		ActorID:     &reviewerID,
		Description: fmt.Sprintf("%s rejected: %s", role, input.Remarks),
		NewValues:   map[string]interface{}{"workflow_stage": stage, "status": domain.DocumentStatusRejected},
		Category:    domain.AuditCategoryWorkflow,
	})

	e.metrics.OperationDuration.WithLabelValues(string(role) + "_reject").Observe(e.now().Sub(start).Seconds())
	return review, nil
}

// editDocument creates a new version snapshot during review without changing
// the workflow stage.
func (e *Engine) editDocument(ctx context.Context, firmID, documentID, actorID uuid.UUID, role domain.ReviewerRole, input VersionInput) (*domain.DocumentVersion, error) {
	if input.FilePath == "" {
		return nil, domain.NewValidationError("file_path", "file path is required")
	}

	now := e.now()
	version := &domain.DocumentVersion{
		ID:                uuid.New(),
		DocumentID:        documentID,
		FilePath:          input.FilePath,
		FileSize:          input.FileSize,
		ContentType:       input.ContentType,
		FileHash:          input.FileHash,
		IsCurrentVersion:  true,
		ChangeDescription: input.ChangeDescription,
		UploadedByID:      actorID,
		CreatedAt:         now,
	}

	var ownerID uuid.UUID
	err := e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		err := repos.Documents.Update(ctx, firmID, documentID, func(doc *domain.Document) error {
			if !stageInFlight(doc.WorkflowStage, role) {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, doc.WorkflowStage, string(role)+" edit")
			}
			doc.CurrentVersion++
			doc.FileSize = input.FileSize
			doc.ContentType = input.ContentType
			doc.FileHash = input.FileHash
			version.VersionNumber = doc.CurrentVersion
			ownerID = doc.OwnerID
			return nil
		})
		if err != nil {
			return err
		}
		return repos.Documents.CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.VersionsUploaded.Inc()
	e.effects.Notify(ctx, &domain.Notification{
		UserID:     ownerID,
		Title:      "Document updated",
		Message:    fmt.Sprintf("A reviewer uploaded version %d of your document.", version.VersionNumber),
		Type:       domain.NotificationInfo,
		DocumentID: &documentID,
	})
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionVersionUploaded,
		EntityType:  "document",
		EntityID:    documentID,
		ActorID:     &actorID,
		Description: fmt.Sprintf("version %d uploaded during %s review", version.VersionNumber, role),
		NewValues:   map[string]interface{}{"version_number": version.VersionNumber},
		Category:    domain.AuditCategoryDocument,
	})

	return version, nil
}

// inDocumentTx runs fn inside a transaction holding the document's advisory
// lock, with all repositories bound to that transaction.
func (e *Engine) inDocumentTx(ctx context.Context, documentID uuid.UUID, fn func(repos Repos) error) error {
	return e.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := e.db.AcquireAdvisoryLockTx(ctx, tx, documentLockKey(documentID)); err != nil {
			return fmt.Errorf("failed to acquire document lock: %w", err)
		}
		return fn(e.factory(tx))
	})
}

// buildReview assembles the append-only review row for a decision.
func (e *Engine) buildReview(documentID, reviewerID uuid.UUID, role domain.ReviewerRole, decision domain.ReviewDecision, input ReviewInput) *domain.DocumentReview {
	now := e.now()
	return &domain.DocumentReview{
		ID:                  uuid.New(),
		DocumentID:          documentID,
		ReviewerID:          reviewerID,
		ReviewerRole:        role,
		Decision:            decision,
		Remarks:             input.Remarks,
		InternalNotes:       input.InternalNotes,
		IsChecklistComplete: domain.ChecklistComplete(input.Checklist),
		ChecklistScore:      domain.ChecklistScore(input.Checklist),
		ReviewedAt:          now,
		CreatedAt:           now,
	}
}

// writeChecklist persists the checklist results as a follow-up to the
// committed review. The write is retried and failures are surfaced through
// logs and metrics, never to the caller: the insert is conflict-free to
// retry and the review's completeness and score fields are already durable.
func (e *Engine) writeChecklist(ctx context.Context, reviewID uuid.UUID, checklist []domain.ChecklistInput) {
	if len(checklist) == 0 {
		return
	}

	now := e.now()
	results := make([]*domain.DocumentChecklistResult, 0, len(checklist))
	for _, item := range checklist {
		results = append(results, &domain.DocumentChecklistResult{
			ID:              uuid.New(),
			ReviewID:        reviewID,
			ChecklistItemID: item.ItemID,
			Passed:          item.Passed,
			Comments:        item.Comments,
			CreatedAt:       now,
		})
	}

	var err error
	for attempt := 0; attempt <= checklistWriteRetries; attempt++ {
		if err = e.repos.Reviews.CreateChecklistResults(ctx, results); err == nil {
			return
		}
	}

	e.metrics.SideEffectFailures.WithLabelValues("checklist").Inc()
	e.logger.Error().Err(err).
		Str("review_id", reviewID.String()).
		Int("items", len(results)).
		Msg("failed to persist checklist results after retries")
}

// alertAdminsUnassigned tells the firm's admins a document is waiting with
// no eligible reviewer.
func (e *Engine) alertAdminsUnassigned(ctx context.Context, firmID, documentID uuid.UUID) {
	admins, err := e.repos.Users.ListActiveByRole(ctx, firmID, domain.RoleAdmin)
	if err != nil {
		e.logger.Warn().Err(err).Str("firm_id", firmID.String()).Msg("failed to list admins for unassigned alert")
		return
	}
	ids := make([]uuid.UUID, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.ID)
	}
	e.effects.NotifyUsers(ctx, ids, domain.Notification{
		Title:      "Document awaiting manual assignment",
		Message:    "An uploaded document has no available staff reviewer.",
		Type:       domain.NotificationWarning,
		DocumentID: &documentID,
	})
}

// stampReview records the per-role review timestamp on the document.
func stampReview(doc *domain.Document, role domain.ReviewerRole, at time.Time) {
	switch role {
	case domain.RoleStaff:
		doc.StaffReviewedAt = &at
	case domain.RoleLawyer:
		doc.LawyerReviewedAt = &at
	case domain.RoleAdmin:
		doc.AdminReviewedAt = &at
	}
}

// stageInFlight reports whether the stage belongs to the role's in-flight set.
func stageInFlight(stage domain.WorkflowStage, role domain.ReviewerRole) bool {
	for _, s := range role.InFlightStages() {
		if s == stage {
			return true
		}
	}
	return false
}

// assigneeID returns the user's ID pointer, or nil for an absent assignee.
func assigneeID(u *domain.User) *uuid.UUID {
	if u == nil {
		return nil
	}
	return &u.ID
}
