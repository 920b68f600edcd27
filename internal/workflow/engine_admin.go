package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// RetentionOverride selects an explicit retention for admin approval or a
// retention modification: a policy reference or an ad-hoc period. Exactly one
// must be set.
type RetentionOverride struct {
	PolicyID *uuid.UUID
	Period   *domain.RetentionPeriod
}

func (o RetentionOverride) validate() error {
	if (o.PolicyID == nil) == (o.Period == nil) {
		return domain.NewValidationError("retention", "exactly one of policy_id or period is required")
	}
	if o.Period != nil {
		if o.Period.Years < 0 || o.Period.Months < 0 || o.Period.Days < 0 {
			return domain.NewValidationError("period", "retention period components must be non-negative")
		}
		if o.Period.Years == 0 && o.Period.Months == 0 && o.Period.Days == 0 {
			return domain.NewValidationError("period", "retention period must be positive")
		}
	}
	return nil
}

// AdminApprove completes the review pipeline. If the document has no
// retention yet, one is created from the firm's default policy for the
// document's type, falling back to the built-in period; an existing retention
// is never overwritten by this path.
func (e *Engine) AdminApprove(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, *domain.DocumentRetention, error) {
	return e.adminApprove(ctx, firmID, documentID, adminID, remarks, nil)
}

// AdminApproveWithRetention behaves like AdminApprove but always (re)computes
// the retention from the explicit policy or period, overwriting any prior
// retention for the document.
func (e *Engine) AdminApproveWithRetention(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string, override RetentionOverride) (*domain.DocumentReview, *domain.DocumentRetention, error) {
	if err := override.validate(); err != nil {
		return nil, nil, err
	}
	return e.adminApprove(ctx, firmID, documentID, adminID, remarks, &override)
}

// AdminReject records the admin rejection and immediately archives the
// document. Remarks are mandatory.
func (e *Engine) AdminReject(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, error) {
	return e.rejectAndArchive(ctx, firmID, documentID, adminID, domain.RoleAdmin, ReviewInput{Remarks: remarks})
}

func (e *Engine) adminApprove(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string, override *RetentionOverride) (*domain.DocumentReview, *domain.DocumentRetention, error) {
	start := e.now()
	review := e.buildReview(documentID, adminID, domain.RoleAdmin, domain.DecisionApproved, ReviewInput{Remarks: remarks})

	var (
		retention *domain.DocumentRetention
		ownerID   uuid.UUID
		staffID   *uuid.UUID
	)
	err := e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		doc, err := repos.Documents.Get(ctx, firmID, documentID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(doc.WorkflowStage, domain.StageCompleted) {
			return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, domain.StageCompleted, "admin approve")
		}

		retention, err = e.ensureRetention(ctx, repos, doc, override)
		if err != nil {
			return err
		}

		err = repos.Documents.Update(ctx, firmID, documentID, func(d *domain.Document) error {
			stampReview(d, domain.RoleAdmin, review.ReviewedAt)
			d.ApprovedAt = &review.ReviewedAt
			d.CurrentRemarks = remarks
			d.WorkflowStage = domain.StageCompleted
			d.Status = domain.DocumentStatusCompleted
			d.RetentionExpiryDate = &retention.ExpiryDate
			ownerID = d.OwnerID
			staffID = d.AssignedStaffID
			return nil
		})
		if err != nil {
			return err
		}
		return repos.Reviews.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, nil, err
	}

	e.metrics.ReviewsRecorded.WithLabelValues(string(domain.RoleAdmin), string(domain.DecisionApproved)).Inc()

	e.effects.Notify(ctx, &domain.Notification{
		UserID:     ownerID,
		Title:      "Document approved",
		Message:    "Your document completed review and was approved.",
		Type:       domain.NotificationSuccess,
		DocumentID: &documentID,
	})
	if staffID != nil {
		e.effects.Notify(ctx, &domain.Notification{
			UserID:     *staffID,
			Title:      "Reviewed document approved",
			Message:    "A document you reviewed completed admin review.",
			Type:       domain.NotificationSuccess,
			DocumentID: &documentID,
		})
	}
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionAdminApproved,
		EntityType:  "document",
		EntityID:    documentID,
		ActorID:     &adminID,
		Description: "admin approved, document completed",
		NewValues: map[string]interface{}{
			"workflow_stage":        domain.StageCompleted,
			"status":                domain.DocumentStatusCompleted,
			"retention_expiry_date": retention.ExpiryDate,
		},
		Category: domain.AuditCategoryWorkflow,
	})

	e.metrics.OperationDuration.WithLabelValues("admin_approve").Observe(e.now().Sub(start).Seconds())
	return review, retention, nil
}

// ensureRetention returns the document's retention row, creating or
// overwriting it according to the override policy of the approval path.
func (e *Engine) ensureRetention(ctx context.Context, repos Repos, doc *domain.Document, override *RetentionOverride) (*domain.DocumentRetention, error) {
	existing, err := repos.Retentions.GetByDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if override == nil && existing != nil {
		// Plain approval never overwrites an existing retention.
		return existing, nil
	}

	var (
		period   domain.RetentionPeriod
		policyID *uuid.UUID
		source   string
	)
	switch {
	case override != nil && override.PolicyID != nil:
		policy, err := repos.Retentions.GetPolicy(ctx, doc.FirmID, *override.PolicyID)
		if err != nil {
			return nil, err
		}
		period, policyID, source = policy.Period(), &policy.ID, retentionSourceExplicit
	case override != nil:
		period, source = *override.Period, retentionSourceExplicit
	default:
		period, policyID, source, err = resolveDefaultRetention(ctx, repos.Retentions, e.logger, doc.FirmID, doc.DocumentType)
		if err != nil {
			return nil, err
		}
	}

	now := e.now()
	retention := &domain.DocumentRetention{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		PolicyID:   policyID,
		Years:      period.Years,
		Months:     period.Months,
		Days:       period.Days,
		StartDate:  now,
		ExpiryDate: domain.ComputeExpiry(now, period.Years, period.Months, period.Days),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if existing != nil {
		retention.ID = existing.ID
		retention.CreatedAt = existing.CreatedAt
		if err := repos.Retentions.UpdateRetention(ctx, retention); err != nil {
			return nil, err
		}
	} else if err := repos.Retentions.CreateRetention(ctx, retention); err != nil {
		return nil, err
	}

	e.metrics.RetentionsCreated.WithLabelValues(source).Inc()
	return retention, nil
}

// ModifyRetention re-derives a document's retention from a new policy or
// period, keeping the original start date, and refreshes the denormalized
// expiry on the document.
func (e *Engine) ModifyRetention(ctx context.Context, firmID, documentID uuid.UUID, actorID uuid.UUID, override RetentionOverride) (*domain.DocumentRetention, error) {
	if err := override.validate(); err != nil {
		return nil, err
	}

	var retention *domain.DocumentRetention
	err := e.inDocumentTx(ctx, documentID, func(repos Repos) error {
		existing, err := repos.Retentions.GetByDocument(ctx, documentID)
		if err != nil {
			return err
		}

		var (
			period   domain.RetentionPeriod
			policyID *uuid.UUID
		)
		if override.PolicyID != nil {
			policy, err := repos.Retentions.GetPolicy(ctx, firmID, *override.PolicyID)
			if err != nil {
				return err
			}
			period, policyID = policy.Period(), &policy.ID
		} else {
			period = *override.Period
		}

		existing.PolicyID = policyID
		existing.Years = period.Years
		existing.Months = period.Months
		existing.Days = period.Days
		existing.ExpiryDate = domain.ComputeExpiry(existing.StartDate, period.Years, period.Months, period.Days)
		if err := repos.Retentions.UpdateRetention(ctx, existing); err != nil {
			return err
		}

		err = repos.Documents.Update(ctx, firmID, documentID, func(d *domain.Document) error {
			d.RetentionExpiryDate = &existing.ExpiryDate
			return nil
		})
		if err != nil {
			return err
		}

		retention = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionRetentionSet,
		EntityType:  "document",
		EntityID:    documentID,
		ActorID:     &actorID,
		Description: "retention period modified",
		NewValues: map[string]interface{}{
			"years":       retention.Years,
			"months":      retention.Months,
			"days":        retention.Days,
			"expiry_date": retention.ExpiryDate,
		},
		Category: domain.AuditCategoryRetention,
	})

	return retention, nil
}

// CreateRetentionPolicy registers a new policy. Creating it as default clears
// the default flag on any other policy for the same (firm, document type).
func (e *Engine) CreateRetentionPolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	if policy == nil {
		return domain.NewValidationError("policy", "policy cannot be nil")
	}
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	if policy.DocumentType == "" {
		policy.DocumentType = domain.DefaultDocumentType
	}
	now := e.now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	makeDefault := policy.IsDefault
	policy.IsDefault = false
	if err := e.repos.Retentions.CreatePolicy(ctx, policy); err != nil {
		return err
	}
	if makeDefault {
		if err := e.SetDefaultRetentionPolicy(ctx, policy.FirmID, policy.ID); err != nil {
			return err
		}
		policy.IsDefault = true
	}
	return nil
}

// SetDefaultRetentionPolicy flags the policy as the default for its document
// type, clearing any previous default for the same (firm, type) pair.
func (e *Engine) SetDefaultRetentionPolicy(ctx context.Context, firmID, policyID uuid.UUID) error {
	if err := e.repos.Retentions.SetDefaultPolicy(ctx, firmID, policyID); err != nil {
		return err
	}

	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionRetentionSet,
		EntityType:  "retention_policy",
		EntityID:    policyID,
		Description: fmt.Sprintf("policy %s set as default", policyID),
		Category:    domain.AuditCategoryRetention,
	})
	return nil
}
