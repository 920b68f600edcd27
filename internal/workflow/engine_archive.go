package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// ArchiveDocument is the manual archival path. Whether the actor may archive
// this document (uploader-own or admin-any) is decided by the caller; the
// engine enforces existence and the single-active-archive invariant.
// Archiving an already-archived document is a no-op returning the existing
// active archive.
func (e *Engine) ArchiveDocument(ctx context.Context, firmID, documentID, actorID uuid.UUID, reason string) (*domain.Archive, error) {
	archive, _, err := e.archiver.Archive(ctx, firmID, documentID, domain.ArchiveTypeManual, reason, &actorID)
	return archive, err
}

// Restore re-activates an archived document to the status and stage captured
// at archival time. Rejected archives route back to the staff queue instead.
// When resetRetention is true (the default for callers), the document's
// retention restarts from now with its existing period.
func (e *Engine) Restore(ctx context.Context, firmID, archiveID, actorID uuid.UUID, resetRetention bool) (*domain.Document, error) {
	archive, err := e.repos.Archives.Get(ctx, firmID, archiveID)
	if err != nil {
		return nil, err
	}
	if !archive.IsActive() {
		return nil, domain.NewNotFoundError("active archive", archiveID.String())
	}

	targetStatus, targetStage := archive.RestoreTarget()
	now := e.now()

	var restored *domain.Document
	err = e.inDocumentTx(ctx, archive.DocumentID, func(repos Repos) error {
		// MarkRestored's active-state guard makes a racing second restore
		// fail here rather than re-activating twice.
		if err := repos.Archives.MarkRestored(ctx, firmID, archiveID, actorID, now); err != nil {
			return err
		}

		var expiry *time.Time
		if resetRetention {
			retention, err := repos.Retentions.GetByDocument(ctx, archive.DocumentID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if retention != nil {
				retention.StartDate = now
				retention.ExpiryDate = domain.ComputeExpiry(now, retention.Years, retention.Months, retention.Days)
				retention.IsArchived = false
				if err := repos.Retentions.UpdateRetention(ctx, retention); err != nil {
					return err
				}
				expiry = &retention.ExpiryDate
			}
		}

		return repos.Documents.Update(ctx, firmID, archive.DocumentID, func(doc *domain.Document) error {
			doc.Status = targetStatus
			doc.WorkflowStage = targetStage
			if archive.OriginalFolderID != nil {
				doc.FolderID = archive.OriginalFolderID
			}
			if expiry != nil {
				doc.RetentionExpiryDate = expiry
			}
			restored = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.metrics.DocumentsRestored.Inc()
	e.effects.Notify(ctx, &domain.Notification{
		UserID:     restored.OwnerID,
		Title:      "Document restored",
		Message:    "Your archived document was restored to active circulation.",
		Type:       domain.NotificationSuccess,
		DocumentID: &archive.DocumentID,
	})
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionRestored,
		EntityType:  "document",
		EntityID:    archive.DocumentID,
		ActorID:     &actorID,
		Description: fmt.Sprintf("document restored from %s archive", archive.ArchiveType),
		OldValues: map[string]interface{}{
			"status":         domain.DocumentStatusArchived,
			"workflow_stage": domain.StageArchived,
		},
		NewValues: map[string]interface{}{
			"status":         targetStatus,
			"workflow_stage": targetStage,
		},
		Category: domain.AuditCategoryArchive,
	})

	return restored, nil
}

// PermanentDelete removes the document and all dependent rows for an archive
// past its retention life. Only Retention and AutoExpired archives may be
// deleted without force. Version files are removed best-effort before the
// row deletion; the archive row itself is kept, soft-flagged deleted, for
// audit.
func (e *Engine) PermanentDelete(ctx context.Context, firmID, archiveID uuid.UUID, actorID *uuid.UUID, force bool) error {
	archive, err := e.repos.Archives.Get(ctx, firmID, archiveID)
	if err != nil {
		return err
	}
	if !archive.IsActive() {
		return domain.NewNotFoundError("active archive", archiveID.String())
	}
	if !archive.ArchiveType.PermanentDeleteAllowed() && !force {
		return fmt.Errorf("archive type %s is not eligible for permanent deletion: %w", archive.ArchiveType, domain.ErrForbidden)
	}

	// File removal is best-effort: a missing or unreachable file must not
	// leave the rows behind.
	versions, err := e.repos.Documents.ListVersions(ctx, archive.DocumentID)
	if err != nil {
		return err
	}
	for _, version := range versions {
		if version.FilePath == "" {
			continue
		}
		if err := e.files.Delete(ctx, version.FilePath); err != nil {
			e.logger.Warn().Err(err).
				Str("document_id", archive.DocumentID.String()).
				Str("file_path", version.FilePath).
				Msg("failed to delete version file")
		}
	}

	err = e.inDocumentTx(ctx, archive.DocumentID, func(repos Repos) error {
		if err := repos.Archives.MarkDeleted(ctx, firmID, archiveID, e.now()); err != nil {
			return err
		}
		// Versions, reviews, checklist results and the retention row cascade
		// from the document delete.
		return repos.Documents.Delete(ctx, firmID, archive.DocumentID)
	})
	if err != nil {
		return err
	}

	e.metrics.DocumentsDeleted.Inc()
	e.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionDeleted,
		EntityType:  "document",
		EntityID:    archive.DocumentID,
		ActorID:     actorID,
		Description: fmt.Sprintf("document permanently deleted (%s archive)", archive.ArchiveType),
		Category:    domain.AuditCategoryArchive,
	})

	return nil
}
