package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/observability"
)

// Archiver is the single funnel for taking documents out of active
// circulation. Every archival trigger (sweep, rejection, manual) goes through
// archiveIfNotArchived so the at-most-one-active-archive invariant is
// enforced in exactly one place.
type Archiver struct {
	db      DB
	repos   Repos
	factory RepoFactory
	effects *EffectRunner
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewArchiver creates an archiver.
func NewArchiver(db DB, factory RepoFactory, effects *EffectRunner, metrics *observability.Metrics, logger zerolog.Logger) *Archiver {
	return &Archiver{
		db:      db,
		repos:   factory(db),
		factory: factory,
		effects: effects,
		metrics: metrics,
		logger:  logger.With().Str("component", "archiver").Logger(),
		now:     nowUTC,
	}
}

// archiveRequest describes one archival.
type archiveRequest struct {
	firmID          uuid.UUID
	documentID      uuid.UUID
	archiveType     domain.ArchiveType
	reason          string
	archivedBy      *uuid.UUID
	scheduledDelete *time.Time
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Archived int `json:"archived"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Archive archives a document on behalf of an actor (manual path) or a
// rejection transition. Returns the active archive row; created reports
// whether this call created it or an active archive already existed.
func (a *Archiver) Archive(ctx context.Context, firmID, documentID uuid.UUID, archiveType domain.ArchiveType, reason string, archivedBy *uuid.UUID) (*domain.Archive, bool, error) {
	req := archiveRequest{
		firmID:      firmID,
		documentID:  documentID,
		archiveType: archiveType,
		reason:      reason,
		archivedBy:  archivedBy,
	}
	return a.archiveIfNotArchived(ctx, req)
}

// SweepExpired runs one pass of the retention sweep: archive every unarchived
// retention whose expiry has passed and whose document is in a completed
// state. Each document is independently committed, so a mid-batch
// cancellation leaves already-archived documents archived. Per-document
// failures are logged and counted, not fatal to the batch.
func (a *Archiver) SweepExpired(ctx context.Context, batchSize int) (*SweepResult, error) {
	start := a.now()
	result := &SweepResult{}

	expired, err := a.repos.Retentions.ListExpired(ctx, start, batchSize)
	if err != nil {
		a.metrics.SweepRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list expired retentions: %w", err)
	}

	for _, retention := range expired {
		if err := ctx.Err(); err != nil {
			a.logger.Info().
				Int("archived", result.Archived).
				Int("remaining", len(expired)-result.Scanned).
				Msg("sweep cancelled mid-batch")
			a.metrics.SweepRuns.WithLabelValues("cancelled").Inc()
			return result, err
		}

		result.Scanned++
		a.metrics.SweepDocumentsScanned.Inc()

		if err := a.sweepOne(ctx, retention, result); err != nil {
			result.Failed++
			a.metrics.SweepDocumentsFailed.Inc()
			a.logger.Error().
				Err(err).
				Str("document_id", retention.DocumentID.String()).
				Time("expiry_date", retention.ExpiryDate).
				Msg("failed to archive expired document")
		}
	}

	a.metrics.SweepRuns.WithLabelValues("success").Inc()
	a.metrics.SweepDuration.Observe(a.now().Sub(start).Seconds())
	a.logger.Info().
		Int("scanned", result.Scanned).
		Int("archived", result.Archived).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("retention sweep completed")

	return result, nil
}

// sweepOne archives a single expired retention's document.
func (a *Archiver) sweepOne(ctx context.Context, retention *domain.DocumentRetention, result *SweepResult) error {
	archived, err := a.archiveExpiredRetention(ctx, retention)
	if err != nil {
		return err
	}
	if archived {
		result.Archived++
	} else {
		result.Skipped++
	}
	return nil
}

// ListExpiredCandidates returns the document IDs of unarchived retentions
// whose expiry has passed. Used by the scheduled sweep to fan out
// per-document work.
func (a *Archiver) ListExpiredCandidates(ctx context.Context, batchSize int) ([]uuid.UUID, error) {
	expired, err := a.repos.Retentions.ListExpired(ctx, a.now(), batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired retentions: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(expired))
	for _, retention := range expired {
		ids = append(ids, retention.DocumentID)
	}
	return ids, nil
}

// ArchiveExpiredDocument archives one document whose retention has expired.
// Returns false without error when the document no longer qualifies: no
// retention row, retention already closed, expiry still in the future, or
// the document is not in a completed state. Safe to retry.
func (a *Archiver) ArchiveExpiredDocument(ctx context.Context, documentID uuid.UUID) (bool, error) {
	retention, err := a.repos.Retentions.GetByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if retention.IsArchived || !retention.Expired(a.now()) {
		return false, nil
	}
	return a.archiveExpiredRetention(ctx, retention)
}

// archiveExpiredRetention archives the document behind an expired retention
// row. Orphaned rows (document deleted) are closed so subsequent sweeps stop
// re-scanning them.
func (a *Archiver) archiveExpiredRetention(ctx context.Context, retention *domain.DocumentRetention) (bool, error) {
	doc, err := a.repos.Documents.GetByID(ctx, retention.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, a.repos.Retentions.MarkArchived(ctx, retention.DocumentID)
		}
		return false, err
	}

	if doc.Status != domain.DocumentStatusCompleted && doc.Status != domain.DocumentStatusApproved {
		return false, nil
	}

	scheduledDelete := a.now().Add(domain.ScheduledDeleteOffset)
	_, created, err := a.archiveIfNotArchived(ctx, archiveRequest{
		firmID:          doc.FirmID,
		documentID:      doc.ID,
		archiveType:     domain.ArchiveTypeAutoExpired,
		reason:          fmt.Sprintf("retention period expired on %s", retention.ExpiryDate.Format("2006-01-02")),
		scheduledDelete: &scheduledDelete,
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// archiveIfNotArchived creates an archive for the document unless an active
// one already exists. The whole operation runs in one transaction under the
// document's advisory lock: stage flip, archive insert and retention close
// commit or roll back together.
func (a *Archiver) archiveIfNotArchived(ctx context.Context, req archiveRequest) (*domain.Archive, bool, error) {
	var (
		archive *domain.Archive
		created bool
		ownerID uuid.UUID
	)

	err := a.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := a.db.AcquireAdvisoryLockTx(ctx, tx, documentLockKey(req.documentID)); err != nil {
			return fmt.Errorf("failed to acquire document lock: %w", err)
		}

		repos := a.factory(tx)

		existing, err := repos.Archives.GetActiveByDocument(ctx, req.documentID)
		if err == nil {
			// Already actively archived: no-op, but close the retention row
			// if a prior run left it open.
			archive = existing
			if mErr := repos.Retentions.MarkArchived(ctx, req.documentID); mErr != nil && !errors.Is(mErr, domain.ErrNotFound) {
				return mErr
			}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		now := a.now()
		newArchive := &domain.Archive{
			ID:                  uuid.New(),
			DocumentID:          req.documentID,
			FirmID:              req.firmID,
			ArchiveType:         req.archiveType,
			Reason:              req.reason,
			ArchivedByID:        req.archivedBy,
			ScheduledDeleteDate: req.scheduledDelete,
			CreatedAt:           now,
		}

		err = repos.Documents.Update(ctx, req.firmID, req.documentID, func(doc *domain.Document) error {
			if !domain.CanTransition(doc.WorkflowStage, domain.StageArchived) {
				return domain.NewInvalidTransitionError(doc.ID.String(), doc.WorkflowStage, domain.StageArchived, "archive")
			}
			newArchive.OriginalStatus = doc.Status
			newArchive.OriginalStage = doc.WorkflowStage
			newArchive.OriginalFolderID = doc.FolderID
			ownerID = doc.OwnerID
			doc.Status = domain.DocumentStatusArchived
			doc.WorkflowStage = domain.StageArchived
			return nil
		})
		if err != nil {
			return err
		}

		if err := repos.Archives.Create(ctx, newArchive); err != nil {
			return err
		}

		if err := repos.Retentions.MarkArchived(ctx, req.documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		archive = newArchive
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		a.metrics.DocumentsArchived.WithLabelValues(string(req.archiveType)).Inc()
		a.runArchiveEffects(ctx, archive, ownerID)
	}

	return archive, created, nil
}

// runArchiveEffects emits the audit entry and owner notification for a
// freshly created archive.
func (a *Archiver) runArchiveEffects(ctx context.Context, archive *domain.Archive, ownerID uuid.UUID) {
	a.effects.Audit(ctx, &domain.AuditEvent{
		Action:      domain.AuditActionArchived,
		EntityType:  "document",
		EntityID:    archive.DocumentID,
		ActorID:     archive.ArchivedByID,
		Description: fmt.Sprintf("document archived (%s): %s", archive.ArchiveType, archive.Reason),
		OldValues: map[string]interface{}{
			"status":         archive.OriginalStatus,
			"workflow_stage": archive.OriginalStage,
		},
		NewValues: map[string]interface{}{
			"status":         domain.DocumentStatusArchived,
			"workflow_stage": domain.StageArchived,
			"archive_type":   archive.ArchiveType,
		},
		Category: domain.AuditCategoryArchive,
	})

	if ownerID != uuid.Nil {
		a.effects.Notify(ctx, &domain.Notification{
			UserID:     ownerID,
			Title:      "Document archived",
			Message:    fmt.Sprintf("Your document was archived: %s", archive.Reason),
			Type:       domain.NotificationInfo,
			DocumentID: &archive.DocumentID,
		})
	}
}
