// Package activities provides Temporal activity implementations for the
// retention sweep.
//
// Activity inputs and outputs are defined as serializable structs that cross
// the Temporal serialization boundary. All fields must be exported for JSON
// serialization by the Temporal SDK's default data converter.
package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// ListExpiredInput contains the parameters for the expired-retention listing activity.
type ListExpiredInput struct {
	// BatchSize is the maximum number of candidates to return.
	BatchSize int
}

// ListExpiredOutput contains the documents whose retention has expired.
type ListExpiredOutput struct {
	// DocumentIDs are the candidate documents, oldest expiry first.
	DocumentIDs []uuid.UUID
}

// ArchiveExpiredInput contains the parameters for archiving one expired document.
type ArchiveExpiredInput struct {
	// DocumentID is the document to archive.
	DocumentID uuid.UUID
}

// ArchiveExpiredOutput reports what the archival attempt did.
type ArchiveExpiredOutput struct {
	// Archived is true when this attempt created the archive. False means
	// the document no longer qualified (already archived, retention
	// reopened, or not in a completed state) and was skipped.
	Archived bool
}

// SweepActivities provides Temporal activities for the retention sweep.
// Methods on this struct are registered as Temporal activities via the worker.
type SweepActivities struct {
	archiver *docflow.Archiver
}

// NewSweepActivities creates a new SweepActivities instance.
func NewSweepActivities(archiver *docflow.Archiver) *SweepActivities {
	return &SweepActivities{archiver: archiver}
}

// ListExpired returns the documents whose retention expiry has passed and
// that have not been archived yet.
func (a *SweepActivities) ListExpired(ctx context.Context, input ListExpiredInput) (*ListExpiredOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("listing expired retentions", "batchSize", input.BatchSize)

	ids, err := a.archiver.ListExpiredCandidates(ctx, input.BatchSize)
	if err != nil {
		logger.Error("failed to list expired retentions", "error", err)
		return nil, fmt.Errorf("list expired retentions: %w", err)
	}

	logger.Info("expired retentions listed", "candidates", len(ids))
	return &ListExpiredOutput{DocumentIDs: ids}, nil
}

// ArchiveExpired archives one document whose retention has expired. The
// underlying archival is idempotent, so Temporal retries are safe: a retry
// after a partial failure either completes the archive or finds it already
// active and reports Archived=false.
func (a *SweepActivities) ArchiveExpired(ctx context.Context, input ArchiveExpiredInput) (*ArchiveExpiredOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("archiving expired document", "documentID", input.DocumentID)

	archived, err := a.archiver.ArchiveExpiredDocument(ctx, input.DocumentID)
	if err != nil {
		logger.Error("failed to archive expired document",
			"documentID", input.DocumentID,
			"error", err,
		)
		return nil, fmt.Errorf("archive expired document %s: %w", input.DocumentID, err)
	}

	if !archived {
		logger.Info("document skipped, no longer qualifies for archival",
			"documentID", input.DocumentID,
		)
	}

	return &ArchiveExpiredOutput{Archived: archived}, nil
}
