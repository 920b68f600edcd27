// Package workflows defines Temporal workflow implementations for the
// document workflow service.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	doctemporal "github.com/lexvault/document-workflow-service/internal/temporal"
	"github.com/lexvault/document-workflow-service/internal/temporal/activities"
)

// Activity timeout constants.
const (
	listActivityTimeout    = 2 * time.Minute
	archiveActivityTimeout = 1 * time.Minute
)

// defaultSweepBatchSize bounds one run when the caller passes no batch size.
const defaultSweepBatchSize = 500

// RetentionSweepInput is an alias for the shared input type defined in the
// parent temporal package. This allows the workflow function signature to
// remain unchanged while the type is importable from either location.
type RetentionSweepInput = doctemporal.SweepWorkflowInput

// RetentionSweepResult contains the final counts of one sweep run.
type RetentionSweepResult struct {
	// Scanned is the number of candidate documents examined.
	Scanned int

	// Archived is the number of documents archived by this run.
	Archived int

	// Skipped is the number of candidates that no longer qualified.
	Skipped int

	// Failed is the number of documents whose archival failed after retries.
	Failed int
}

// RetentionSweepWorkflow archives every document whose retention period has
// expired. It lists candidates once, then archives each document in its own
// activity so one bad document cannot fail the run: per-document failures are
// retried by Temporal and counted, not propagated.
//
// The workflow runs on a cron schedule; each cron tick is a fresh run.
func RetentionSweepWorkflow(ctx workflow.Context, input RetentionSweepInput) (*RetentionSweepResult, error) {
	logger := workflow.GetLogger(ctx)

	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	logger.Info("retention sweep started", "batchSize", batchSize)

	// Activity nil-pointer variable for method references.
	var sweepAct *activities.SweepActivities

	// Build activity option contexts with retry policies.
	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: listActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	archiveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: archiveActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var candidates activities.ListExpiredOutput
	err := workflow.ExecuteActivity(listCtx, sweepAct.ListExpired, activities.ListExpiredInput{
		BatchSize: batchSize,
	}).Get(ctx, &candidates)
	if err != nil {
		logger.Error("failed to list sweep candidates", "error", err)
		return nil, err
	}

	result := &RetentionSweepResult{}

	for _, documentID := range candidates.DocumentIDs {
		result.Scanned++

		var out activities.ArchiveExpiredOutput
		err := workflow.ExecuteActivity(archiveCtx, sweepAct.ArchiveExpired, activities.ArchiveExpiredInput{
			DocumentID: documentID,
		}).Get(ctx, &out)
		if err != nil {
			result.Failed++
			logger.Error("failed to archive expired document",
				"documentID", documentID,
				"error", err,
			)
			continue
		}

		if out.Archived {
			result.Archived++
		} else {
			result.Skipped++
		}
	}

	logger.Info("retention sweep completed",
		"scanned", result.Scanned,
		"archived", result.Archived,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}
