package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentReview is an append-only record of one reviewer's decision.
// A review row is created per transition and never mutated afterwards.
type DocumentReview struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ReviewerID uuid.UUID

	ReviewerRole ReviewerRole
	Decision     ReviewDecision

	Remarks       string
	InternalNotes string

	// IsChecklistComplete is the AND of all checklist results attached to
	// this review; ChecklistScore is the count of passed items.
	IsChecklistComplete bool
	ChecklistScore      int

	ReviewedAt time.Time
	CreatedAt  time.Time
}

// DocumentChecklistResult is a per-review, per-item pass/fail outcome.
// Rows are children of a DocumentReview and are written as a retryable
// follow-up to the review's core fields.
type DocumentChecklistResult struct {
	ID              uuid.UUID
	ReviewID        uuid.UUID
	ChecklistItemID int64
	Passed          bool
	Comments        string
	CreatedAt       time.Time
}

// ChecklistInput is a reviewer-supplied checklist outcome for one item.
type ChecklistInput struct {
	ItemID   int64
	Passed   bool
	Comments string
}

// ChecklistComplete returns true when every supplied result passed.
// An empty checklist is considered complete.
func ChecklistComplete(results []ChecklistInput) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// ChecklistScore returns the number of passed items.
func ChecklistScore(results []ChecklistInput) int {
	score := 0
	for _, r := range results {
		if r.Passed {
			score++
		}
	}
	return score
}
