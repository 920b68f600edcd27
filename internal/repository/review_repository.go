package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// ReviewRepository handles append-only review records and their checklist
// results. Review rows are written exactly once per workflow transition and
// never mutated afterwards.
type ReviewRepository interface {
	// CreateReview inserts a new review record.
	// Returns domain.ErrAlreadyExists if a review with the same ID already exists.
	CreateReview(ctx context.Context, review *domain.DocumentReview) error

	// CreateChecklistResults inserts per-item checklist outcomes for a review.
	// Idempotent with respect to retries: existing (review, item) rows are
	// left untouched.
	CreateChecklistResults(ctx context.Context, results []*domain.DocumentChecklistResult) error

	// ListByDocument retrieves all reviews for a document, newest first.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentReview, error)

	// ListChecklistResults retrieves the checklist results attached to a review.
	ListChecklistResults(ctx context.Context, reviewID uuid.UUID) ([]*domain.DocumentChecklistResult, error)
}
