package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ ReviewRepository = (*PgReviewRepository)(nil)

// PgReviewRepository is a PostgreSQL implementation of ReviewRepository.
type PgReviewRepository struct {
	db DBTX
}

// NewPgReviewRepository creates a new PostgreSQL review repository.
func NewPgReviewRepository(db DBTX) *PgReviewRepository {
	return &PgReviewRepository{db: db}
}

// CreateReview inserts a new review record.
func (r *PgReviewRepository) CreateReview(ctx context.Context, review *domain.DocumentReview) error {
	if review == nil {
		return domain.NewValidationError("review", "review cannot be nil")
	}
	if review.ID == uuid.Nil {
		return domain.NewValidationError("id", "review ID is required")
	}
	if review.DocumentID == uuid.Nil {
		return domain.NewValidationError("document_id", "document ID is required")
	}
	if review.ReviewerID == uuid.Nil {
		return domain.NewValidationError("reviewer_id", "reviewer ID is required")
	}
	if !review.ReviewerRole.Valid() {
		return domain.NewValidationError("reviewer_role", fmt.Sprintf("unknown reviewer role: %s", review.ReviewerRole))
	}

	query := `
		INSERT INTO document_reviews (
			id, document_id, reviewer_id,
			reviewer_role, decision,
			remarks, internal_notes,
			is_checklist_complete, checklist_score,
			reviewed_at, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9,
			$10, $11
		)`

	_, err := r.db.Exec(ctx, query,
		review.ID, review.DocumentID, review.ReviewerID,
		review.ReviewerRole, review.Decision,
		nullString(review.Remarks), nullString(review.InternalNotes),
		review.IsChecklistComplete, review.ChecklistScore,
		review.ReviewedAt, review.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("review", review.ID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("document", review.DocumentID.String())
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// CreateChecklistResults inserts per-item checklist outcomes for a review.
// ON CONFLICT DO NOTHING makes the write safe to retry after a partial failure.
func (r *PgReviewRepository) CreateChecklistResults(ctx context.Context, results []*domain.DocumentChecklistResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO document_checklist_results (
			id, review_id, checklist_item_id, passed, comments, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (review_id, checklist_item_id) DO NOTHING`

	for _, res := range results {
		if res.ID == uuid.Nil {
			return domain.NewValidationError("id", "checklist result ID is required")
		}
		if res.ReviewID == uuid.Nil {
			return domain.NewValidationError("review_id", "review ID is required")
		}

		_, err := r.db.Exec(ctx, query,
			res.ID, res.ReviewID, res.ChecklistItemID, res.Passed,
			nullString(res.Comments), res.CreatedAt,
		)
		if err != nil {
			if isPgForeignKeyViolation(err) {
				return domain.NewNotFoundError("review", res.ReviewID.String())
			}
			return fmt.Errorf("failed to create checklist result: %w", err)
		}
	}

	return nil
}

// ListByDocument retrieves all reviews for a document, newest first.
func (r *PgReviewRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentReview, error) {
	query := `
		SELECT id, document_id, reviewer_id,
			reviewer_role, decision,
			remarks, internal_notes,
			is_checklist_complete, checklist_score,
			reviewed_at, created_at
		FROM document_reviews
		WHERE document_id = $1
		ORDER BY reviewed_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*domain.DocumentReview
	for rows.Next() {
		var (
			rev           domain.DocumentReview
			remarks       *string
			internalNotes *string
		)
		err := rows.Scan(
			&rev.ID, &rev.DocumentID, &rev.ReviewerID,
			&rev.ReviewerRole, &rev.Decision,
			&remarks, &internalNotes,
			&rev.IsChecklistComplete, &rev.ChecklistScore,
			&rev.ReviewedAt, &rev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if remarks != nil {
			rev.Remarks = *remarks
		}
		if internalNotes != nil {
			rev.InternalNotes = *internalNotes
		}
		reviews = append(reviews, &rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// ListChecklistResults retrieves the checklist results attached to a review.
func (r *PgReviewRepository) ListChecklistResults(ctx context.Context, reviewID uuid.UUID) ([]*domain.DocumentChecklistResult, error) {
	query := `
		SELECT id, review_id, checklist_item_id, passed, comments, created_at
		FROM document_checklist_results
		WHERE review_id = $1
		ORDER BY checklist_item_id ASC`

	rows, err := r.db.Query(ctx, query, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist results: %w", err)
	}
	defer rows.Close()

	var results []*domain.DocumentChecklistResult
	for rows.Next() {
		var (
			res      domain.DocumentChecklistResult
			comments *string
		)
		err := rows.Scan(&res.ID, &res.ReviewID, &res.ChecklistItemID, &res.Passed, &comments, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist result: %w", err)
		}
		if comments != nil {
			res.Comments = *comments
		}
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklist results: %w", err)
	}

	return results, nil
}
