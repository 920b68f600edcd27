package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Update to automatically wrap SELECT FOR UPDATE + UPDATE in a transaction
// when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// documentColumns is the canonical column list for document queries.
const documentColumns = `id, firm_id, owner_id, title, description,
		status, workflow_stage, document_type,
		current_version, file_size, content_type, file_hash, duplicate_of_id,
		folder_id,
		assigned_staff_id, assigned_lawyer_id, assigned_admin_id,
		current_remarks,
		staff_reviewed_at, lawyer_reviewed_at, admin_reviewed_at, approved_at,
		retention_expiry_date,
		created_at, updated_at`

// Compile-time interface verification.
var _ DocumentRepository = (*PgDocumentRepository)(nil)

// PgDocumentRepository is a PostgreSQL implementation of DocumentRepository.
type PgDocumentRepository struct {
	db DBTX
}

// NewPgDocumentRepository creates a new PostgreSQL document repository.
func NewPgDocumentRepository(db DBTX) *PgDocumentRepository {
	return &PgDocumentRepository{db: db}
}

// Create inserts a new document.
func (r *PgDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.NewValidationError("document", "document cannot be nil")
	}
	if doc.ID == uuid.Nil {
		return domain.NewValidationError("id", "document ID is required")
	}
	if doc.FirmID == uuid.Nil {
		return domain.NewValidationError("firm_id", "firm ID is required")
	}
	if doc.OwnerID == uuid.Nil {
		return domain.NewValidationError("owner_id", "owner ID is required")
	}
	if doc.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}

	query := fmt.Sprintf(`
		INSERT INTO documents (%s) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14,
			$15, $16, $17,
			$18,
			$19, $20, $21, $22,
			$23,
			$24, $25
		)`, documentColumns)

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.FirmID, doc.OwnerID, doc.Title, doc.Description,
		doc.Status, doc.WorkflowStage, doc.DocumentType,
		doc.CurrentVersion, doc.FileSize, doc.ContentType, nullString(doc.FileHash), doc.DuplicateOfID,
		doc.FolderID,
		doc.AssignedStaffID, doc.AssignedLawyerID, doc.AssignedAdminID,
		nullString(doc.CurrentRemarks),
		doc.StaffReviewedAt, doc.LawyerReviewedAt, doc.AdminReviewedAt, doc.ApprovedAt,
		doc.RetentionExpiryDate,
		doc.CreatedAt, doc.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("document", doc.ID.String())
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// Get retrieves a document by its ID within a firm.
func (r *PgDocumentRepository) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE id = $1 AND firm_id = $2`, documentColumns)

	row := r.db.QueryRow(ctx, query, id, firmID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("document", id.String())
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetByID retrieves a document by ID without a firm scope.
func (r *PgDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE id = $1`, documentColumns)

	row := r.db.QueryRow(ctx, query, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("document", id.String())
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// Update performs a guarded update on a document using SELECT FOR UPDATE.
//
// Transaction Management:
// This method uses SELECT FOR UPDATE which requires a transaction for correct locking.
// If the underlying DBTX is a connection pool (supports Begin), the method automatically
// wraps the SELECT FOR UPDATE + UPDATE in an explicit transaction. If the underlying
// DBTX is already a transaction, it executes within that existing transaction.
//
// Callers that need additional statements in the same atomic unit (e.g. writing
// a review row alongside the stage change) should pass their own transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    repo := NewPgDocumentRepository(tx)
//	    return repo.Update(ctx, firmID, id, func(d *domain.Document) error {
//	        d.WorkflowStage = domain.StageStaffReview
//	        return nil
//	    })
//	})
func (r *PgDocumentRepository) Update(ctx context.Context, firmID, id uuid.UUID, fn func(*domain.Document) error) error {
	// If the underlying DBTX supports Begin (i.e., it's a pool, not already a transaction),
	// wrap the SELECT FOR UPDATE + UPDATE in an explicit transaction to prevent lost updates.
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgDocumentRepository{db: tx}
		if err := txRepo.updateInTx(ctx, firmID, id, fn); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return r.updateInTx(ctx, firmID, id, fn)
}

// updateInTx performs the actual SELECT FOR UPDATE + UPDATE within the current DBTX.
// This must be called within a transaction for correct row-level locking.
func (r *PgDocumentRepository) updateInTx(ctx context.Context, firmID, id uuid.UUID, fn func(*domain.Document) error) error {
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE id = $1 AND firm_id = $2
		FOR UPDATE`, documentColumns)

	rows, err := r.db.Query(ctx, selectQuery, id, firmID)
	if err != nil {
		return fmt.Errorf("failed to query document for update: %w", err)
	}

	doc, err := scanDocumentRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("document", id.String())
		}
		return fmt.Errorf("failed to scan document: %w", err)
	}

	if err := fn(doc); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now().UTC()

	updateQuery := `
		UPDATE documents SET
			title = $1,
			description = $2,
			status = $3,
			workflow_stage = $4,
			document_type = $5,
			current_version = $6,
			file_size = $7,
			content_type = $8,
			file_hash = $9,
			duplicate_of_id = $10,
			folder_id = $11,
			assigned_staff_id = $12,
			assigned_lawyer_id = $13,
			assigned_admin_id = $14,
			current_remarks = $15,
			staff_reviewed_at = $16,
			lawyer_reviewed_at = $17,
			admin_reviewed_at = $18,
			approved_at = $19,
			retention_expiry_date = $20,
			updated_at = $21
		WHERE id = $22 AND firm_id = $23`

	_, err = r.db.Exec(ctx, updateQuery,
		doc.Title,
		doc.Description,
		doc.Status,
		doc.WorkflowStage,
		doc.DocumentType,
		doc.CurrentVersion,
		doc.FileSize,
		doc.ContentType,
		nullString(doc.FileHash),
		doc.DuplicateOfID,
		doc.FolderID,
		doc.AssignedStaffID,
		doc.AssignedLawyerID,
		doc.AssignedAdminID,
		nullString(doc.CurrentRemarks),
		doc.StaffReviewedAt,
		doc.LawyerReviewedAt,
		doc.AdminReviewedAt,
		doc.ApprovedAt,
		doc.RetentionExpiryDate,
		doc.UpdatedAt,
		id, firmID,
	)

	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	return nil
}

// List retrieves documents matching the filter criteria.
func (r *PgDocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]*domain.Document, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	conditions := []string{"firm_id = $1"}
	args := []interface{}{filter.FirmID}
	argIndex := 2

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if len(filter.Stage) > 0 {
		placeholders := make([]string, len(filter.Stage))
		for i, s := range filter.Stage {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("workflow_stage IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf(
			"(assigned_staff_id = $%d OR assigned_lawyer_id = $%d OR assigned_admin_id = $%d)",
			argIndex, argIndex, argIndex))
		args = append(args, *filter.AssignedTo)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM documents WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		documentColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0, filter.Limit)
	for rows.Next() {
		doc, err := scanDocumentFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, totalCount, nil
}

// CountInFlightForReviewer counts documents assigned to the reviewer whose
// workflow stage counts toward the role's workload.
func (r *PgDocumentRepository) CountInFlightForReviewer(ctx context.Context, reviewerID uuid.UUID, role domain.ReviewerRole) (int, error) {
	if reviewerID == uuid.Nil {
		return 0, domain.NewValidationError("reviewer_id", "reviewer ID is required")
	}

	var assignColumn string
	switch role {
	case domain.RoleStaff:
		assignColumn = "assigned_staff_id"
	case domain.RoleLawyer:
		assignColumn = "assigned_lawyer_id"
	case domain.RoleAdmin:
		assignColumn = "assigned_admin_id"
	default:
		return 0, domain.NewValidationError("role", fmt.Sprintf("unknown reviewer role: %s", role))
	}

	stages := role.InFlightStages()
	placeholders := make([]string, len(stages))
	args := []interface{}{reviewerID}
	for i, s := range stages {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, s)
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM documents
		WHERE %s = $1 AND workflow_stage IN (%s)`,
		assignColumn, strings.Join(placeholders, ", "))

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count in-flight documents: %w", err)
	}

	return count, nil
}

// CreateVersion inserts a new version snapshot and clears the current flag
// on all prior versions of the document.
func (r *PgDocumentRepository) CreateVersion(ctx context.Context, version *domain.DocumentVersion) error {
	if version == nil {
		return domain.NewValidationError("version", "version cannot be nil")
	}
	if version.ID == uuid.Nil {
		return domain.NewValidationError("id", "version ID is required")
	}
	if version.DocumentID == uuid.Nil {
		return domain.NewValidationError("document_id", "document ID is required")
	}
	if version.VersionNumber < 1 {
		return domain.NewValidationError("version_number", "version number must be positive")
	}

	if version.IsCurrentVersion {
		clearQuery := `
			UPDATE document_versions
			SET is_current_version = FALSE
			WHERE document_id = $1 AND is_current_version = TRUE`
		if _, err := r.db.Exec(ctx, clearQuery, version.DocumentID); err != nil {
			return fmt.Errorf("failed to clear current version flag: %w", err)
		}
	}

	insertQuery := `
		INSERT INTO document_versions (
			id, document_id, version_number,
			file_path, file_size, content_type, file_hash,
			is_current_version, change_description, uploaded_by_id,
			created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10,
			$11
		)`

	_, err := r.db.Exec(ctx, insertQuery,
		version.ID, version.DocumentID, version.VersionNumber,
		version.FilePath, version.FileSize, version.ContentType, nullString(version.FileHash),
		version.IsCurrentVersion, nullString(version.ChangeDescription), version.UploadedByID,
		version.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("document version",
				fmt.Sprintf("%s v%d", version.DocumentID, version.VersionNumber))
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("document", version.DocumentID.String())
		}
		return fmt.Errorf("failed to create document version: %w", err)
	}

	return nil
}

// ListVersions retrieves all versions for a document, newest first.
func (r *PgDocumentRepository) ListVersions(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_number,
			file_path, file_size, content_type, file_hash,
			is_current_version, change_description, uploaded_by_id,
			created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.DocumentVersion
	for rows.Next() {
		var (
			v          domain.DocumentVersion
			fileHash   *string
			changeDesc *string
		)
		err := rows.Scan(
			&v.ID, &v.DocumentID, &v.VersionNumber,
			&v.FilePath, &v.FileSize, &v.ContentType, &fileHash,
			&v.IsCurrentVersion, &changeDesc, &v.UploadedByID,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document version: %w", err)
		}
		if fileHash != nil {
			v.FileHash = *fileHash
		}
		if changeDesc != nil {
			v.ChangeDescription = *changeDesc
		}
		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document versions: %w", err)
	}

	return versions, nil
}

// Delete permanently removes a document row.
func (r *PgDocumentRepository) Delete(ctx context.Context, firmID, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND firm_id = $2`, id, firmID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document", id.String())
	}

	return nil
}

// documentScanDest holds the destination pointers for scanning a Document row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type documentScanDest struct {
	doc            domain.Document
	fileHash       *string
	currentRemarks *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *documentScanDest) destinations() []interface{} {
	return []interface{}{
		&d.doc.ID, &d.doc.FirmID, &d.doc.OwnerID, &d.doc.Title, &d.doc.Description,
		&d.doc.Status, &d.doc.WorkflowStage, &d.doc.DocumentType,
		&d.doc.CurrentVersion, &d.doc.FileSize, &d.doc.ContentType, &d.fileHash, &d.doc.DuplicateOfID,
		&d.doc.FolderID,
		&d.doc.AssignedStaffID, &d.doc.AssignedLawyerID, &d.doc.AssignedAdminID,
		&d.currentRemarks,
		&d.doc.StaffReviewedAt, &d.doc.LawyerReviewedAt, &d.doc.AdminReviewedAt, &d.doc.ApprovedAt,
		&d.doc.RetentionExpiryDate,
		&d.doc.CreatedAt, &d.doc.UpdatedAt,
	}
}

// finalize performs post-scan processing for nullable string fields.
func (d *documentScanDest) finalize() (*domain.Document, error) {
	if d.fileHash != nil {
		d.doc.FileHash = *d.fileHash
	}
	if d.currentRemarks != nil {
		d.doc.CurrentRemarks = *d.currentRemarks
	}
	return &d.doc, nil
}

// scanDocument scans a single row into a Document.
func scanDocument(row pgx.Row) (*domain.Document, error) {
	var dest documentScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanDocumentRows scans a single row from pgx.Rows into a Document.
// This is used with SELECT FOR UPDATE which returns Rows instead of Row.
func scanDocumentRows(rows pgx.Rows) (*domain.Document, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanDocumentFromRows(rows)
}

// scanDocumentFromRows scans the current row from pgx.Rows into a Document.
func scanDocumentFromRows(rows pgx.Rows) (*domain.Document, error) {
	var dest documentScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
