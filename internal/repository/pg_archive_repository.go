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

// archiveColumns is the canonical column list for archive queries.
const archiveColumns = `id, document_id, firm_id,
		archive_type, reason, archived_by_id,
		original_status, original_stage, original_folder_id,
		is_restored, restored_by_id, restored_at,
		scheduled_delete_date, is_deleted, deleted_at,
		created_at`

// Compile-time interface verification.
var _ ArchiveRepository = (*PgArchiveRepository)(nil)

// PgArchiveRepository is a PostgreSQL implementation of ArchiveRepository.
type PgArchiveRepository struct {
	db DBTX
}

// NewPgArchiveRepository creates a new PostgreSQL archive repository.
func NewPgArchiveRepository(db DBTX) *PgArchiveRepository {
	return &PgArchiveRepository{db: db}
}

// Create inserts a new archive row. The partial unique index on
// (document_id) WHERE NOT is_restored AND NOT is_deleted enforces the
// single-active-archive invariant.
func (r *PgArchiveRepository) Create(ctx context.Context, archive *domain.Archive) error {
	if archive == nil {
		return domain.NewValidationError("archive", "archive cannot be nil")
	}
	if archive.ID == uuid.Nil {
		return domain.NewValidationError("id", "archive ID is required")
	}
	if archive.DocumentID == uuid.Nil {
		return domain.NewValidationError("document_id", "document ID is required")
	}
	if archive.FirmID == uuid.Nil {
		return domain.NewValidationError("firm_id", "firm ID is required")
	}
	if !archive.ArchiveType.Valid() {
		return domain.NewValidationError("archive_type", fmt.Sprintf("unknown archive type: %s", archive.ArchiveType))
	}

	query := fmt.Sprintf(`
		INSERT INTO archives (%s) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16
		)`, archiveColumns)

	_, err := r.db.Exec(ctx, query,
		archive.ID, archive.DocumentID, archive.FirmID,
		archive.ArchiveType, nullString(archive.Reason), archive.ArchivedByID,
		archive.OriginalStatus, archive.OriginalStage, archive.OriginalFolderID,
		archive.IsRestored, archive.RestoredByID, archive.RestoredAt,
		archive.ScheduledDeleteDate, archive.IsDeleted, archive.DeletedAt,
		archive.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("archive", archive.DocumentID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("document", archive.DocumentID.String())
		}
		return fmt.Errorf("failed to create archive: %w", err)
	}

	return nil
}

// Get retrieves an archive by its ID within a firm.
func (r *PgArchiveRepository) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Archive, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM archives
		WHERE id = $1 AND firm_id = $2`, archiveColumns)

	row := r.db.QueryRow(ctx, query, id, firmID)
	archive, err := scanArchive(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("archive", id.String())
		}
		return nil, fmt.Errorf("failed to get archive: %w", err)
	}

	return archive, nil
}

// GetActiveByDocument retrieves the document's active archive, if any.
func (r *PgArchiveRepository) GetActiveByDocument(ctx context.Context, documentID uuid.UUID) (*domain.Archive, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM archives
		WHERE document_id = $1 AND is_restored = FALSE AND is_deleted = FALSE`, archiveColumns)

	row := r.db.QueryRow(ctx, query, documentID)
	archive, err := scanArchive(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("active archive", documentID.String())
		}
		return nil, fmt.Errorf("failed to get active archive: %w", err)
	}

	return archive, nil
}

// MarkRestored closes an active archive as restored. The active-state guard
// in the WHERE clause makes a second restore report not found rather than
// silently re-closing the row.
func (r *PgArchiveRepository) MarkRestored(ctx context.Context, firmID, id uuid.UUID, restoredByID uuid.UUID, restoredAt time.Time) error {
	query := `
		UPDATE archives
		SET is_restored = TRUE, restored_by_id = $1, restored_at = $2
		WHERE id = $3 AND firm_id = $4 AND is_restored = FALSE AND is_deleted = FALSE`

	result, err := r.db.Exec(ctx, query, restoredByID, restoredAt, id, firmID)
	if err != nil {
		return fmt.Errorf("failed to mark archive restored: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("active archive", id.String())
	}

	return nil
}

// MarkDeleted closes an active archive as permanently deleted.
func (r *PgArchiveRepository) MarkDeleted(ctx context.Context, firmID, id uuid.UUID, deletedAt time.Time) error {
	query := `
		UPDATE archives
		SET is_deleted = TRUE, deleted_at = $1
		WHERE id = $2 AND firm_id = $3 AND is_restored = FALSE AND is_deleted = FALSE`

	result, err := r.db.Exec(ctx, query, deletedAt, id, firmID)
	if err != nil {
		return fmt.Errorf("failed to mark archive deleted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("active archive", id.String())
	}

	return nil
}

// List retrieves archives matching the filter criteria.
func (r *PgArchiveRepository) List(ctx context.Context, filter ArchiveFilter) ([]*domain.Archive, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"firm_id = $1"}
	args := []interface{}{filter.FirmID}
	argIndex := 2

	if filter.DocumentID != nil {
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", argIndex))
		args = append(args, *filter.DocumentID)
		argIndex++
	}

	if len(filter.ArchiveType) > 0 {
		placeholders := make([]string, len(filter.ArchiveType))
		for i, t := range filter.ArchiveType {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, t)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("archive_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.ActiveOnly {
		conditions = append(conditions, "is_restored = FALSE AND is_deleted = FALSE")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM archives WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count archives: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM archives
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		archiveColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list archives: %w", err)
	}
	defer rows.Close()

	archives := make([]*domain.Archive, 0, filter.Limit)
	for rows.Next() {
		archive, err := scanArchiveFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archive: %w", err)
		}
		archives = append(archives, archive)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating archives: %w", err)
	}

	return archives, totalCount, nil
}

// archiveScanDest holds the destination pointers for scanning an Archive row.
type archiveScanDest struct {
	archive domain.Archive
	reason  *string
}

func (d *archiveScanDest) destinations() []interface{} {
	return []interface{}{
		&d.archive.ID, &d.archive.DocumentID, &d.archive.FirmID,
		&d.archive.ArchiveType, &d.reason, &d.archive.ArchivedByID,
		&d.archive.OriginalStatus, &d.archive.OriginalStage, &d.archive.OriginalFolderID,
		&d.archive.IsRestored, &d.archive.RestoredByID, &d.archive.RestoredAt,
		&d.archive.ScheduledDeleteDate, &d.archive.IsDeleted, &d.archive.DeletedAt,
		&d.archive.CreatedAt,
	}
}

func (d *archiveScanDest) finalize() (*domain.Archive, error) {
	if d.reason != nil {
		d.archive.Reason = *d.reason
	}
	return &d.archive, nil
}

// scanArchive scans a single row into an Archive.
func scanArchive(row pgx.Row) (*domain.Archive, error) {
	var dest archiveScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanArchiveFromRows scans the current row from pgx.Rows into an Archive.
func scanArchiveFromRows(rows pgx.Rows) (*domain.Archive, error) {
	var dest archiveScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
