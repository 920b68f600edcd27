package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// policyColumns is the canonical column list for retention policy queries.
const policyColumns = `id, firm_id, name, description, document_type,
		years, months, days,
		is_default, is_active,
		created_at, updated_at`

// retentionColumns is the canonical column list for document retention queries.
const retentionColumns = `id, document_id, policy_id,
		years, months, days,
		start_date, expiry_date,
		is_archived,
		created_at, updated_at`

// Compile-time interface verification.
var _ RetentionRepository = (*PgRetentionRepository)(nil)

// PgRetentionRepository is a PostgreSQL implementation of RetentionRepository.
type PgRetentionRepository struct {
	db DBTX
}

// NewPgRetentionRepository creates a new PostgreSQL retention repository.
func NewPgRetentionRepository(db DBTX) *PgRetentionRepository {
	return &PgRetentionRepository{db: db}
}

// CreatePolicy inserts a new retention policy.
func (r *PgRetentionRepository) CreatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	if policy == nil {
		return domain.NewValidationError("policy", "policy cannot be nil")
	}
	if policy.ID == uuid.Nil {
		return domain.NewValidationError("id", "policy ID is required")
	}
	if policy.FirmID == uuid.Nil {
		return domain.NewValidationError("firm_id", "firm ID is required")
	}
	if policy.Name == "" {
		return domain.NewValidationError("name", "policy name is required")
	}
	if policy.Years < 0 || policy.Months < 0 || policy.Days < 0 {
		return domain.NewValidationError("period", "retention period components must be non-negative")
	}
	if policy.Years == 0 && policy.Months == 0 && policy.Days == 0 {
		return domain.NewValidationError("period", "retention period must be positive")
	}

	query := fmt.Sprintf(`
		INSERT INTO retention_policies (%s) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10,
			$11, $12
		)`, policyColumns)

	_, err := r.db.Exec(ctx, query,
		policy.ID, policy.FirmID, policy.Name, nullString(policy.Description), policy.DocumentType,
		policy.Years, policy.Months, policy.Days,
		policy.IsDefault, policy.IsActive,
		policy.CreatedAt, policy.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("retention policy", policy.ID.String())
		}
		return fmt.Errorf("failed to create retention policy: %w", err)
	}

	return nil
}

// GetPolicy retrieves a policy by its ID within a firm.
func (r *PgRetentionRepository) GetPolicy(ctx context.Context, firmID, id uuid.UUID) (*domain.RetentionPolicy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM retention_policies
		WHERE id = $1 AND firm_id = $2`, policyColumns)

	row := r.db.QueryRow(ctx, query, id, firmID)
	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("retention policy", id.String())
		}
		return nil, fmt.Errorf("failed to get retention policy: %w", err)
	}

	return policy, nil
}

// UpdatePolicy persists changes to an existing policy.
func (r *PgRetentionRepository) UpdatePolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	if policy == nil {
		return domain.NewValidationError("policy", "policy cannot be nil")
	}

	query := `
		UPDATE retention_policies SET
			name = $1,
			description = $2,
			document_type = $3,
			years = $4,
			months = $5,
			days = $6,
			is_default = $7,
			is_active = $8,
			updated_at = $9
		WHERE id = $10 AND firm_id = $11`

	result, err := r.db.Exec(ctx, query,
		policy.Name, nullString(policy.Description), policy.DocumentType,
		policy.Years, policy.Months, policy.Days,
		policy.IsDefault, policy.IsActive,
		time.Now().UTC(),
		policy.ID, policy.FirmID,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("retention policy", policy.ID.String())
		}
		return fmt.Errorf("failed to update retention policy: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("retention policy", policy.ID.String())
	}

	return nil
}

// SetDefaultPolicy atomically flags the policy as the default for its
// (firm, document type) pair. Runs inside a transaction when the underlying
// DBTX is a pool so the clear and set are a single atomic unit.
func (r *PgRetentionRepository) SetDefaultPolicy(ctx context.Context, firmID, id uuid.UUID) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for set default: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgRetentionRepository{db: tx}
		if err := txRepo.setDefaultInTx(ctx, firmID, id); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return r.setDefaultInTx(ctx, firmID, id)
}

func (r *PgRetentionRepository) setDefaultInTx(ctx context.Context, firmID, id uuid.UUID) error {
	// Lock the target row and read its document type.
	var documentType string
	err := r.db.QueryRow(ctx, `
		SELECT document_type
		FROM retention_policies
		WHERE id = $1 AND firm_id = $2
		FOR UPDATE`, id, firmID).Scan(&documentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("retention policy", id.String())
		}
		return fmt.Errorf("failed to lock retention policy: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE retention_policies
		SET is_default = FALSE, updated_at = $1
		WHERE firm_id = $2 AND document_type = $3 AND is_default = TRUE AND id <> $4`,
		time.Now().UTC(), firmID, documentType, id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear default flag: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE retention_policies
		SET is_default = TRUE, is_active = TRUE, updated_at = $1
		WHERE id = $2 AND firm_id = $3`,
		time.Now().UTC(), id, firmID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default flag: %w", err)
	}

	return nil
}

// GetDefaultPolicy retrieves the active default policy for a firm and
// document type.
func (r *PgRetentionRepository) GetDefaultPolicy(ctx context.Context, firmID uuid.UUID, documentType string) (*domain.RetentionPolicy, error) {
	if documentType == "" {
		documentType = domain.DefaultDocumentType
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM retention_policies
		WHERE firm_id = $1 AND document_type = $2 AND is_default = TRUE AND is_active = TRUE`, policyColumns)

	row := r.db.QueryRow(ctx, query, firmID, documentType)
	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("default retention policy", documentType)
		}
		return nil, fmt.Errorf("failed to get default retention policy: %w", err)
	}

	return policy, nil
}

// ListPolicies retrieves all policies for a firm, default-first.
func (r *PgRetentionRepository) ListPolicies(ctx context.Context, firmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM retention_policies
		WHERE firm_id = $1 AND ($2 = FALSE OR is_active = TRUE)
		ORDER BY is_default DESC, document_type ASC, name ASC`, policyColumns)

	rows, err := r.db.Query(ctx, query, firmID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list retention policies: %w", err)
	}
	defer rows.Close()

	var policies []*domain.RetentionPolicy
	for rows.Next() {
		policy, err := scanPolicyFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retention policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retention policies: %w", err)
	}

	return policies, nil
}

// CreateRetention inserts a retention assignment for a document.
func (r *PgRetentionRepository) CreateRetention(ctx context.Context, retention *domain.DocumentRetention) error {
	if retention == nil {
		return domain.NewValidationError("retention", "retention cannot be nil")
	}
	if retention.ID == uuid.Nil {
		return domain.NewValidationError("id", "retention ID is required")
	}
	if retention.DocumentID == uuid.Nil {
		return domain.NewValidationError("document_id", "document ID is required")
	}
	if !retention.ExpiryDate.After(retention.StartDate) {
		return domain.NewValidationError("expiry_date", "expiry date must be after start date")
	}

	query := fmt.Sprintf(`
		INSERT INTO document_retentions (%s) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9,
			$10, $11
		)`, retentionColumns)

	_, err := r.db.Exec(ctx, query,
		retention.ID, retention.DocumentID, retention.PolicyID,
		retention.Years, retention.Months, retention.Days,
		retention.StartDate, retention.ExpiryDate,
		retention.IsArchived,
		retention.CreatedAt, retention.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("document retention", retention.DocumentID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("document", retention.DocumentID.String())
		}
		return fmt.Errorf("failed to create document retention: %w", err)
	}

	return nil
}

// GetByDocument retrieves the retention assignment for a document.
func (r *PgRetentionRepository) GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM document_retentions
		WHERE document_id = $1`, retentionColumns)

	row := r.db.QueryRow(ctx, query, documentID)
	retention, err := scanRetention(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("document retention", documentID.String())
		}
		return nil, fmt.Errorf("failed to get document retention: %w", err)
	}

	return retention, nil
}

// UpdateRetention persists changed period and expiry fields of a retention row.
func (r *PgRetentionRepository) UpdateRetention(ctx context.Context, retention *domain.DocumentRetention) error {
	if retention == nil {
		return domain.NewValidationError("retention", "retention cannot be nil")
	}

	query := `
		UPDATE document_retentions SET
			policy_id = $1,
			years = $2,
			months = $3,
			days = $4,
			start_date = $5,
			expiry_date = $6,
			is_archived = $7,
			updated_at = $8
		WHERE document_id = $9`

	result, err := r.db.Exec(ctx, query,
		retention.PolicyID,
		retention.Years, retention.Months, retention.Days,
		retention.StartDate, retention.ExpiryDate,
		retention.IsArchived,
		time.Now().UTC(),
		retention.DocumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document retention: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document retention", retention.DocumentID.String())
	}

	return nil
}

// MarkArchived flags the document's retention row as archived.
func (r *PgRetentionRepository) MarkArchived(ctx context.Context, documentID uuid.UUID) error {
	query := `
		UPDATE document_retentions
		SET is_archived = TRUE, updated_at = $1
		WHERE document_id = $2`

	result, err := r.db.Exec(ctx, query, time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("failed to mark retention archived: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("document retention", documentID.String())
	}

	return nil
}

// ListExpired retrieves unarchived retention rows whose expiry has passed,
// oldest expiry first. Used by the archival sweep to page through candidates.
func (r *PgRetentionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.DocumentRetention, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM document_retentions
		WHERE is_archived = FALSE AND expiry_date <= $1
		ORDER BY expiry_date ASC, id ASC
		LIMIT $2`, retentionColumns)

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired retentions: %w", err)
	}
	defer rows.Close()

	var retentions []*domain.DocumentRetention
	for rows.Next() {
		retention, err := scanRetentionFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired retention: %w", err)
		}
		retentions = append(retentions, retention)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired retentions: %w", err)
	}

	return retentions, nil
}

// DeleteByDocument removes the retention row for a document, if any.
func (r *PgRetentionRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_retentions WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document retention: %w", err)
	}
	return nil
}

// policyScanDest holds the destination pointers for scanning a RetentionPolicy row.
type policyScanDest struct {
	policy      domain.RetentionPolicy
	description *string
}

func (d *policyScanDest) destinations() []interface{} {
	return []interface{}{
		&d.policy.ID, &d.policy.FirmID, &d.policy.Name, &d.description, &d.policy.DocumentType,
		&d.policy.Years, &d.policy.Months, &d.policy.Days,
		&d.policy.IsDefault, &d.policy.IsActive,
		&d.policy.CreatedAt, &d.policy.UpdatedAt,
	}
}

func (d *policyScanDest) finalize() (*domain.RetentionPolicy, error) {
	if d.description != nil {
		d.policy.Description = *d.description
	}
	return &d.policy, nil
}

// scanPolicy scans a single row into a RetentionPolicy.
func scanPolicy(row pgx.Row) (*domain.RetentionPolicy, error) {
	var dest policyScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPolicyFromRows scans the current row from pgx.Rows into a RetentionPolicy.
func scanPolicyFromRows(rows pgx.Rows) (*domain.RetentionPolicy, error) {
	var dest policyScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanRetention scans a single row into a DocumentRetention.
func scanRetention(row pgx.Row) (*domain.DocumentRetention, error) {
	var ret domain.DocumentRetention
	err := row.Scan(
		&ret.ID, &ret.DocumentID, &ret.PolicyID,
		&ret.Years, &ret.Months, &ret.Days,
		&ret.StartDate, &ret.ExpiryDate,
		&ret.IsArchived,
		&ret.CreatedAt, &ret.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// scanRetentionFromRows scans the current row from pgx.Rows into a DocumentRetention.
func scanRetentionFromRows(rows pgx.Rows) (*domain.DocumentRetention, error) {
	var ret domain.DocumentRetention
	err := rows.Scan(
		&ret.ID, &ret.DocumentID, &ret.PolicyID,
		&ret.Years, &ret.Months, &ret.Days,
		&ret.StartDate, &ret.ExpiryDate,
		&ret.IsArchived,
		&ret.CreatedAt, &ret.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}
