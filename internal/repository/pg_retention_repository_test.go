package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// Helper to create a valid retention policy for testing.
func newTestPolicy() *domain.RetentionPolicy {
	now := time.Now().UTC()
	return &domain.RetentionPolicy{
		ID:           uuid.New(),
		FirmID:       uuid.New(),
		Name:         "Standard Contracts",
		Description:  "Default retention for executed contracts.",
		DocumentType: "Contract",
		Years:        7,
		IsDefault:    true,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Helper to create a valid document retention for testing.
func newTestRetention() *domain.DocumentRetention {
	now := time.Now().UTC()
	return &domain.DocumentRetention{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		Years:      7,
		StartDate:  now,
		ExpiryDate: now.AddDate(7, 0, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func policyRows(policy *domain.RetentionPolicy) *pgxmock.Rows {
	var description *string
	if policy.Description != "" {
		description = &policy.Description
	}
	return pgxmock.NewRows([]string{
		"id", "firm_id", "name", "description", "document_type",
		"years", "months", "days",
		"is_default", "is_active",
		"created_at", "updated_at",
	}).AddRow(
		policy.ID, policy.FirmID, policy.Name, description, policy.DocumentType,
		policy.Years, policy.Months, policy.Days,
		policy.IsDefault, policy.IsActive,
		policy.CreatedAt, policy.UpdatedAt,
	)
}

func retentionRows(retentions ...*domain.DocumentRetention) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "document_id", "policy_id",
		"years", "months", "days",
		"start_date", "expiry_date",
		"is_archived",
		"created_at", "updated_at",
	})
	for _, ret := range retentions {
		rows.AddRow(
			ret.ID, ret.DocumentID, ret.PolicyID,
			ret.Years, ret.Months, ret.Days,
			ret.StartDate, ret.ExpiryDate,
			ret.IsArchived,
			ret.CreatedAt, ret.UpdatedAt,
		)
	}
	return rows
}

func TestPgRetentionRepository_CreatePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("creates policy successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		policy := newTestPolicy()

		mock.ExpectExec("INSERT INTO retention_policies").
			WithArgs(anyArgs(12)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.CreatePolicy(ctx, policy)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for zero period", func(t *testing.T) {
		repo := NewPgRetentionRepository(nil)
		policy := newTestPolicy()
		policy.Years, policy.Months, policy.Days = 0, 0, 0

		err := repo.CreatePolicy(ctx, policy)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "period", validationErr.Field)
	})

	t.Run("returns validation error for negative component", func(t *testing.T) {
		repo := NewPgRetentionRepository(nil)
		policy := newTestPolicy()
		policy.Months = -1

		err := repo.CreatePolicy(ctx, policy)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "period", validationErr.Field)
	})

	t.Run("returns validation error for missing name", func(t *testing.T) {
		repo := NewPgRetentionRepository(nil)
		policy := newTestPolicy()
		policy.Name = ""

		err := repo.CreatePolicy(ctx, policy)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "name", validationErr.Field)
	})
}

func TestPgRetentionRepository_GetPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("returns policy when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		policy := newTestPolicy()

		mock.ExpectQuery("SELECT .* FROM retention_policies WHERE id = \\$1 AND firm_id = \\$2").
			WithArgs(policy.ID, policy.FirmID).
			WillReturnRows(policyRows(policy))

		result, err := repo.GetPolicy(ctx, policy.FirmID, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, policy.ID, result.ID)
		assert.Equal(t, policy.Description, result.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		id := uuid.New()
		firmID := uuid.New()

		mock.ExpectQuery("SELECT .* FROM retention_policies WHERE id = \\$1 AND firm_id = \\$2").
			WithArgs(id, firmID).
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetPolicy(ctx, firmID, id)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_SetDefaultPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the previous default and flags the target in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		id := uuid.New()
		firmID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT document_type FROM retention_policies WHERE id = \\$1 AND firm_id = \\$2 FOR UPDATE").
			WithArgs(id, firmID).
			WillReturnRows(pgxmock.NewRows([]string{"document_type"}).AddRow("Contract"))
		mock.ExpectExec("UPDATE retention_policies SET is_default = FALSE").
			WithArgs(pgxmock.AnyArg(), firmID, "Contract", id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE retention_policies SET is_default = TRUE").
			WithArgs(pgxmock.AnyArg(), id, firmID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.SetDefaultPolicy(ctx, firmID, id)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when the policy does not exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		id := uuid.New()
		firmID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT document_type FROM retention_policies WHERE id = \\$1 AND firm_id = \\$2 FOR UPDATE").
			WithArgs(id, firmID).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err = repo.SetDefaultPolicy(ctx, firmID, id)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_GetDefaultPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the active default policy", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		policy := newTestPolicy()

		mock.ExpectQuery("SELECT .* FROM retention_policies WHERE firm_id = \\$1 AND document_type = \\$2 AND is_default = TRUE AND is_active = TRUE").
			WithArgs(policy.FirmID, "Contract").
			WillReturnRows(policyRows(policy))

		result, err := repo.GetDefaultPolicy(ctx, policy.FirmID, "Contract")
		require.NoError(t, err)
		assert.Equal(t, policy.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty document type falls back to the catch-all type", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		firmID := uuid.New()

		mock.ExpectQuery("SELECT .* FROM retention_policies WHERE firm_id = \\$1 AND document_type = \\$2").
			WithArgs(firmID, domain.DefaultDocumentType).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetDefaultPolicy(ctx, firmID, "")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_CreateRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("creates retention successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		retention := newTestRetention()

		mock.ExpectExec("INSERT INTO document_retentions").
			WithArgs(anyArgs(11)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.CreateRetention(ctx, retention)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error when expiry precedes start", func(t *testing.T) {
		repo := NewPgRetentionRepository(nil)
		retention := newTestRetention()
		retention.ExpiryDate = retention.StartDate.AddDate(0, 0, -1)

		err := repo.CreateRetention(ctx, retention)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "expiry_date", validationErr.Field)
	})

	t.Run("returns already exists error when the document has a retention", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		retention := newTestRetention()

		pgErr := &pgconn.PgError{Code: "23505"} // Unique constraint violation
		mock.ExpectExec("INSERT INTO document_retentions").
			WithArgs(anyArgs(11)...).
			WillReturnError(pgErr)

		err = repo.CreateRetention(ctx, retention)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when the document is gone", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		retention := newTestRetention()

		pgErr := &pgconn.PgError{Code: "23503"} // Foreign key violation
		mock.ExpectExec("INSERT INTO document_retentions").
			WithArgs(anyArgs(11)...).
			WillReturnError(pgErr)

		err = repo.CreateRetention(ctx, retention)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_MarkArchived(t *testing.T) {
	ctx := context.Background()

	t.Run("flags the retention row archived", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		documentID := uuid.New()

		mock.ExpectExec("UPDATE document_retentions SET is_archived = TRUE").
			WithArgs(pgxmock.AnyArg(), documentID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.MarkArchived(ctx, documentID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when the document has no retention", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		documentID := uuid.New()

		mock.ExpectExec("UPDATE document_retentions SET is_archived = TRUE").
			WithArgs(pgxmock.AnyArg(), documentID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkArchived(ctx, documentID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_ListExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("returns expired rows oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		now := time.Now().UTC()

		oldest := newTestRetention()
		oldest.ExpiryDate = now.AddDate(-2, 0, 0)
		newer := newTestRetention()
		newer.ExpiryDate = now.AddDate(-1, 0, 0)

		mock.ExpectQuery("SELECT .* FROM document_retentions WHERE is_archived = FALSE AND expiry_date <= \\$1").
			WithArgs(now, 50).
			WillReturnRows(retentionRows(oldest, newer))

		results, err := repo.ListExpired(ctx, now, 50)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, oldest.ID, results[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies the default limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT .* FROM document_retentions WHERE is_archived = FALSE").
			WithArgs(now, defaultFilterLimit).
			WillReturnRows(retentionRows())

		results, err := repo.ListExpired(ctx, now, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("caps the limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT .* FROM document_retentions WHERE is_archived = FALSE").
			WithArgs(now, maxFilterLimit).
			WillReturnRows(retentionRows())

		_, err = repo.ListExpired(ctx, now, 100000)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRetentionRepository_UpdateRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the retention row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		retention := newTestRetention()

		mock.ExpectExec("UPDATE document_retentions SET").
			WithArgs(anyArgs(9)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateRetention(ctx, retention)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no row matched", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRetentionRepository(mock)
		retention := newTestRetention()

		mock.ExpectExec("UPDATE document_retentions SET").
			WithArgs(anyArgs(9)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateRetention(ctx, retention)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
