package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lexvault/document-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, firm_id, name, email, role, is_active, created_at, updated_at`

// Get retrieves a user by its ID within a firm.
func (r *PgUserRepository) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 AND firm_id = $2`, userColumns)

	row := r.db.QueryRow(ctx, query, id, firmID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListActiveByRole retrieves all active users in the firm holding the given role.
func (r *PgUserRepository) ListActiveByRole(ctx context.Context, firmID uuid.UUID, role domain.ReviewerRole) ([]*domain.User, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError("role", "unknown reviewer role")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE firm_id = $1 AND role = $2 AND is_active = true
		ORDER BY created_at ASC, id ASC`, userColumns)

	rows, err := r.db.Query(ctx, query, firmID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.FirmID, &u.Name, &u.Email, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
