package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies schema migrations against the service database.
type Migrator struct {
	m      *migrate.Migrate
	stdDB  *sql.DB // database/sql handle borrowed from the pgx pool
	logger zerolog.Logger
}

// NewMigrator builds a Migrator reading migration files from dir. The
// directory must exist before any database driver is constructed.
func NewMigrator(db *DB, dir string, logger zerolog.Logger) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("database is required")
	case db.pool == nil:
		return nil, fmt.Errorf("database pool not initialized")
	case dir == "":
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	stdDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(stdDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{m: m, stdDB: stdDB, logger: logger}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	mg.logger.Info().Msg("applying schema migrations")
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info().Msg("schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	mg.logger.Info().Msg("schema migrations applied")
	return nil
}

// Down rolls every migration back.
func (mg *Migrator) Down() error {
	mg.logger.Warn().Msg("rolling back all schema migrations")
	if err := mg.m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info().Msg("nothing to roll back")
			return nil
		}
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	mg.logger.Info().Msg("schema migrations rolled back")
	return nil
}

// Steps moves the schema n versions forward (n > 0) or back (n < 0).
func (mg *Migrator) Steps(n int) error {
	mg.logger.Info().Int("steps", n).Msg("applying migration steps")
	err := mg.m.Steps(n)
	switch {
	case err == nil:
		mg.logger.Info().Int("steps", n).Msg("migration steps applied")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		mg.logger.Info().Msg("schema already up to date")
		return nil
	case errors.Is(err, os.ErrNotExist):
		// Stepping past the newest migration surfaces as a missing file.
		mg.logger.Info().Msg("no further migrations available")
		return nil
	default:
		return fmt.Errorf("failed to run migration steps: %w", err)
	}
}

// Version reports the current schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	return mg.m.Version()
}

// Force stamps the schema at version without running anything. Used to
// recover after a migration fails partway.
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn().Int("version", version).Msg("forcing schema version")
	return mg.m.Force(version)
}

// Close releases the migrate instance and returns the borrowed sql.DB
// connections to the pool.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	if mg.stdDB != nil {
		if err := mg.stdDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}
