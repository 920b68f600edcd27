// Command migrate manages the document workflow database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/config"
	"github.com/lexvault/document-workflow-service/internal/database"
	"github.com/lexvault/document-workflow-service/internal/observability"
)

type action struct {
	up      bool
	down    bool
	steps   int
	version bool
	force   int
	path    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var a action
	flag.BoolVar(&a.up, "up", false, "Apply all pending migrations")
	flag.BoolVar(&a.down, "down", false, "Roll back all migrations")
	flag.IntVar(&a.steps, "steps", 0, "Apply N migration steps (negative rolls back)")
	flag.BoolVar(&a.version, "version", false, "Print the current schema version")
	flag.IntVar(&a.force, "force", -1, "Stamp the schema version without migrating")
	flag.StringVar(&a.path, "path", "", "Override the migrations directory")
	flag.Parse()

	selected := 0
	for _, on := range []bool{a.up, a.down, a.steps != 0, a.version, a.force >= 0} {
		if on {
			selected++
		}
	}
	if selected == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nSpecify one of: -up, -down, -steps N, -version, -force V")
		return fmt.Errorf("no action specified")
	}
	if selected > 1 {
		return fmt.Errorf("specify only one action at a time")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if a.path != "" {
		dir = a.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	mg, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := mg.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case a.up:
		err = mg.Up()
	case a.down:
		err = mg.Down()
	case a.steps != 0:
		err = mg.Steps(a.steps)
	case a.force >= 0:
		err = mg.Force(a.force)
	}
	if err != nil {
		return err
	}

	reportVersion(mg, logger)
	return nil
}

func reportVersion(mg *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := mg.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
