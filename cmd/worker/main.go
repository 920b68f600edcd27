// Package main provides the entry point for the retention sweep Temporal
// worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/lexvault/document-workflow-service/internal/config"
	"github.com/lexvault/document-workflow-service/internal/database"
	"github.com/lexvault/document-workflow-service/internal/notify"
	"github.com/lexvault/document-workflow-service/internal/observability"
	"github.com/lexvault/document-workflow-service/internal/temporal"
	"github.com/lexvault/document-workflow-service/internal/temporal/activities"
	"github.com/lexvault/document-workflow-service/internal/temporal/workflows"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("document-workflow-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Metrics registry.
	metrics := observability.NewMetrics("docflow")

	// Notification and audit sinks: Kafka when enabled, log-only otherwise.
	var (
		notifier notify.Notifier
		auditor  notify.Auditor
	)
	if cfg.Kafka.Enabled {
		publisher := notify.NewKafkaPublisher(cfg.Kafka, logger)
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close kafka publisher")
			}
		}()
		notifier = publisher
		auditor = publisher
	} else {
		sink := notify.NewLogSink(logger)
		notifier = sink
		auditor = sink
	}

	// The archiver does the actual per-document work inside sweep activities.
	effects := docflow.NewEffectRunner(notifier, auditor, metrics, logger)
	archiver := docflow.NewArchiver(db, docflow.PgRepos, effects, metrics, logger)

	// Connect to Temporal.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create and configure the worker.
	manager, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	manager.RegisterWorkflow(workflows.RetentionSweepWorkflow)
	manager.RegisterActivity(activities.NewSweepActivities(archiver))

	// Register the recurring sweep. Idempotent across worker replicas: the
	// fixed workflow ID means only the first registration takes effect.
	sweepClient := temporal.NewSweepWorkflowClient(temporalClient, cfg.Temporal.TaskQueue)
	workflowID, err := sweepClient.EnsureSweepSchedule(ctx, temporal.SweepSchedule{
		CronSchedule: cfg.Sweep.Schedule,
		StartDelay:   cfg.Sweep.StartDelay,
		BatchSize:    cfg.Sweep.BatchSize,
	}, workflows.RetentionSweepWorkflow)
	if err != nil {
		return fmt.Errorf("register sweep schedule: %w", err)
	}
	logger.Info().
		Str("workflow_id", workflowID).
		Str("schedule", cfg.Sweep.Schedule).
		Msg("retention sweep schedule registered")

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
