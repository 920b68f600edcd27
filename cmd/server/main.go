// Package main provides the entry point for the document workflow service
// HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"

	"github.com/lexvault/document-workflow-service/internal/config"
	"github.com/lexvault/document-workflow-service/internal/database"
	"github.com/lexvault/document-workflow-service/internal/notify"
	"github.com/lexvault/document-workflow-service/internal/observability"
	httpserver "github.com/lexvault/document-workflow-service/internal/server/http"
	"github.com/lexvault/document-workflow-service/internal/storage"
	"github.com/lexvault/document-workflow-service/internal/temporal"
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
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("document-workflow-service server starting")

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

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

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
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka publisher initialized")
	} else {
		sink := notify.NewLogSink(logger)
		notifier = sink
		auditor = sink
		logger.Info().Msg("kafka disabled, using log-only event sinks")
	}

	// Workflow engine and its collaborators.
	effects := docflow.NewEffectRunner(notifier, auditor, metrics, logger)
	archiver := docflow.NewArchiver(db, docflow.PgRepos, effects, metrics, logger)
	files := storage.NewLocalStore(cfg.Storage.RootPath, logger)
	engine := docflow.NewEngine(db, docflow.PgRepos, archiver, effects, files, metrics, logger)

	// Repositories for read endpoints.
	repos := docflow.PgRepos(db)

	// Create Temporal client for operator-triggered sweeps.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	sweepClient := temporal.NewSweepWorkflowClient(temporalClient, cfg.Temporal.TaskQueue)
	defer sweepClient.Close()

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		SweepBatchSize:  cfg.Sweep.BatchSize,
	}

	httpSrv := httpserver.NewServer(
		httpCfg,
		engine,
		sweepClient,
		workflows.RetentionSweepWorkflow,
		repos.Documents,
		repos.Reviews,
		repos.Retentions,
		repos.Archives,
		db,
		logger,
		authMiddlewareFromEnv(),
	)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("document-workflow-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down document-workflow-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("document-workflow-service shutdown complete")
	return nil
}

// authMiddlewareFromEnv returns the pluggable auth middleware. The service
// sits behind an authenticating gateway that forwards the user identity in
// the X-User-ID header; when DOCFLOW_AUTH_TOKEN is set, requests must also
// carry it as a bearer token.
func authMiddlewareFromEnv() func(http.Handler) http.Handler {
	token := os.Getenv("DOCFLOW_AUTH_TOKEN")
	if token == "" {
		return nil
	}

	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
