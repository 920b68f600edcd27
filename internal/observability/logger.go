package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	// Level is the minimum level emitted (trace through panic).
	Level string
	// Format selects json or console output.
	Format string
	// Output selects stdout or stderr.
	Output string
	// AddSource includes the caller file and line in each entry.
	AddSource bool
	// TimeFormat overrides the RFC3339 timestamp format.
	TimeFormat string
}

// DefaultLoggingConfig returns production defaults: info-level json on
// stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds the service's root zerolog logger from cfg. The
// console format is meant for local development; production runs json.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return ctx.Logger().Level(level)
}

// parseLevel maps a level name to zerolog.Level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithDocumentContext adds common document fields to a logger.
func WithDocumentContext(logger zerolog.Logger, documentID, firmID string) zerolog.Logger {
	return logger.With().
		Str("document_id", documentID).
		Str("firm_id", firmID).
		Logger()
}

// WithReviewerContext adds reviewer fields to a logger.
func WithReviewerContext(logger zerolog.Logger, reviewerID, role string) zerolog.Logger {
	return logger.With().
		Str("reviewer_id", reviewerID).
		Str("role", role).
		Logger()
}

// WithSweepContext adds sweep run fields to a logger.
func WithSweepContext(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().
		Str("sweep_run_id", runID).
		Logger()
}

// WithWorkflowContext adds Temporal workflow fields to a logger.
func WithWorkflowContext(logger zerolog.Logger, workflowID, runID string) zerolog.Logger {
	return logger.With().
		Str("workflow_id", workflowID).
		Str("workflow_run_id", runID).
		Logger()
}
