package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the document workflow service.
// Metrics are organized by subsystem: workflow transitions, reviewer
// assignments, retention, and the archival sweep. All counters and histograms
// are registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// DocumentsAssigned counts reviewer assignments, labeled by role.
	DocumentsAssigned *prometheus.CounterVec

	// AssignmentsUnavailable counts assignment attempts that found an empty
	// reviewer pool, labeled by role.
	AssignmentsUnavailable *prometheus.CounterVec

	// ReviewsRecorded counts review decisions, labeled by role and decision.
	ReviewsRecorded *prometheus.CounterVec

	// VersionsUploaded counts new document versions created by reviewer edits.
	VersionsUploaded prometheus.Counter

	// RetentionsCreated counts retention records created on admin approval,
	// labeled by source ("default_policy", "fallback", "explicit").
	RetentionsCreated *prometheus.CounterVec

	// DocumentsArchived counts archive rows created, labeled by archive type.
	DocumentsArchived *prometheus.CounterVec

	// DocumentsRestored counts archive restores.
	DocumentsRestored prometheus.Counter

	// DocumentsDeleted counts permanent deletions.
	DocumentsDeleted prometheus.Counter

	// SideEffectFailures counts swallowed follow-up write failures, labeled
	// by sink ("notification", "audit", "checklist").
	SideEffectFailures *prometheus.CounterVec

	// SweepRuns counts sweep executions, labeled by outcome ("success",
	// "error", "cancelled").
	SweepRuns *prometheus.CounterVec

	// SweepDocumentsScanned counts retention rows examined by sweeps.
	SweepDocumentsScanned prometheus.Counter

	// SweepDocumentsFailed counts per-document sweep failures that were
	// logged and skipped.
	SweepDocumentsFailed prometheus.Counter

	// SweepDuration observes sweep run duration in seconds.
	SweepDuration prometheus.Histogram

	// OperationDuration observes workflow operation duration in seconds,
	// labeled by operation.
	OperationDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DocumentsAssigned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_assigned_total",
			Help:      "Total number of reviewer assignments",
		}, []string{"role"}),
		AssignmentsUnavailable: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_unavailable_total",
			Help:      "Total number of assignment attempts with an empty reviewer pool",
		}, []string{"role"}),
		ReviewsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_recorded_total",
			Help:      "Total number of review decisions recorded",
		}, []string{"role", "decision"}),
		VersionsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_uploaded_total",
			Help:      "Total number of document versions created by reviewer edits",
		}),
		RetentionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retentions_created_total",
			Help:      "Total number of retention records created",
		}, []string{"source"}),
		DocumentsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_archived_total",
			Help:      "Total number of documents archived",
		}, []string{"archive_type"}),
		DocumentsRestored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_restored_total",
			Help:      "Total number of archived documents restored",
		}),
		DocumentsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Total number of documents permanently deleted",
		}),
		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Total number of swallowed notification and audit failures",
		}, []string{"sink"}),
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of archival sweep executions",
		}, []string{"outcome"}),
		SweepDocumentsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_documents_scanned_total",
			Help:      "Total number of retention rows examined by sweeps",
		}),
		SweepDocumentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_documents_failed_total",
			Help:      "Total number of per-document sweep failures skipped",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Archival sweep run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Workflow operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
