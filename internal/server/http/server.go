// Package httpserver provides the HTTP REST API server for the document
// workflow service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/database"
	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/repository"
	"github.com/lexvault/document-workflow-service/internal/temporal"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// WorkflowEngine defines the workflow operations the HTTP server exposes.
// Satisfied by *workflow.Engine; narrowed to an interface so handler tests
// can substitute a fake.
type WorkflowEngine interface {
	CreateDocument(ctx context.Context, input docflow.UploadInput) (*domain.Document, *domain.User, error)
	AssignToStaff(ctx context.Context, firmID, documentID uuid.UUID) (*domain.User, error)
	StartReview(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole) error
	StaffApprove(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	StaffReject(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	LawyerApprove(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	LawyerReject(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	AdminApprove(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, *domain.DocumentRetention, error)
	AdminApproveWithRetention(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string, override docflow.RetentionOverride) (*domain.DocumentReview, *domain.DocumentRetention, error)
	AdminReject(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, error)
	StaffEditDocument(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error)
	LawyerEditDocument(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error)
	CreateRetentionPolicy(ctx context.Context, policy *domain.RetentionPolicy) error
	SetDefaultRetentionPolicy(ctx context.Context, firmID, policyID uuid.UUID) error
	ModifyRetention(ctx context.Context, firmID, documentID, actorID uuid.UUID, override docflow.RetentionOverride) (*domain.DocumentRetention, error)
	ArchiveDocument(ctx context.Context, firmID, documentID, actorID uuid.UUID, reason string) (*domain.Archive, error)
	Restore(ctx context.Context, firmID, archiveID, actorID uuid.UUID, resetRetention bool) (*domain.Document, error)
	PermanentDelete(ctx context.Context, firmID, archiveID uuid.UUID, actorID *uuid.UUID, force bool) error
}

// SweepClient defines the Temporal operations the HTTP server uses for the
// retention sweep. Satisfied by *temporal.SweepWorkflowClient.
type SweepClient interface {
	TriggerSweep(ctx context.Context, input temporal.SweepWorkflowInput, workflowFunc interface{}) (workflowID, runID string, err error)
	Health(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	engine        WorkflowEngine
	sweepClient   SweepClient
	sweepWorkflow interface{} // The Temporal workflow function reference.
	sweepBatch    int
	documentRepo  repository.DocumentRepository
	reviewRepo    repository.ReviewRepository
	retentionRepo repository.RetentionRepository
	archiveRepo   repository.ArchiveRepository
	db            *database.DB
	logger        zerolog.Logger
	authMW        func(http.Handler) http.Handler
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// SweepBatchSize is passed to operator-triggered sweep runs.
	SweepBatchSize int
}

// NewServer creates a new HTTP server with all dependencies.
// sweepWorkflow is the Temporal workflow function reference
// (workflows.RetentionSweepWorkflow) passed to TriggerSweep. sweepClient may
// be nil when the deployment runs without Temporal; the sweep trigger
// endpoint then returns 503.
func NewServer(
	cfg Config,
	engine WorkflowEngine,
	sweepClient SweepClient,
	sweepWorkflow interface{},
	documentRepo repository.DocumentRepository,
	reviewRepo repository.ReviewRepository,
	retentionRepo repository.RetentionRepository,
	archiveRepo repository.ArchiveRepository,
	db *database.DB,
	logger zerolog.Logger,
	authMW func(http.Handler) http.Handler,
) *Server {
	s := &Server{
		engine:        engine,
		sweepClient:   sweepClient,
		sweepWorkflow: sweepWorkflow,
		sweepBatch:    cfg.SweepBatchSize,
		documentRepo:  documentRepo,
		reviewRepo:    reviewRepo,
		retentionRepo: retentionRepo,
		archiveRepo:   archiveRepo,
		db:            db,
		logger:        logger.With().Str("component", "http-server").Logger(),
		authMW:        authMW,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	// API routes with auth + firm context
	r.Route("/api/v1/firms/{firmID}", func(r chi.Router) {
		if s.authMW != nil {
			r.Use(s.authMW)
		}
		r.Use(firmContextMiddleware)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.createDocument)
			r.Get("/", s.listDocuments)
			r.Get("/{documentID}", s.getDocument)
			r.Post("/{documentID}/assign", s.assignDocument)
			r.Get("/{documentID}/versions", s.listVersions)
			r.Post("/{documentID}/versions", s.uploadVersion)
			r.Post("/{documentID}/reviews/start", s.startReview)
			r.Post("/{documentID}/reviews", s.submitReview)
			r.Get("/{documentID}/reviews", s.listReviews)
			r.Get("/{documentID}/reviews/{reviewID}/checklist", s.getChecklist)
			r.Get("/{documentID}/retention", s.getRetention)
			r.Put("/{documentID}/retention", s.modifyRetention)
			r.Post("/{documentID}/archive", s.archiveDocument)
		})

		r.Route("/retention-policies", func(r chi.Router) {
			r.Post("/", s.createRetentionPolicy)
			r.Get("/", s.listRetentionPolicies)
			r.Get("/{policyID}", s.getRetentionPolicy)
			r.Post("/{policyID}/default", s.setDefaultRetentionPolicy)
		})

		r.Route("/archives", func(r chi.Router) {
			r.Get("/", s.listArchives)
			r.Get("/{archiveID}", s.getArchive)
			r.Post("/{archiveID}/restore", s.restoreArchive)
			r.Delete("/{archiveID}", s.deleteArchive)
		})
	})

	// Operator endpoints
	r.Route("/api/v1/admin", func(r chi.Router) {
		if s.authMW != nil {
			r.Use(s.authMW)
		}
		r.Post("/sweep", s.triggerSweep)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}

	temporalStatus := "disabled"
	if s.sweepClient != nil {
		temporalStatus = "healthy"
		if err := s.sweepClient.Health(r.Context()); err != nil {
			temporalStatus = "unhealthy"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
		"temporal": temporalStatus,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
