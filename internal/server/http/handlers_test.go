package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/repository"
	"github.com/lexvault/document-workflow-service/internal/temporal"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockEngine implements WorkflowEngine for HTTP handler tests.
type mockEngine struct {
	createDocumentFn            func(ctx context.Context, input docflow.UploadInput) (*domain.Document, *domain.User, error)
	assignToStaffFn             func(ctx context.Context, firmID, documentID uuid.UUID) (*domain.User, error)
	startReviewFn               func(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole) error
	staffApproveFn              func(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	staffRejectFn               func(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	lawyerApproveFn             func(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	lawyerRejectFn              func(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error)
	adminApproveFn              func(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, *domain.DocumentRetention, error)
	adminApproveWithRetentionFn func(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string, override docflow.RetentionOverride) (*domain.DocumentReview, *domain.DocumentRetention, error)
	adminRejectFn               func(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, error)
	staffEditDocumentFn         func(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error)
	lawyerEditDocumentFn        func(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error)
	createRetentionPolicyFn     func(ctx context.Context, policy *domain.RetentionPolicy) error
	setDefaultPolicyFn          func(ctx context.Context, firmID, policyID uuid.UUID) error
	modifyRetentionFn           func(ctx context.Context, firmID, documentID, actorID uuid.UUID, override docflow.RetentionOverride) (*domain.DocumentRetention, error)
	archiveDocumentFn           func(ctx context.Context, firmID, documentID, actorID uuid.UUID, reason string) (*domain.Archive, error)
	restoreFn                   func(ctx context.Context, firmID, archiveID, actorID uuid.UUID, resetRetention bool) (*domain.Document, error)
	permanentDeleteFn           func(ctx context.Context, firmID, archiveID uuid.UUID, actorID *uuid.UUID, force bool) error
}

func (m *mockEngine) CreateDocument(ctx context.Context, input docflow.UploadInput) (*domain.Document, *domain.User, error) {
	if m.createDocumentFn != nil {
		return m.createDocumentFn(ctx, input)
	}
	return nil, nil, domain.ErrInternalError
}

func (m *mockEngine) AssignToStaff(ctx context.Context, firmID, documentID uuid.UUID) (*domain.User, error) {
	if m.assignToStaffFn != nil {
		return m.assignToStaffFn(ctx, firmID, documentID)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) StartReview(ctx context.Context, firmID, documentID, reviewerID uuid.UUID, role domain.ReviewerRole) error {
	if m.startReviewFn != nil {
		return m.startReviewFn(ctx, firmID, documentID, reviewerID, role)
	}
	return domain.ErrInternalError
}

func (m *mockEngine) StaffApprove(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error) {
	if m.staffApproveFn != nil {
		return m.staffApproveFn(ctx, firmID, documentID, staffID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) StaffReject(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error) {
	if m.staffRejectFn != nil {
		return m.staffRejectFn(ctx, firmID, documentID, staffID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) LawyerApprove(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error) {
	if m.lawyerApproveFn != nil {
		return m.lawyerApproveFn(ctx, firmID, documentID, lawyerID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) LawyerReject(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.ReviewInput) (*domain.DocumentReview, error) {
	if m.lawyerRejectFn != nil {
		return m.lawyerRejectFn(ctx, firmID, documentID, lawyerID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) AdminApprove(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, *domain.DocumentRetention, error) {
	if m.adminApproveFn != nil {
		return m.adminApproveFn(ctx, firmID, documentID, adminID, remarks)
	}
	return nil, nil, domain.ErrInternalError
}

func (m *mockEngine) AdminApproveWithRetention(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string, override docflow.RetentionOverride) (*domain.DocumentReview, *domain.DocumentRetention, error) {
	if m.adminApproveWithRetentionFn != nil {
		return m.adminApproveWithRetentionFn(ctx, firmID, documentID, adminID, remarks, override)
	}
	return nil, nil, domain.ErrInternalError
}

func (m *mockEngine) AdminReject(ctx context.Context, firmID, documentID, adminID uuid.UUID, remarks string) (*domain.DocumentReview, error) {
	if m.adminRejectFn != nil {
		return m.adminRejectFn(ctx, firmID, documentID, adminID, remarks)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) StaffEditDocument(ctx context.Context, firmID, documentID, staffID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error) {
	if m.staffEditDocumentFn != nil {
		return m.staffEditDocumentFn(ctx, firmID, documentID, staffID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) LawyerEditDocument(ctx context.Context, firmID, documentID, lawyerID uuid.UUID, input docflow.VersionInput) (*domain.DocumentVersion, error) {
	if m.lawyerEditDocumentFn != nil {
		return m.lawyerEditDocumentFn(ctx, firmID, documentID, lawyerID, input)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) CreateRetentionPolicy(ctx context.Context, policy *domain.RetentionPolicy) error {
	if m.createRetentionPolicyFn != nil {
		return m.createRetentionPolicyFn(ctx, policy)
	}
	return nil
}

func (m *mockEngine) SetDefaultRetentionPolicy(ctx context.Context, firmID, policyID uuid.UUID) error {
	if m.setDefaultPolicyFn != nil {
		return m.setDefaultPolicyFn(ctx, firmID, policyID)
	}
	return nil
}

func (m *mockEngine) ModifyRetention(ctx context.Context, firmID, documentID, actorID uuid.UUID, override docflow.RetentionOverride) (*domain.DocumentRetention, error) {
	if m.modifyRetentionFn != nil {
		return m.modifyRetentionFn(ctx, firmID, documentID, actorID, override)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) ArchiveDocument(ctx context.Context, firmID, documentID, actorID uuid.UUID, reason string) (*domain.Archive, error) {
	if m.archiveDocumentFn != nil {
		return m.archiveDocumentFn(ctx, firmID, documentID, actorID, reason)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) Restore(ctx context.Context, firmID, archiveID, actorID uuid.UUID, resetRetention bool) (*domain.Document, error) {
	if m.restoreFn != nil {
		return m.restoreFn(ctx, firmID, archiveID, actorID, resetRetention)
	}
	return nil, domain.ErrInternalError
}

func (m *mockEngine) PermanentDelete(ctx context.Context, firmID, archiveID uuid.UUID, actorID *uuid.UUID, force bool) error {
	if m.permanentDeleteFn != nil {
		return m.permanentDeleteFn(ctx, firmID, archiveID, actorID, force)
	}
	return domain.ErrInternalError
}

// mockSweepClient implements SweepClient for HTTP handler tests.
type mockSweepClient struct {
	triggerFn func(ctx context.Context, input temporal.SweepWorkflowInput, workflowFunc interface{}) (string, string, error)
	healthFn  func(ctx context.Context) error
}

func (m *mockSweepClient) TriggerSweep(ctx context.Context, input temporal.SweepWorkflowInput, workflowFunc interface{}) (string, string, error) {
	if m.triggerFn != nil {
		return m.triggerFn(ctx, input, workflowFunc)
	}
	return "wf-sweep-test", "run-test", nil
}

func (m *mockSweepClient) Health(ctx context.Context) error {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil
}

// mockDocumentRepo implements repository.DocumentRepository for HTTP handler tests.
type mockDocumentRepo struct {
	getFn          func(ctx context.Context, firmID, id uuid.UUID) (*domain.Document, error)
	listFn         func(ctx context.Context, filter repository.DocumentFilter) ([]*domain.Document, int64, error)
	listVersionsFn func(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error)
}

func (m *mockDocumentRepo) Create(_ context.Context, _ *domain.Document) error { return nil }

func (m *mockDocumentRepo) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, firmID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (m *mockDocumentRepo) Update(_ context.Context, _, _ uuid.UUID, _ func(*domain.Document) error) error {
	return nil
}

func (m *mockDocumentRepo) List(ctx context.Context, filter repository.DocumentFilter) ([]*domain.Document, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockDocumentRepo) CountInFlightForReviewer(_ context.Context, _ uuid.UUID, _ domain.ReviewerRole) (int, error) {
	return 0, nil
}

func (m *mockDocumentRepo) CreateVersion(_ context.Context, _ *domain.DocumentVersion) error {
	return nil
}

func (m *mockDocumentRepo) ListVersions(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error) {
	if m.listVersionsFn != nil {
		return m.listVersionsFn(ctx, documentID)
	}
	return nil, nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

// mockReviewRepo implements repository.ReviewRepository for HTTP handler tests.
type mockReviewRepo struct {
	listByDocumentFn       func(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentReview, error)
	listChecklistResultsFn func(ctx context.Context, reviewID uuid.UUID) ([]*domain.DocumentChecklistResult, error)
}

func (m *mockReviewRepo) CreateReview(_ context.Context, _ *domain.DocumentReview) error { return nil }

func (m *mockReviewRepo) CreateChecklistResults(_ context.Context, _ []*domain.DocumentChecklistResult) error {
	return nil
}

func (m *mockReviewRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.DocumentReview, error) {
	if m.listByDocumentFn != nil {
		return m.listByDocumentFn(ctx, documentID)
	}
	return nil, nil
}

func (m *mockReviewRepo) ListChecklistResults(ctx context.Context, reviewID uuid.UUID) ([]*domain.DocumentChecklistResult, error) {
	if m.listChecklistResultsFn != nil {
		return m.listChecklistResultsFn(ctx, reviewID)
	}
	return nil, nil
}

// mockRetentionRepo implements repository.RetentionRepository for HTTP handler tests.
type mockRetentionRepo struct {
	getPolicyFn     func(ctx context.Context, firmID, id uuid.UUID) (*domain.RetentionPolicy, error)
	listPoliciesFn  func(ctx context.Context, firmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error)
	getByDocumentFn func(ctx context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error)
}

func (m *mockRetentionRepo) CreatePolicy(_ context.Context, _ *domain.RetentionPolicy) error {
	return nil
}

func (m *mockRetentionRepo) GetPolicy(ctx context.Context, firmID, id uuid.UUID) (*domain.RetentionPolicy, error) {
	if m.getPolicyFn != nil {
		return m.getPolicyFn(ctx, firmID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRetentionRepo) UpdatePolicy(_ context.Context, _ *domain.RetentionPolicy) error {
	return nil
}

func (m *mockRetentionRepo) SetDefaultPolicy(_ context.Context, _, _ uuid.UUID) error { return nil }

func (m *mockRetentionRepo) GetDefaultPolicy(_ context.Context, _ uuid.UUID, _ string) (*domain.RetentionPolicy, error) {
	return nil, domain.ErrNotFound
}

func (m *mockRetentionRepo) ListPolicies(ctx context.Context, firmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error) {
	if m.listPoliciesFn != nil {
		return m.listPoliciesFn(ctx, firmID, activeOnly)
	}
	return nil, nil
}

func (m *mockRetentionRepo) CreateRetention(_ context.Context, _ *domain.DocumentRetention) error {
	return nil
}

func (m *mockRetentionRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error) {
	if m.getByDocumentFn != nil {
		return m.getByDocumentFn(ctx, documentID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRetentionRepo) UpdateRetention(_ context.Context, _ *domain.DocumentRetention) error {
	return nil
}

func (m *mockRetentionRepo) MarkArchived(_ context.Context, _ uuid.UUID) error { return nil }

func (m *mockRetentionRepo) ListExpired(_ context.Context, _ time.Time, _ int) ([]*domain.DocumentRetention, error) {
	return nil, nil
}

func (m *mockRetentionRepo) DeleteByDocument(_ context.Context, _ uuid.UUID) error { return nil }

// mockArchiveRepo implements repository.ArchiveRepository for HTTP handler tests.
type mockArchiveRepo struct {
	getFn  func(ctx context.Context, firmID, id uuid.UUID) (*domain.Archive, error)
	listFn func(ctx context.Context, filter repository.ArchiveFilter) ([]*domain.Archive, int64, error)
}

func (m *mockArchiveRepo) Create(_ context.Context, _ *domain.Archive) error { return nil }

func (m *mockArchiveRepo) Get(ctx context.Context, firmID, id uuid.UUID) (*domain.Archive, error) {
	if m.getFn != nil {
		return m.getFn(ctx, firmID, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockArchiveRepo) GetActiveByDocument(_ context.Context, _ uuid.UUID) (*domain.Archive, error) {
	return nil, domain.ErrNotFound
}

func (m *mockArchiveRepo) MarkRestored(_ context.Context, _, _ uuid.UUID, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (m *mockArchiveRepo) MarkDeleted(_ context.Context, _, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (m *mockArchiveRepo) List(ctx context.Context, filter repository.ArchiveFilter) ([]*domain.Archive, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type testServerOpts struct {
	engine        WorkflowEngine
	sweepClient   SweepClient
	documentRepo  repository.DocumentRepository
	reviewRepo    repository.ReviewRepository
	retentionRepo repository.RetentionRepository
	archiveRepo   repository.ArchiveRepository
}

// newTestHTTPServer creates a Server configured for testing with mocked
// dependencies. Nil fields fall back to empty mocks.
func newTestHTTPServer(opts testServerOpts) *Server {
	if opts.engine == nil {
		opts.engine = &mockEngine{}
	}
	if opts.documentRepo == nil {
		opts.documentRepo = &mockDocumentRepo{}
	}
	if opts.reviewRepo == nil {
		opts.reviewRepo = &mockReviewRepo{}
	}
	if opts.retentionRepo == nil {
		opts.retentionRepo = &mockRetentionRepo{}
	}
	if opts.archiveRepo == nil {
		opts.archiveRepo = &mockArchiveRepo{}
	}

	s := &Server{
		engine:        opts.engine,
		sweepClient:   opts.sweepClient,
		sweepBatch:    250,
		documentRepo:  opts.documentRepo,
		reviewRepo:    opts.reviewRepo,
		retentionRepo: opts.retentionRepo,
		archiveRepo:   opts.archiveRepo,
		logger:        zerolog.Nop(),
	}
	s.router = s.buildRouter()
	return s
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

// firmPath returns the full API path for a firm-scoped endpoint.
func firmPath(firmID uuid.UUID, suffix string) string {
	return "/api/v1/firms/" + firmID.String() + suffix
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// testDocument returns a document in the middle of staff review.
func testDocument(firmID uuid.UUID) *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:             uuid.New(),
		FirmID:         firmID,
		OwnerID:        uuid.New(),
		Title:          "Engagement Letter",
		Description:    "Client engagement letter for signature",
		Status:         domain.DocumentStatusUnderReview,
		WorkflowStage:  domain.StageStaffReview,
		DocumentType:   "Contract",
		CurrentVersion: 1,
		FileSize:       52341,
		ContentType:    "application/pdf",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
