package httpserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

func testPolicy(firmID uuid.UUID) *domain.RetentionPolicy {
	now := time.Now().UTC()
	return &domain.RetentionPolicy{
		ID:           uuid.New(),
		FirmID:       firmID,
		Name:         "Contracts 10y",
		DocumentType: "Contract",
		Years:        10,
		IsDefault:    true,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ---------------------------------------------------------------------------
// Tests: retention policies
// ---------------------------------------------------------------------------

func TestCreateRetentionPolicy_Success(t *testing.T) {
	firmID := uuid.New()

	var created *domain.RetentionPolicy
	engine := &mockEngine{
		createRetentionPolicyFn: func(_ context.Context, policy *domain.RetentionPolicy) error {
			created = policy
			return nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{engine: engine})

	body := `{"name":"Contracts 10y","document_type":"Contract","years":10,"is_default":true}`
	req := httptest.NewRequest(http.MethodPost, firmPath(firmID, "/retention-policies"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if created == nil {
		t.Fatal("expected policy to be created")
	}
	if created.FirmID != firmID {
		t.Errorf("expected firm_id %s, got %s", firmID, created.FirmID)
	}
	if created.Years != 10 || created.Months != 0 || created.Days != 0 {
		t.Errorf("unexpected period %d/%d/%d", created.Years, created.Months, created.Days)
	}
	if !created.IsDefault || !created.IsActive {
		t.Errorf("expected default active policy, got default=%v active=%v", created.IsDefault, created.IsActive)
	}

	var resp policyResponse
	decodeJSON(t, rr, &resp)
	if resp.Name != "Contracts 10y" {
		t.Errorf("expected name 'Contracts 10y', got %s", resp.Name)
	}
}

func TestCreateRetentionPolicy_MissingName(t *testing.T) {
	srv := newTestHTTPServer(testServerOpts{})

	body := `{"years":5}`
	req := httptest.NewRequest(http.MethodPost, firmPath(uuid.New(), "/retention-policies"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateRetentionPolicy_ZeroPeriod(t *testing.T) {
	engine := &mockEngine{
		createRetentionPolicyFn: func(_ context.Context, _ *domain.RetentionPolicy) error {
			return domain.NewValidationError("period", "retention period must be positive")
		},
	}
	srv := newTestHTTPServer(testServerOpts{engine: engine})

	body := `{"name":"Empty"}`
	req := httptest.NewRequest(http.MethodPost, firmPath(uuid.New(), "/retention-policies"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListRetentionPolicies_ActiveOnly(t *testing.T) {
	firmID := uuid.New()

	var capturedActiveOnly bool
	retentionRepo := &mockRetentionRepo{
		listPoliciesFn: func(_ context.Context, gotFirmID uuid.UUID, activeOnly bool) ([]*domain.RetentionPolicy, error) {
			if gotFirmID != firmID {
				t.Errorf("expected firm %s, got %s", firmID, gotFirmID)
			}
			capturedActiveOnly = activeOnly
			return []*domain.RetentionPolicy{testPolicy(firmID)}, nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{retentionRepo: retentionRepo})

	req := httptest.NewRequest(http.MethodGet, firmPath(firmID, "/retention-policies?active_only=true"), nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !capturedActiveOnly {
		t.Error("expected active_only filter to be passed through")
	}

	var resp listPoliciesResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(resp.Policies))
	}
	if !resp.Policies[0].IsDefault {
		t.Error("expected default policy")
	}
}

func TestGetRetentionPolicy_NotFound(t *testing.T) {
	srv := newTestHTTPServer(testServerOpts{})

	req := httptest.NewRequest(http.MethodGet, firmPath(uuid.New(), "/retention-policies/"+uuid.New().String()), nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSetDefaultRetentionPolicy_Success(t *testing.T) {
	firmID := uuid.New()
	policyID := uuid.New()

	var capturedPolicyID uuid.UUID
	engine := &mockEngine{
		setDefaultPolicyFn: func(_ context.Context, gotFirmID, gotPolicyID uuid.UUID) error {
			if gotFirmID != firmID {
				t.Errorf("expected firm %s, got %s", firmID, gotFirmID)
			}
			capturedPolicyID = gotPolicyID
			return nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{engine: engine})

	req := httptest.NewRequest(http.MethodPost, firmPath(firmID, "/retention-policies/"+policyID.String()+"/default"), nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedPolicyID != policyID {
		t.Errorf("expected policy %s, got %s", policyID, capturedPolicyID)
	}
}

// ---------------------------------------------------------------------------
// Tests: document retention
// ---------------------------------------------------------------------------

func TestGetRetention_Success(t *testing.T) {
	firmID := uuid.New()
	doc := testDocument(firmID)
	policyID := uuid.New()
	now := time.Now().UTC()

	docRepo := &mockDocumentRepo{
		getFn: func(_ context.Context, _, _ uuid.UUID) (*domain.Document, error) {
			return doc, nil
		},
	}
	retentionRepo := &mockRetentionRepo{
		getByDocumentFn: func(_ context.Context, documentID uuid.UUID) (*domain.DocumentRetention, error) {
			if documentID != doc.ID {
				return nil, domain.ErrNotFound
			}
			return &domain.DocumentRetention{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				PolicyID:   &policyID,
				Years:      7,
				StartDate:  now,
				ExpiryDate: now.AddDate(7, 0, 0),
			}, nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{documentRepo: docRepo, retentionRepo: retentionRepo})

	req := httptest.NewRequest(http.MethodGet, firmPath(firmID, "/documents/"+doc.ID.String()+"/retention"), nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp retentionResponse
	decodeJSON(t, rr, &resp)

	if resp.DocumentID != doc.ID.String() {
		t.Errorf("expected document_id %s, got %s", doc.ID, resp.DocumentID)
	}
	if resp.PolicyID == nil || *resp.PolicyID != policyID.String() {
		t.Errorf("expected policy_id %s, got %v", policyID, resp.PolicyID)
	}
	if resp.Years != 7 {
		t.Errorf("expected years 7, got %d", resp.Years)
	}
}

func TestGetRetention_NoRetentionRow(t *testing.T) {
	firmID := uuid.New()
	doc := testDocument(firmID)

	docRepo := &mockDocumentRepo{
		getFn: func(_ context.Context, _, _ uuid.UUID) (*domain.Document, error) {
			return doc, nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{documentRepo: docRepo})

	req := httptest.NewRequest(http.MethodGet, firmPath(firmID, "/documents/"+doc.ID.String()+"/retention"), nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestModifyRetention_PeriodOverride(t *testing.T) {
	firmID := uuid.New()
	documentID := uuid.New()
	adminID := uuid.New()

	var capturedOverride docflow.RetentionOverride
	engine := &mockEngine{
		modifyRetentionFn: func(_ context.Context, _, gotDocID, gotActorID uuid.UUID, override docflow.RetentionOverride) (*domain.DocumentRetention, error) {
			if gotDocID != documentID || gotActorID != adminID {
				return nil, domain.ErrNotFound
			}
			capturedOverride = override
			return &domain.DocumentRetention{
				ID:         uuid.New(),
				DocumentID: documentID,
				Years:      5,
				Months:     6,
			}, nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{engine: engine})

	body := `{"years":5,"months":6}`
	req := httptest.NewRequest(http.MethodPut, firmPath(firmID, "/documents/"+documentID.String()+"/retention"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, adminID.String())

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if capturedOverride.Period == nil {
		t.Fatal("expected explicit period override")
	}
	if capturedOverride.Period.Years != 5 || capturedOverride.Period.Months != 6 {
		t.Errorf("unexpected period %+v", *capturedOverride.Period)
	}
}

func TestModifyRetention_PolicyOverride(t *testing.T) {
	documentID := uuid.New()
	policyID := uuid.New()

	var capturedOverride docflow.RetentionOverride
	engine := &mockEngine{
		modifyRetentionFn: func(_ context.Context, _, _, _ uuid.UUID, override docflow.RetentionOverride) (*domain.DocumentRetention, error) {
			capturedOverride = override
			return &domain.DocumentRetention{ID: uuid.New(), DocumentID: documentID, PolicyID: &policyID}, nil
		},
	}

	srv := newTestHTTPServer(testServerOpts{engine: engine})

	body := `{"policy_id":"` + policyID.String() + `"}`
	req := httptest.NewRequest(http.MethodPut, firmPath(uuid.New(), "/documents/"+documentID.String()+"/retention"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, uuid.New().String())

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if capturedOverride.PolicyID == nil || *capturedOverride.PolicyID != policyID {
		t.Errorf("expected policy override %s, got %v", policyID, capturedOverride.PolicyID)
	}
	if capturedOverride.Period != nil {
		t.Error("expected no period override")
	}
}

func TestModifyRetention_EmptyOverride(t *testing.T) {
	srv := newTestHTTPServer(testServerOpts{})

	req := httptest.NewRequest(http.MethodPut, firmPath(uuid.New(), "/documents/"+uuid.New().String()+"/retention"), bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, uuid.New().String())

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestModifyRetention_PolicyAndPeriod(t *testing.T) {
	srv := newTestHTTPServer(testServerOpts{})

	body := `{"policy_id":"` + uuid.New().String() + `","days":30}`
	req := httptest.NewRequest(http.MethodPut, firmPath(uuid.New(), "/documents/"+uuid.New().String()+"/retention"), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, uuid.New().String())

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
