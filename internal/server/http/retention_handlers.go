package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// createPolicyRequest is the JSON request body for creating a retention policy.
type createPolicyRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	Description  string `json:"description,omitempty" validate:"max=2000"`
	DocumentType string `json:"document_type,omitempty" validate:"max=100"`
	Years        int    `json:"years" validate:"gte=0,lte=100"`
	Months       int    `json:"months" validate:"gte=0,lte=1200"`
	Days         int    `json:"days" validate:"gte=0,lte=36500"`
	IsDefault    bool   `json:"is_default"`
}

// retentionOverrideFromRequest converts the request override into the engine
// form: either a policy reference or an explicit period, never both.
func retentionOverrideFromRequest(req *retentionOverrideRequest) (docflow.RetentionOverride, error) {
	var override docflow.RetentionOverride

	hasPeriod := req.Years != nil || req.Months != nil || req.Days != nil
	if req.PolicyID != nil && hasPeriod {
		return override, fmt.Errorf("retention override accepts policy_id or an explicit period, not both")
	}

	switch {
	case req.PolicyID != nil:
		policyID, err := uuid.Parse(*req.PolicyID)
		if err != nil {
			return override, fmt.Errorf("policy_id must be a valid UUID")
		}
		override.PolicyID = &policyID
	case hasPeriod:
		period := domain.RetentionPeriod{}
		if req.Years != nil {
			period.Years = *req.Years
		}
		if req.Months != nil {
			period.Months = *req.Months
		}
		if req.Days != nil {
			period.Days = *req.Days
		}
		override.Period = &period
	default:
		return override, fmt.Errorf("retention override requires policy_id or an explicit period")
	}

	return override, nil
}

// createRetentionPolicy handles POST /retention-policies.
func (s *Server) createRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	var req createPolicyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	policy := &domain.RetentionPolicy{
		ID:           uuid.New(),
		FirmID:       firmID,
		Name:         req.Name,
		Description:  req.Description,
		DocumentType: req.DocumentType,
		Years:        req.Years,
		Months:       req.Months,
		Days:         req.Days,
		IsDefault:    req.IsDefault,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.engine.CreateRetentionPolicy(ctx, policy); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainPolicyToResponse(policy))
}

// listRetentionPolicies handles GET /retention-policies.
// Pass active_only=true to exclude deactivated policies.
func (s *Server) listRetentionPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	activeOnly := r.URL.Query().Get("active_only") == "true"

	policies, err := s.retentionRepo.ListPolicies(ctx, firmID, activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]policyResponse, len(policies))
	for i, p := range policies {
		responses[i] = domainPolicyToResponse(p)
	}

	writeJSON(w, http.StatusOK, listPoliciesResponse{Policies: responses})
}

// getRetentionPolicy handles GET /retention-policies/{policyID}.
func (s *Server) getRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	policyID, ok := parseUUID(w, chi.URLParam(r, "policyID"), "policy_id")
	if !ok {
		return
	}

	policy, err := s.retentionRepo.GetPolicy(ctx, firmID, policyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPolicyToResponse(policy))
}

// setDefaultRetentionPolicy handles POST /retention-policies/{policyID}/default.
// It makes the policy the default for its document type, clearing any prior
// default.
func (s *Server) setDefaultRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	policyID, ok := parseUUID(w, chi.URLParam(r, "policyID"), "policy_id")
	if !ok {
		return
	}

	if err := s.engine.SetDefaultRetentionPolicy(ctx, firmID, policyID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"policy_id": policyID.String(),
		"message":   "policy set as default",
	})
}

// getRetention handles GET /documents/{documentID}/retention.
func (s *Server) getRetention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}

	if _, err := s.documentRepo.Get(ctx, firmID, documentID); err != nil {
		writeDomainError(w, err)
		return
	}

	retention, err := s.retentionRepo.GetByDocument(ctx, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainRetentionToResponse(retention))
}

// modifyRetention handles PUT /documents/{documentID}/retention.
// An admin replaces the document's retention period; the expiry is
// recomputed from the original start date.
func (s *Server) modifyRetention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}

	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req retentionOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	override, err := retentionOverrideFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	retention, err := s.engine.ModifyRetention(ctx, firmID, documentID, actor, override)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainRetentionToResponse(retention))
}
