package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lexvault/document-workflow-service/internal/domain"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// startReviewRequest is the JSON request body for claiming a review.
type startReviewRequest struct {
	Role string `json:"role" validate:"required,oneof=staff lawyer admin"`
}

// checklistItemRequest is one checklist entry in a review submission.
type checklistItemRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Passed   bool   `json:"passed"`
	Comments string `json:"comments,omitempty" validate:"max=2000"`
}

// retentionOverrideRequest optionally overrides the default retention on
// admin approval.
type retentionOverrideRequest struct {
	PolicyID *string `json:"policy_id,omitempty" validate:"omitempty,uuid_rfc4122"`
	Years    *int    `json:"years,omitempty" validate:"omitempty,gte=0"`
	Months   *int    `json:"months,omitempty" validate:"omitempty,gte=0"`
	Days     *int    `json:"days,omitempty" validate:"omitempty,gte=0"`
}

// submitReviewRequest is the JSON request body for a review decision.
type submitReviewRequest struct {
	Role          string                    `json:"role" validate:"required,oneof=staff lawyer admin"`
	Decision      string                    `json:"decision" validate:"required,oneof=approved rejected"`
	Remarks       string                    `json:"remarks,omitempty" validate:"max=5000"`
	InternalNotes string                    `json:"internal_notes,omitempty" validate:"max=5000"`
	Checklist     []checklistItemRequest    `json:"checklist,omitempty" validate:"max=200,dive"`
	Retention     *retentionOverrideRequest `json:"retention,omitempty"`
}

// startReview handles POST /documents/{documentID}/reviews/start.
// The assigned reviewer claims the document, moving it into the role's
// in-review stage.
func (s *Server) startReview(w http.ResponseWriter, r *http.Request) {
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

	var req startReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.StartReview(ctx, firmID, documentID, actor, domain.ReviewerRole(req.Role)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID.String(),
		"message":     "review started",
	})
}

// submitReview handles POST /documents/{documentID}/reviews.
// It records the reviewer's decision and advances or rejects the document.
func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
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

	var req submitReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := docflow.ReviewInput{
		Remarks:       req.Remarks,
		InternalNotes: req.InternalNotes,
	}
	for _, item := range req.Checklist {
		input.Checklist = append(input.Checklist, domain.ChecklistInput{
			ItemID:   item.ItemID,
			Passed:   item.Passed,
			Comments: item.Comments,
		})
	}

	role := domain.ReviewerRole(req.Role)
	approve := req.Decision == string(domain.DecisionApproved)

	var (
		review    *domain.DocumentReview
		retention *domain.DocumentRetention
		err       error
	)

	switch {
	case role == domain.RoleStaff && approve:
		review, err = s.engine.StaffApprove(ctx, firmID, documentID, actor, input)
	case role == domain.RoleStaff:
		review, err = s.engine.StaffReject(ctx, firmID, documentID, actor, input)
	case role == domain.RoleLawyer && approve:
		review, err = s.engine.LawyerApprove(ctx, firmID, documentID, actor, input)
	case role == domain.RoleLawyer:
		review, err = s.engine.LawyerReject(ctx, firmID, documentID, actor, input)
	case role == domain.RoleAdmin && approve:
		if req.Retention != nil {
			override, convErr := retentionOverrideFromRequest(req.Retention)
			if convErr != nil {
				writeError(w, http.StatusBadRequest, convErr.Error())
				return
			}
			review, retention, err = s.engine.AdminApproveWithRetention(ctx, firmID, documentID, actor, req.Remarks, override)
		} else {
			review, retention, err = s.engine.AdminApprove(ctx, firmID, documentID, actor, req.Remarks)
		}
	default:
		review, err = s.engine.AdminReject(ctx, firmID, documentID, actor, req.Remarks)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := submitReviewResponse{
		Review:  domainReviewToResponse(review),
		Message: "review recorded",
	}
	if retention != nil {
		rr := domainRetentionToResponse(retention)
		resp.Retention = &rr
	}

	writeJSON(w, http.StatusCreated, resp)
}

// listReviews handles GET /documents/{documentID}/reviews.
// It returns the document's review history, newest first.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
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

	reviews, err := s.reviewRepo.ListByDocument(ctx, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]reviewResponse, len(reviews))
	for i, rev := range reviews {
		responses[i] = domainReviewToResponse(rev)
	}

	writeJSON(w, http.StatusOK, listReviewsResponse{Reviews: responses})
}

// getChecklist handles GET /documents/{documentID}/reviews/{reviewID}/checklist.
func (s *Server) getChecklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}
	reviewID, ok := parseUUID(w, chi.URLParam(r, "reviewID"), "review_id")
	if !ok {
		return
	}

	if _, err := s.documentRepo.Get(ctx, firmID, documentID); err != nil {
		writeDomainError(w, err)
		return
	}

	results, err := s.reviewRepo.ListChecklistResults(ctx, reviewID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]checklistResultResponse, len(results))
	for i, res := range results {
		responses[i] = checklistResultResponse{
			ID:              res.ID.String(),
			ChecklistItemID: res.ChecklistItemID,
			Passed:          res.Passed,
			Comments:        res.Comments,
		}
	}

	writeJSON(w, http.StatusOK, checklistResponse{
		ReviewID: reviewID.String(),
		Results:  responses,
	})
}
