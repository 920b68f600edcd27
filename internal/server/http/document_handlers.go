package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/repository"
	"github.com/lexvault/document-workflow-service/internal/temporal"
	docflow "github.com/lexvault/document-workflow-service/internal/workflow"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// validate checks request body structs against their `validate` tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// createDocumentRequest is the JSON request body for registering an upload.
type createDocumentRequest struct {
	OwnerID      string  `json:"owner_id" validate:"required,uuid_rfc4122"`
	Title        string  `json:"title" validate:"required,min=1,max=500"`
	Description  string  `json:"description,omitempty" validate:"max=5000"`
	DocumentType string  `json:"document_type,omitempty" validate:"max=100"`
	FolderID     *string `json:"folder_id,omitempty" validate:"omitempty,uuid_rfc4122"`
	FilePath     string  `json:"file_path" validate:"required,max=1000"`
	FileSize     int64   `json:"file_size" validate:"gte=0"`
	ContentType  string  `json:"content_type,omitempty" validate:"max=255"`
	FileHash     string  `json:"file_hash,omitempty" validate:"max=128"`
}

// uploadVersionRequest is the JSON request body for uploading a revised file.
type uploadVersionRequest struct {
	Role              string `json:"role" validate:"required,oneof=staff lawyer"`
	FilePath          string `json:"file_path" validate:"required,max=1000"`
	FileSize          int64  `json:"file_size" validate:"gte=0"`
	ContentType       string `json:"content_type,omitempty" validate:"max=255"`
	FileHash          string `json:"file_hash,omitempty" validate:"max=128"`
	ChangeDescription string `json:"change_description,omitempty" validate:"max=2000"`
}

// decodeBody reads and unmarshals a size-limited JSON request body into dst,
// then validates it. Writes the error response itself and returns false on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid field %s: failed %s validation", verrs[0].Field(), verrs[0].Tag()))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

// createDocument handles POST /documents.
// It registers an uploaded document and queues it for staff review.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	var req createDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "owner_id must be a valid UUID")
		return
	}

	input := docflow.UploadInput{
		FirmID:       firmID,
		OwnerID:      ownerID,
		Title:        req.Title,
		Description:  req.Description,
		DocumentType: req.DocumentType,
		FilePath:     req.FilePath,
		FileSize:     req.FileSize,
		ContentType:  req.ContentType,
		FileHash:     req.FileHash,
	}
	if req.FolderID != nil {
		folderID, parseErr := uuid.Parse(*req.FolderID)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "folder_id must be a valid UUID")
			return
		}
		input.FolderID = &folderID
	}

	doc, assignee, err := s.engine.CreateDocument(ctx, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := createDocumentResponse{
		Document: domainDocumentToResponse(doc),
		Message:  "document queued for staff review",
	}
	if assignee != nil {
		id := assignee.ID.String()
		resp.Assignee = &id
	} else {
		resp.Message = "document created; no staff available for assignment"
	}

	writeJSON(w, http.StatusCreated, resp)
}

// getDocument handles GET /documents/{documentID}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}

	doc, err := s.documentRepo.Get(ctx, firmID, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainDocumentToResponse(doc))
}

// listDocuments handles GET /documents.
// It returns a paginated list of documents with optional filters.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	limit, offset := parsePaginationParams(r)

	filter := repository.DocumentFilter{
		FirmID: firmID,
		Limit:  limit,
		Offset: offset,
	}

	q := r.URL.Query()
	if statusParam := q.Get("status"); statusParam != "" {
		filter.Status = []domain.DocumentStatus{domain.DocumentStatus(statusParam)}
	}
	if stageParam := q.Get("stage"); stageParam != "" {
		stage := domain.WorkflowStage(stageParam)
		if !stage.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown workflow stage: %s", stageParam))
			return
		}
		filter.Stage = []domain.WorkflowStage{stage}
	}
	if ownerParam := q.Get("owner_id"); ownerParam != "" {
		ownerID, err := uuid.Parse(ownerParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "owner_id must be a valid UUID")
			return
		}
		filter.OwnerID = &ownerID
	}
	if assignedParam := q.Get("assigned_to"); assignedParam != "" {
		assignedTo, err := uuid.Parse(assignedParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "assigned_to must be a valid UUID")
			return
		}
		filter.AssignedTo = &assignedTo
	}
	if createdAfter := q.Get("created_after"); createdAfter != "" {
		t, parseErr := time.Parse(time.RFC3339, createdAfter)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}
	if createdBefore := q.Get("created_before"); createdBefore != "" {
		t, parseErr := time.Parse(time.RFC3339, createdBefore)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_before format: expected RFC3339")
			return
		}
		filter.CreatedBefore = &t
	}

	docs, totalCount, err := s.documentRepo.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]documentResponse, len(docs))
	for i, d := range docs {
		responses[i] = domainDocumentToResponse(d)
	}

	writeJSON(w, http.StatusOK, listDocumentsResponse{
		Documents:     responses,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// assignDocument handles POST /documents/{documentID}/assign.
// It re-runs the staff assignment for a document left unassigned at upload.
func (s *Server) assignDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}

	assignee, err := s.engine.AssignToStaff(ctx, firmID, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := assignResponse{
		DocumentID: documentID.String(),
		Message:    "document assigned",
	}
	if assignee != nil {
		id := assignee.ID.String()
		resp.AssigneeID = &id
	} else {
		resp.Message = "no active staff available; document remains unassigned"
	}

	writeJSON(w, http.StatusOK, resp)
}

// listVersions handles GET /documents/{documentID}/versions.
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	documentID, ok := parseUUID(w, chi.URLParam(r, "documentID"), "document_id")
	if !ok {
		return
	}

	// Scope check before listing: versions are keyed by document only.
	if _, err := s.documentRepo.Get(ctx, firmID, documentID); err != nil {
		writeDomainError(w, err)
		return
	}

	versions, err := s.documentRepo.ListVersions(ctx, documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]versionResponse, len(versions))
	for i, v := range versions {
		responses[i] = domainVersionToResponse(v)
	}

	writeJSON(w, http.StatusOK, listVersionsResponse{Versions: responses})
}

// uploadVersion handles POST /documents/{documentID}/versions.
// An assigned staff or lawyer uploads a corrected file during their review.
func (s *Server) uploadVersion(w http.ResponseWriter, r *http.Request) {
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

	var req uploadVersionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := docflow.VersionInput{
		FilePath:          req.FilePath,
		FileSize:          req.FileSize,
		ContentType:       req.ContentType,
		FileHash:          req.FileHash,
		ChangeDescription: req.ChangeDescription,
	}

	var version *domain.DocumentVersion
	var err error
	switch domain.ReviewerRole(req.Role) {
	case domain.RoleStaff:
		version, err = s.engine.StaffEditDocument(ctx, firmID, documentID, actor, input)
	case domain.RoleLawyer:
		version, err = s.engine.LawyerEditDocument(ctx, firmID, documentID, actor, input)
	default:
		writeError(w, http.StatusBadRequest, "role must be staff or lawyer")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainVersionToResponse(version))
}

// writeDomainError maps domain and temporal errors to appropriate HTTP status codes
// and writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		var te *domain.InvalidTransitionError
		if errors.As(err, &te) {
			writeError(w, http.StatusConflict, te.Error())
		} else {
			writeError(w, http.StatusConflict, "invalid workflow transition")
		}
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrAssignmentUnavailable):
		writeError(w, http.StatusServiceUnavailable, "no reviewer available")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// Returns the parsed UUID and true on success, or uuid.Nil and false on failure.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
