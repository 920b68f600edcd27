package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lexvault/document-workflow-service/internal/domain"
	"github.com/lexvault/document-workflow-service/internal/repository"
	"github.com/lexvault/document-workflow-service/internal/temporal"
)

// archiveDocumentRequest is the JSON request body for a manual archival.
type archiveDocumentRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=2000"`
}

// restoreArchiveRequest is the JSON request body for restoring an archive.
type restoreArchiveRequest struct {
	ResetRetention bool `json:"reset_retention"`
}

// archiveDocument handles POST /documents/{documentID}/archive.
// It takes a document out of active circulation on an operator's request.
func (s *Server) archiveDocument(w http.ResponseWriter, r *http.Request) {
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

	var req archiveDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	archive, err := s.engine.ArchiveDocument(ctx, firmID, documentID, actor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainArchiveToResponse(archive))
}

// listArchives handles GET /archives.
func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	limit, offset := parsePaginationParams(r)

	filter := repository.ArchiveFilter{
		FirmID: firmID,
		Limit:  limit,
		Offset: offset,
	}

	q := r.URL.Query()
	if docParam := q.Get("document_id"); docParam != "" {
		documentID, err := uuid.Parse(docParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "document_id must be a valid UUID")
			return
		}
		filter.DocumentID = &documentID
	}
	if typeParam := q.Get("archive_type"); typeParam != "" {
		archiveType := domain.ArchiveType(typeParam)
		if !archiveType.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown archive type: %s", typeParam))
			return
		}
		filter.ArchiveType = []domain.ArchiveType{archiveType}
	}
	filter.ActiveOnly = q.Get("active_only") == "true"

	archives, totalCount, err := s.archiveRepo.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]archiveResponse, len(archives))
	for i, a := range archives {
		responses[i] = domainArchiveToResponse(a)
	}

	writeJSON(w, http.StatusOK, listArchivesResponse{
		Archives:      responses,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// getArchive handles GET /archives/{archiveID}.
func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	archiveID, ok := parseUUID(w, chi.URLParam(r, "archiveID"), "archive_id")
	if !ok {
		return
	}

	archive, err := s.archiveRepo.Get(ctx, firmID, archiveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainArchiveToResponse(archive))
}

// restoreArchive handles POST /archives/{archiveID}/restore.
// It puts the archived document back into its pre-archival status and stage.
func (s *Server) restoreArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	archiveID, ok := parseUUID(w, chi.URLParam(r, "archiveID"), "archive_id")
	if !ok {
		return
	}

	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req restoreArchiveRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	doc, err := s.engine.Restore(ctx, firmID, archiveID, actor, req.ResetRetention)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainDocumentToResponse(doc))
}

// deleteArchive handles DELETE /archives/{archiveID}.
// It permanently deletes the archived document and its stored files. Manual
// archives require force=true.
func (s *Server) deleteArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firmID := firmIDFromContext(ctx)

	archiveID, ok := parseUUID(w, chi.URLParam(r, "archiveID"), "archive_id")
	if !ok {
		return
	}

	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"

	if err := s.engine.PermanentDelete(ctx, firmID, archiveID, &actor, force); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"archive_id": archiveID.String(),
		"message":    "document permanently deleted",
	})
}

// triggerSweep handles POST /admin/sweep.
// It starts a one-off retention sweep run outside the cron schedule.
func (s *Server) triggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweepClient == nil {
		writeError(w, http.StatusServiceUnavailable, "sweep scheduling is not configured")
		return
	}

	input := temporal.SweepWorkflowInput{BatchSize: s.sweepBatch}
	workflowID, runID, err := s.sweepClient.TriggerSweep(r.Context(), input, s.sweepWorkflow)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, sweepTriggerResponse{
		WorkflowID: workflowID,
		RunID:      runID,
		Message:    "retention sweep started",
	})
}
