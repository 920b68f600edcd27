package httpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const ctxKeyFirmID contextKey = "firm_id"

// actorHeader carries the authenticated user's ID, set by the auth gateway
// in front of this service.
const actorHeader = "X-User-ID"

// firmContextMiddleware parses the firmID path param and stores it in the
// request context.
func firmContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firmID, err := uuid.Parse(chi.URLParam(r, "firmID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "firm_id must be a valid UUID")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyFirmID, firmID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r)
	})
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// firmIDFromContext extracts the firm ID from the request context.
func firmIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(ctxKeyFirmID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// actorID extracts the acting user's ID from the request headers. Writes a
// 401 response and returns false when the header is missing or malformed.
func actorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("%s header is required", actorHeader))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("%s header must be a valid UUID", actorHeader))
		return uuid.Nil, false
	}
	return id, true
}
