package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/standing"
)

// StandingHandlers holds dependencies for standing HTTP handlers.
type StandingHandlers struct {
	classifier *standing.Classifier
	dirty      *standing.DirtyTracker
}

// NewStandingHandlers creates a new StandingHandlers instance.
func NewStandingHandlers(classifier *standing.Classifier, dirty *standing.DirtyTracker) *StandingHandlers {
	return &StandingHandlers{classifier: classifier, dirty: dirty}
}

// StandingResponse wraps a standing signal with its staleness marker.
type StandingResponse struct {
	*standing.Signal
	Stale bool `json:"stale"`
}

// GetStanding handles GET /users/{id}/standing. The signal is served from
// the short-lived cache when fresh; Stale reports whether a recompute is
// pending for the user.
func (h *StandingHandlers) GetStanding(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	if !strings.HasSuffix(rest, "/standing") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	userID := strings.TrimSuffix(rest, "/standing")
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	signal, err := h.classifier.Standing(userID)
	if err != nil {
		if errors.Is(err, standing.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to compute standing", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute standing")
		return
	}

	writeJSON(w, r, http.StatusOK, StandingResponse{
		Signal: signal,
		Stale:  h.dirty.IsDirty(userID),
	})
}
