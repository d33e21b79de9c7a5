package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/originality"
)

// OriginalityHandlers holds dependencies for originality HTTP handlers.
type OriginalityHandlers struct {
	repo        claim.Repository
	scorer      *originality.Scorer
	corpusLimit int
}

// NewOriginalityHandlers creates a new OriginalityHandlers instance.
func NewOriginalityHandlers(repo claim.Repository, scorer *originality.Scorer) *OriginalityHandlers {
	return &OriginalityHandlers{
		repo:        repo,
		scorer:      scorer,
		corpusLimit: DefaultCorpusLimit,
	}
}

// CheckOriginalityRequest is the request body for POST /claims/originality.
type CheckOriginalityRequest struct {
	Text string `json:"text"`
}

// CheckOriginality handles POST /claims/originality: a dry-run originality
// analysis of draft text against the recent-claims corpus, without posting.
func (h *OriginalityHandlers) CheckOriginality(w http.ResponseWriter, r *http.Request) {
	var req CheckOriginalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "text is required")
		return
	}

	corpus, err := h.repo.ListRecentClaims(h.corpusLimit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load originality corpus", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load comparison corpus")
		return
	}

	items := make([]originality.CorpusItem, 0, len(corpus))
	for i := range corpus {
		items = append(items, originality.CorpusItem{
			ClaimID:         corpus[i].ID,
			AuthorID:        corpus[i].AuthorID,
			Text:            corpus[i].Text,
			CreatedAt:       corpus[i].CreatedAt,
			AnnotationCount: corpus[i].AnnotationCount,
		})
	}

	analysis, err := h.scorer.Score(r.Context(), req.Text, items)
	if err != nil {
		slog.ErrorContext(r.Context(), "originality scoring failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to score originality")
		return
	}

	writeJSON(w, r, http.StatusOK, analysis)
}
