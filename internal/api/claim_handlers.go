// Package api provides HTTP handlers for the scoring engine API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/credibility"
	"github.com/thrryv/engine/internal/evaluator"
	"github.com/thrryv/engine/internal/ledger"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/standing"
	"github.com/thrryv/engine/internal/validate"
)

// DefaultCorpusLimit bounds the recent-claims window used as the
// originality comparison corpus.
const DefaultCorpusLimit = 200

// ClaimHandlers holds dependencies for claim HTTP handlers.
type ClaimHandlers struct {
	repo        claim.Repository
	recomputer  *credibility.Recomputer
	ledger      *ledger.Ledger
	originality *originality.Scorer
	eval        evaluator.Evaluator
	dirty       *standing.DirtyTracker
	corpusLimit int
}

// NewClaimHandlers creates a new ClaimHandlers instance.
func NewClaimHandlers(
	repo claim.Repository,
	recomputer *credibility.Recomputer,
	ledger *ledger.Ledger,
	originalityScorer *originality.Scorer,
	eval evaluator.Evaluator,
	dirty *standing.DirtyTracker,
) *ClaimHandlers {
	return &ClaimHandlers{
		repo:        repo,
		recomputer:  recomputer,
		ledger:      ledger,
		originality: originalityScorer,
		eval:        eval,
		dirty:       dirty,
		corpusLimit: DefaultCorpusLimit,
	}
}

// CreateClaimRequest is the request body for POST /claims.
type CreateClaimRequest struct {
	Text            string `json:"text"`
	AuthorID        string `json:"author_id"`
	Domain          string `json:"domain,omitempty"`
	ConfidenceLevel int    `json:"confidence_level"`
}

// CreateClaimResponse is the response body for POST /claims.
type CreateClaimResponse struct {
	Claim       *claim.Claim          `json:"claim"`
	Boost       *ledger.BoostResult   `json:"boost,omitempty"`
	Originality *originality.Analysis `json:"originality,omitempty"`
}

// CreateClaim handles POST /claims. Publishing runs the full creation
// pipeline: originality analysis against recent claims, external content
// evaluation, the baseline reputation boost, and a standing invalidation for
// the author. Every scoring step fails open; only input validation can
// reject the post.
func (h *ClaimHandlers) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	authorID, err := validate.ActorID(req.AuthorID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author_id is required and must be a valid identifier")
		return
	}
	domain, err := validate.Domain(req.Domain)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "domain must be a lowercase tag")
		return
	}

	c := &claim.Claim{
		Text:            req.Text,
		AuthorID:        authorID,
		Domain:          domain,
		ConfidenceLevel: req.ConfidenceLevel,
	}
	if err := c.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	// Originality against the recent-claims corpus, frozen at creation time.
	var analysis *originality.Analysis
	corpus, err := h.repo.ListRecentClaims(h.corpusLimit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load originality corpus", "error", err)
	} else {
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
		analysis, err = h.originality.Score(r.Context(), req.Text, items)
		if err != nil {
			slog.ErrorContext(r.Context(), "originality scoring failed", "error", err)
			analysis = nil
		}
	}
	if analysis != nil {
		c.OriginalityScore = analysis.OriginalityScore
		c.NoveltyLevel = analysis.NoveltyLevel
		c.OriginalityBoosted = analysis.IsBoosted
	}

	// New claims start at the neutral midpoint with no annotations.
	c.CredibilityScore = credibility.NeutralMidpoint
	c.TruthLabel = credibility.LabelUncertain

	if err := h.repo.CreateClaim(c); err != nil {
		slog.ErrorContext(r.Context(), "failed to create claim", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create claim")
		return
	}

	// External evaluation drives the baseline boost. Unavailable evaluator
	// means a zero-delta boost, never a blocked post.
	var scores *evaluator.Scores
	scores, err = h.eval.EvaluateContent(r.Context(), req.Text, req.Domain)
	if err != nil {
		slog.WarnContext(r.Context(), "content evaluation unavailable",
			"error", err, "claim_id", c.ID)
		scores = nil
	}

	boost, err := h.ledger.ApplyBaselineBoost(c.AuthorID, c.ID, scores)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to apply baseline boost",
			"error", err, "claim_id", c.ID)
		boost = nil
	}

	h.dirty.MarkDirty(c.AuthorID)

	writeJSON(w, r, http.StatusCreated, CreateClaimResponse{
		Claim:       c,
		Boost:       boost,
		Originality: analysis,
	})
}

// GetClaim handles GET /claims/{id}.
func (h *ClaimHandlers) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := pathSegment(r.URL.Path, "/claims/", 0)
	if claimID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	c, err := h.repo.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get claim", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve claim")
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

// DeleteClaimResponse is the response body for DELETE /claims/{id}.
type DeleteClaimResponse struct {
	ClaimID       string  `json:"claim_id"`
	DeltaReversed float64 `json:"delta_reversed"`
}

// DeleteClaim handles DELETE /claims/{id}. The author's reputation boost is
// reversed exactly once before the claim and its annotations are removed;
// if the reversal cannot be recorded the delete is refused so the two never
// diverge.
func (h *ClaimHandlers) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	claimID := pathSegment(r.URL.Path, "/claims/", 0)
	if claimID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	c, err := h.repo.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, claim.ErrClaimNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get claim for delete", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve claim")
		return
	}

	reversed, err := h.ledger.Reverse(c.AuthorID, claimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to reverse claim boost", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to reverse reputation")
		return
	}

	if err := h.repo.DeleteClaim(claimID); err != nil && !errors.Is(err, claim.ErrClaimNotFound) {
		slog.ErrorContext(r.Context(), "failed to delete claim", "error", err, "claim_id", claimID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete claim")
		return
	}

	h.dirty.MarkDirty(c.AuthorID)

	writeJSON(w, r, http.StatusOK, DeleteClaimResponse{
		ClaimID:       claimID,
		DeltaReversed: reversed,
	})
}

// RecomputeClaim handles POST /claims/{id}/recompute.
func (h *ClaimHandlers) RecomputeClaim(w http.ResponseWriter, r *http.Request) {
	claimID := pathSegment(r.URL.Path, "/claims/", 0)
	if claimID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	result, err := h.recomputer.Recompute(claimID)
	if err != nil {
		switch {
		case errors.Is(err, claim.ErrClaimNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
		case errors.Is(err, credibility.ErrRecomputeContention):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeStaleRecompute)
			WriteError(w, ctx, http.StatusConflict, ErrCodeStaleRecompute, "Recompute lost a concurrent update, retry")
		default:
			slog.ErrorContext(r.Context(), "failed to recompute claim", "error", err, "claim_id", claimID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recompute claim")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// CreateAnnotationRequest is the request body for POST /claims/{id}/annotations.
type CreateAnnotationRequest struct {
	AuthorID       string `json:"author_id"`
	Text           string `json:"text"`
	AnnotationType string `json:"annotation_type"`
}

// CreateAnnotationResponse is the response body for POST /claims/{id}/annotations.
type CreateAnnotationResponse struct {
	Annotation *claim.Annotation   `json:"annotation"`
	Claim      *credibility.Result `json:"claim,omitempty"`
}

// CreateAnnotation handles POST /claims/{id}/annotations. The claim's
// credibility is recomputed immediately; a failed recompute is logged and
// deferred rather than failing the write.
func (h *ClaimHandlers) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	claimID := pathSegment(r.URL.Path, "/claims/", 0)
	if claimID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Claim ID is required")
		return
	}

	var req CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	authorID, err := validate.ActorID(req.AuthorID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "author_id is required and must be a valid identifier")
		return
	}

	a := &claim.Annotation{
		ClaimID:        claimID,
		AuthorID:       authorID,
		Text:           req.Text,
		AnnotationType: req.AnnotationType,
	}
	if err := h.repo.CreateAnnotation(a); err != nil {
		switch {
		case errors.Is(err, claim.ErrClaimNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Claim not found")
		case errors.Is(err, claim.ErrInvalidType), errors.Is(err, claim.ErrEmptyText), errors.Is(err, claim.ErrTextTooLong):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to create annotation", "error", err, "claim_id", claimID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create annotation")
		}
		return
	}

	result, err := h.recomputer.Recompute(claimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "credibility recompute after annotation failed",
			"error", err, "claim_id", claimID)
		result = nil
	}

	h.dirty.MarkDirty(authorID)

	writeJSON(w, r, http.StatusCreated, CreateAnnotationResponse{
		Annotation: a,
		Claim:      result,
	})
}

// CastVoteRequest is the request body for POST /annotations/{id}/votes.
type CastVoteRequest struct {
	VoterID string `json:"voter_id"`
	Helpful bool   `json:"helpful"`
}

// CastVoteResponse is the response body for POST /annotations/{id}/votes.
type CastVoteResponse struct {
	Annotation *claim.Annotation   `json:"annotation"`
	Claim      *credibility.Result `json:"claim,omitempty"`
}

// CastVote handles POST /annotations/{id}/votes. A helpful vote credits the
// annotation author's reputation; any vote change recomputes the parent
// claim's credibility.
func (h *ClaimHandlers) CastVote(w http.ResponseWriter, r *http.Request) {
	annotationID := pathSegment(r.URL.Path, "/annotations/", 0)
	if annotationID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Annotation ID is required")
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.VoterID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "voter_id is required")
		return
	}

	err := h.repo.CastVote(&claim.Vote{
		AnnotationID: annotationID,
		VoterID:      req.VoterID,
		Helpful:      req.Helpful,
	})
	if err != nil {
		switch {
		case errors.Is(err, claim.ErrAnnotationNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Annotation not found")
		case errors.Is(err, claim.ErrDuplicateVote):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeDuplicateVote)
			WriteError(w, ctx, http.StatusConflict, ErrCodeDuplicateVote, "Vote already recorded")
		default:
			slog.ErrorContext(r.Context(), "failed to cast vote", "error", err, "annotation_id", annotationID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to cast vote")
		}
		return
	}

	a, err := h.repo.GetAnnotation(annotationID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to reload annotation after vote", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to reload annotation")
		return
	}

	if req.Helpful {
		if _, err := h.ledger.CreditHelpfulVote(a.AuthorID, a.ID, a.CreatedAt); err != nil {
			slog.ErrorContext(r.Context(), "failed to credit helpful vote",
				"error", err, "annotation_id", a.ID)
		}
		h.dirty.MarkDirty(a.AuthorID)
	}

	result, err := h.recomputer.Recompute(a.ClaimID)
	if err != nil {
		slog.ErrorContext(r.Context(), "credibility recompute after vote failed",
			"error", err, "claim_id", a.ClaimID)
		result = nil
	}

	writeJSON(w, r, http.StatusOK, CastVoteResponse{
		Annotation: a,
		Claim:      result,
	})
}

// pathSegment extracts the segment at index from the path after the prefix.
// Returns "" when the segment is missing.
func pathSegment(path, prefix string, index int) string {
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
