package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/challenge"
	"github.com/thrryv/engine/internal/middleware"
)

// ChallengeHandlers holds dependencies for challenge HTTP handlers.
type ChallengeHandlers struct {
	service *challenge.Service
	repo    challenge.Repository
}

// NewChallengeHandlers creates a new ChallengeHandlers instance.
func NewChallengeHandlers(service *challenge.Service, repo challenge.Repository) *ChallengeHandlers {
	return &ChallengeHandlers{service: service, repo: repo}
}

// CreateChallengeRequest is the request body for POST /challenges.
type CreateChallengeRequest struct {
	CreatorID string   `json:"creator_id"`
	ClaimID   string   `json:"claim_id,omitempty"`
	Question  string   `json:"question"`
	Options   []string `json:"options,omitempty"`
}

// CreateChallenge handles POST /challenges.
func (h *ChallengeHandlers) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.CreatorID == "" || strings.TrimSpace(req.Question) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "creator_id and question are required")
		return
	}

	c := &challenge.Challenge{
		CreatorID: req.CreatorID,
		ClaimID:   req.ClaimID,
		Question:  req.Question,
		Options:   req.Options,
	}
	if err := h.service.Create(c); err != nil {
		slog.ErrorContext(r.Context(), "failed to create challenge", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create challenge")
		return
	}

	writeJSON(w, r, http.StatusCreated, c)
}

// GetChallenge handles GET /challenges/{id}.
func (h *ChallengeHandlers) GetChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := pathSegment(r.URL.Path, "/challenges/", 0)
	if challengeID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Challenge ID is required")
		return
	}

	c, err := h.repo.GetChallenge(challengeID)
	if err != nil {
		if errors.Is(err, challenge.ErrChallengeNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Challenge not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get challenge", "error", err, "challenge_id", challengeID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve challenge")
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

// SubmitPredictionRequest is the request body for POST /challenges/{id}/predictions.
type SubmitPredictionRequest struct {
	UserID          string  `json:"user_id"`
	Value           string  `json:"value"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// SubmitPrediction handles POST /challenges/{id}/predictions.
func (h *ChallengeHandlers) SubmitPrediction(w http.ResponseWriter, r *http.Request) {
	challengeID := pathSegment(r.URL.Path, "/challenges/", 0)
	if challengeID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Challenge ID is required")
		return
	}

	var req SubmitPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	p := &challenge.Prediction{
		ChallengeID:     challengeID,
		UserID:          req.UserID,
		Value:           req.Value,
		ConfidenceLevel: req.ConfidenceLevel,
	}
	if err := h.service.SubmitPrediction(p); err != nil {
		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Challenge not found")
		case errors.Is(err, challenge.ErrChallengeNotActive):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeChallengeNotActive)
			WriteError(w, ctx, http.StatusConflict, ErrCodeChallengeNotActive, "Challenge no longer accepts predictions")
		case errors.Is(err, challenge.ErrDuplicatePrediction):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeDuplicatePrediction)
			WriteError(w, ctx, http.StatusConflict, ErrCodeDuplicatePrediction, "Prediction already submitted")
		case errors.Is(err, challenge.ErrEmptyPrediction), errors.Is(err, challenge.ErrInvalidConfidence):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			slog.ErrorContext(r.Context(), "failed to submit prediction", "error", err, "challenge_id", challengeID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to submit prediction")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, p)
}

// ResolveChallengeRequest is the request body for POST /challenges/{id}/resolve.
type ResolveChallengeRequest struct {
	ActualOutcome string `json:"actual_outcome"`
	Explanation   string `json:"explanation,omitempty"`
}

// ResolveChallenge handles POST /challenges/{id}/resolve.
func (h *ChallengeHandlers) ResolveChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := pathSegment(r.URL.Path, "/challenges/", 0)
	if challengeID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Challenge ID is required")
		return
	}

	var req ResolveChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ActualOutcome) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "actual_outcome is required")
		return
	}

	resolution, err := h.service.Resolve(challengeID, req.ActualOutcome, req.Explanation)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Challenge not found")
		case errors.Is(err, challenge.ErrAlreadyResolved):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadyResolved)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadyResolved, "Challenge outcome is already final")
		default:
			slog.ErrorContext(r.Context(), "failed to resolve challenge", "error", err, "challenge_id", challengeID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve challenge")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, resolution)
}
