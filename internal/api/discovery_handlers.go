package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/standing"
)

// DefaultCandidateWindow bounds how many recent claims a discovery query
// considers before ranking.
const DefaultCandidateWindow = 500

// DiscoveryHandlers holds dependencies for discovery HTTP handlers.
type DiscoveryHandlers struct {
	repo            claim.Repository
	engine          *discovery.Engine
	classifier      *standing.Classifier
	candidateWindow int
}

// NewDiscoveryHandlers creates a new DiscoveryHandlers instance.
func NewDiscoveryHandlers(repo claim.Repository, engine *discovery.Engine, classifier *standing.Classifier) *DiscoveryHandlers {
	return &DiscoveryHandlers{
		repo:            repo,
		engine:          engine,
		classifier:      classifier,
		candidateWindow: DefaultCandidateWindow,
	}
}

// DiscoverRequest is the request body for POST /discover.
type DiscoverRequest struct {
	Query               string                 `json:"query"`
	Intent              *discovery.QueryIntent `json:"intent,omitempty"`
	Algorithm           string                 `json:"algorithm,omitempty"`
	Limit               int                    `json:"limit,omitempty"`
	DiversityPreference float64                `json:"diversity_preference,omitempty"`
}

// DiscoverResponse is the response body for POST /discover.
type DiscoverResponse struct {
	Algorithm string             `json:"algorithm"`
	Fallback  bool               `json:"fallback"`
	Results   []discovery.Result `json:"results"`
}

// Discover handles POST /discover. A malformed structured intent degrades to
// a keyword fallback intent ranked by relevance rather than failing the
// query.
func (h *DiscoveryHandlers) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	algorithmName := req.Algorithm
	if algorithmName == "" {
		algorithmName = string(discovery.AlgorithmRelevance)
	}
	algorithm, err := discovery.ParseAlgorithm(algorithmName)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnknownAlgorithm)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnknownAlgorithm, "Unknown discovery algorithm")
		return
	}

	intent := req.Intent
	if intent == nil {
		if strings.TrimSpace(req.Query) == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMalformedIntent)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeMalformedIntent, "Either intent or query is required")
			return
		}
		fallback := discovery.FallbackIntent(req.Query)
		intent = &fallback
	}

	candidates, err := h.loadCandidates(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load discovery candidates", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load candidates")
		return
	}

	opts := discovery.Options{Limit: req.Limit, DiversityPreference: req.DiversityPreference}
	usedFallback := false

	results, err := h.engine.Rank(intent, candidates, algorithm, opts)
	if errors.Is(err, discovery.ErrMalformedIntent) && strings.TrimSpace(req.Query) != "" {
		// Degrade: keyword intent, relevance ranking.
		slog.WarnContext(r.Context(), "malformed query intent, using keyword fallback",
			"query", req.Query)
		fallback := discovery.FallbackIntent(req.Query)
		algorithm = discovery.AlgorithmRelevance
		usedFallback = true
		results, err = h.engine.Rank(&fallback, candidates, algorithm, opts)
	}
	if err != nil {
		if errors.Is(err, discovery.ErrMalformedIntent) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMalformedIntent)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeMalformedIntent, "Query intent is unusable")
			return
		}
		slog.ErrorContext(r.Context(), "discovery ranking failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank candidates")
		return
	}

	if results == nil {
		results = []discovery.Result{}
	}
	writeJSON(w, r, http.StatusOK, DiscoverResponse{
		Algorithm: string(algorithm),
		Fallback:  usedFallback,
		Results:   results,
	})
}

// loadCandidates assembles discovery candidates from the recent-claims
// window. Author standing lookups go through the classifier's cache; a
// failed lookup reads as neutral reach instead of dropping the claim.
func (h *DiscoveryHandlers) loadCandidates(r *http.Request) ([]discovery.Candidate, error) {
	claims, err := h.repo.ListRecentClaims(h.candidateWindow)
	if err != nil {
		return nil, err
	}

	standingByAuthor := make(map[string]*standing.Signal)
	candidates := make([]discovery.Candidate, 0, len(claims))
	for i := range claims {
		c := &claims[i]

		annotations, err := h.repo.ListAnnotations(c.ID)
		if err != nil {
			return nil, err
		}

		helpful := 0
		types := make(map[string]struct{})
		for j := range annotations {
			helpful += annotations[j].HelpfulVotes
			types[annotations[j].AnnotationType] = struct{}{}
		}

		cand := discovery.Candidate{
			ClaimID:             c.ID,
			AuthorID:            c.AuthorID,
			Text:                c.Text,
			Domain:              c.Domain,
			PerspectiveType:     classifyPerspective(annotations),
			CreatedAt:           c.CreatedAt,
			AnnotationCount:     len(annotations),
			HelpfulVotes:        helpful,
			HasSources:          strings.Contains(c.Text, "http"),
			OriginalityScore:    c.OriginalityScore,
			OriginalityKnown:    c.NoveltyLevel != "",
			AnnotationDiversity: float64(len(types)) / 3.0 * 100.0,
		}

		signal, ok := standingByAuthor[c.AuthorID]
		if !ok {
			signal, err = h.classifier.Standing(c.AuthorID)
			if err != nil {
				slog.DebugContext(r.Context(), "author standing unavailable, using neutral reach",
					"author_id", c.AuthorID)
				signal = nil
			}
			standingByAuthor[c.AuthorID] = signal
		}
		if signal != nil {
			cand.AuthorTier = signal.Tier
			cand.AuthorStandingScore = signal.OverallScore
		} else {
			cand.AuthorTier = standing.TierConsistent
			cand.AuthorStandingScore = 50
		}

		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// classifyPerspective reads a claim's evidence balance as its perspective:
// claims carried by supporting evidence read as mainstream, claims carried
// by contradicting evidence as contrarian, everything else as mixed.
func classifyPerspective(annotations []claim.Annotation) string {
	var support, contradict int
	for i := range annotations {
		switch annotations[i].AnnotationType {
		case claim.TypeSupport:
			support++
		case claim.TypeContradict:
			contradict++
		}
	}
	switch {
	case support > contradict*2 && support > 0:
		return "mainstream"
	case contradict > support*2 && contradict > 0:
		return "contrarian"
	default:
		return "mixed"
	}
}
