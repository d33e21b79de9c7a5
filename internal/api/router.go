package api

import (
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/middleware"
)

// Handlers groups every handler set the router dispatches to.
type Handlers struct {
	Claims      *ClaimHandlers
	Standing    *StandingHandlers
	Originality *OriginalityHandlers
	Discovery   *DiscoveryHandlers
	Challenges  *ChallengeHandlers
	Health      http.HandlerFunc
	Ready       http.HandlerFunc
}

// NewRouter builds the engine's HTTP route table.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("/health", h.Health)
	}
	if h.Ready != nil {
		mux.HandleFunc("/ready", h.Ready)
	}

	mux.HandleFunc("/claims", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		h.Claims.CreateClaim(w, r)
	})

	mux.HandleFunc("/claims/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/claims/")
		parts := strings.Split(rest, "/")

		// POST /claims/originality is a dry-run check, not a claim resource.
		if rest == "originality" {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r)
				return
			}
			h.Originality.CheckOriginality(w, r)
			return
		}

		switch {
		case len(parts) == 1:
			switch r.Method {
			case http.MethodGet:
				h.Claims.GetClaim(w, r)
			case http.MethodDelete:
				h.Claims.DeleteClaim(w, r)
			default:
				methodNotAllowed(w, r)
			}
		case len(parts) == 2 && parts[1] == "recompute" && r.Method == http.MethodPost:
			h.Claims.RecomputeClaim(w, r)
		case len(parts) == 2 && parts[1] == "annotations" && r.Method == http.MethodPost:
			h.Claims.CreateAnnotation(w, r)
		default:
			notFound(w, r)
		}
	})

	mux.HandleFunc("/annotations/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/annotations/"), "/")
		if len(parts) == 2 && parts[1] == "votes" && r.Method == http.MethodPost {
			h.Claims.CastVote(w, r)
			return
		}
		notFound(w, r)
	})

	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/standing") && r.Method == http.MethodGet {
			h.Standing.GetStanding(w, r)
			return
		}
		notFound(w, r)
	})

	mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		h.Discovery.Discover(w, r)
	})

	mux.HandleFunc("/challenges", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		h.Challenges.CreateChallenge(w, r)
	})

	mux.HandleFunc("/challenges/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/challenges/"), "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.Challenges.GetChallenge(w, r)
		case len(parts) == 2 && parts[1] == "predictions" && r.Method == http.MethodPost:
			h.Challenges.SubmitPrediction(w, r)
		case len(parts) == 2 && parts[1] == "resolve" && r.Method == http.MethodPost:
			h.Challenges.ResolveChallenge(w, r)
		default:
			notFound(w, r)
		}
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			notFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"thrryv-engine","version":"0.1.0"}`))
	})

	return mux
}

func notFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
