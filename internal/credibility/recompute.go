package credibility

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/stats"
)

// DefaultMaxRetries bounds the optimistic-concurrency retry loop. Each retry
// re-reads the claim and its annotations, so a conflict never writes a score
// computed from a stale signal vector.
const DefaultMaxRetries = 3

// ErrRecomputeContention is returned when every retry lost the version race.
var ErrRecomputeContention = errors.New("claim score recompute lost version race on every attempt")

// Result carries the outcome of a recompute for the caller to render.
type Result struct {
	ClaimID          string  `json:"claim_id"`
	CredibilityScore float64 `json:"credibility_score"`
	TruthLabel       string  `json:"truth_label"`
	AnnotationCount  int     `json:"annotation_count"`
}

// Recomputer recomputes claim credibility from stored annotations. It is
// triggered on every annotation create and every vote change; historical
// point-in-time scores are never reconstructed.
type Recomputer struct {
	repo       claim.Repository
	config     Config
	logger     *slog.Logger
	maxRetries int
	stats      *stats.RecomputeStats
}

// NewRecomputer creates a Recomputer over the given repository.
func NewRecomputer(repo claim.Repository, config Config, logger *slog.Logger) *Recomputer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recomputer{
		repo:       repo,
		config:     config,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		stats:      stats.NewRecomputeStats(),
	}
}

// Stats exposes cumulative recompute counters.
func (r *Recomputer) Stats() *stats.RecomputeStats {
	return r.stats
}

// Recompute re-derives the credibility score and truth label for a claim.
// A concurrent annotation or vote write bumps the claim version, which makes
// the guarded score write fail with ErrStaleRecompute; the recompute then
// retries from a fresh signal vector.
func (r *Recomputer) Recompute(claimID string) (*Result, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		c, err := r.repo.GetClaim(claimID)
		if err != nil {
			return nil, err
		}

		annotations, err := r.repo.ListAnnotations(claimID)
		if err != nil {
			return nil, fmt.Errorf("failed to list annotations: %w", err)
		}

		vector := claim.Aggregate(annotations)
		count := vector.AnnotationCount()
		score := Score(vector)
		label := r.config.Label(score, count)

		err = r.repo.UpdateScores(claimID, score, label, count, c.Version)
		if errors.Is(err, claim.ErrStaleRecompute) {
			r.stats.RecordRetry()
			r.logger.Debug("stale recompute, retrying from fresh signal vector",
				"claim_id", claimID,
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		r.stats.RecordCompleted()
		return &Result{
			ClaimID:          claimID,
			CredibilityScore: score,
			TruthLabel:       label,
			AnnotationCount:  count,
		}, nil
	}

	r.stats.RecordContended()
	return nil, ErrRecomputeContention
}
