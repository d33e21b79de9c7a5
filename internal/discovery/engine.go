package discovery

import (
	"log/slog"
	"sort"
	"time"

	"github.com/thrryv/engine/internal/standing"
)

// Ranking defaults.
const (
	DefaultLimit               = 20
	DefaultDiversityPreference = 0.3

	// overRepresentationPenalty is the per-duplicate score penalty applied
	// to over-represented perspectives in diversity ranking, scaled by the
	// caller's diversity preference.
	overRepresentationPenalty = 5.0

	compositeEpsilon = 1e-9
)

// Options tune a single ranking request.
type Options struct {
	// Limit caps the result set. Zero means DefaultLimit.
	Limit int
	// DiversityPreference scales the set-level over-representation penalty,
	// 0-1. Zero means DefaultDiversityPreference.
	DiversityPreference float64
}

// Engine ranks candidates using per-algorithm weight tables.
type Engine struct {
	tables WeightTables
	logger *slog.Logger
}

// NewEngine creates a ranking engine. tables may come from LoadCalibration;
// nil means defaults.
func NewEngine(tables WeightTables, logger *slog.Logger) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tables: tables, logger: logger}
}

// Rank scores and orders the candidates. The intent must be valid; callers
// that hit ErrMalformedIntent should retry with FallbackIntent and the
// relevance algorithm. Ties are broken by recency, newer first.
func (e *Engine) Rank(intent *QueryIntent, candidates []Candidate, algorithm Algorithm, opts Options) ([]Result, error) {
	weights, ok := e.tables[algorithm]
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	diversityPref := opts.DiversityPreference
	if diversityPref <= 0 {
		diversityPref = DefaultDiversityPreference
	}

	now := time.Now()
	results := make([]Result, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		results = append(results, e.score(c, intent, weights, now))
	}

	if algorithm == AlgorithmDiversity {
		applySetDiversityPenalty(results, candidates, diversityPref)
	}

	sort.SliceStable(results, func(i, j int) bool {
		diff := results[i].CompositeScore - results[j].CompositeScore
		if diff > compositeEpsilon || diff < -compositeEpsilon {
			return diff > 0
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}

	e.logger.Debug("discovery ranked",
		"algorithm", algorithm,
		"candidates", len(candidates),
		"returned", len(results))

	return results, nil
}

// score computes one candidate's sub-scores and composite. Author standing
// acts through a soft reach multiplier on the engagement and standing
// sub-scores; relevance is never scaled, so a low-standing author's relevant
// content stays discoverable.
func (e *Engine) score(c *Candidate, intent *QueryIntent, weights Weights, now time.Time) Result {
	reach := standing.ReachMultiplier(c.AuthorTier, c.AuthorStandingScore)

	sub := SubScores{
		Relevance:   relevanceScore(c, intent),
		Diversity:   diversityScore(c, intent),
		Originality: c.OriginalityScore,
		Engagement:  clamp100(engagementQuality(c) * reach),
		Standing:    clamp100(c.AuthorStandingScore * reach),
		Recency:     recencyWeight(c.CreatedAt, intent.TimePreference, now),
		Clarity:     neutralIfZero(c.ClarityScore),
	}

	w := weights
	if !c.OriginalityKnown {
		w = redistribute(weights)
		sub.Originality = 0
	}

	composite := sub.Relevance*w.Relevance +
		sub.Diversity*w.Diversity +
		sub.Originality*w.Originality +
		sub.Engagement*w.Engagement +
		sub.Standing*w.Standing +
		sub.Recency*w.Recency +
		sub.Clarity*w.Clarity

	return Result{
		ClaimID:         c.ClaimID,
		AuthorID:        c.AuthorID,
		CompositeScore:  composite,
		SubScores:       sub,
		ReachMultiplier: reach,
		CreatedAt:       c.CreatedAt,
	}
}

// applySetDiversityPenalty reduces the score of claims whose perspective is
// over-represented in the candidate set, so the top of the ranking spans
// distinct perspectives instead of clustering.
func applySetDiversityPenalty(results []Result, candidates []Candidate, diversityPref float64) {
	counts := make(map[string]int, len(candidates))
	for i := range candidates {
		counts[candidates[i].PerspectiveType]++
	}
	for i := range results {
		perspective := candidates[i].PerspectiveType
		penalty := float64(counts[perspective]-1) * overRepresentationPenalty * diversityPref
		results[i].CompositeScore -= penalty
		if results[i].CompositeScore < 0 {
			results[i].CompositeScore = 0
		}
	}
}

func neutralIfZero(v float64) float64 {
	if v == 0 {
		return 50.0
	}
	return clamp100(v)
}
