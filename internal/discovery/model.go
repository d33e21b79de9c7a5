// Package discovery ranks candidate claims for discovery queries. Four
// selectable algorithms weight the same underlying sub-scores differently;
// sub-scores are returned alongside the composite so callers can explain why
// a result appeared.
package discovery

import (
	"errors"
	"strings"
	"time"

	"github.com/thrryv/engine/internal/standing"
)

// Algorithm selects the weighting table used for ranking.
type Algorithm string

// Discovery algorithms.
const (
	AlgorithmRelevance     Algorithm = "relevance"
	AlgorithmDiversity     Algorithm = "diversity"
	AlgorithmEmergent      Algorithm = "emergent"
	AlgorithmStandingAware Algorithm = "standing_aware"
)

// Time preferences extracted from query intent.
const (
	TimeRecent     = "recent"
	TimeHistorical = "historical"
	TimeAnytime    = "anytime"
)

// Common errors for discovery operations.
var (
	ErrUnknownAlgorithm = errors.New("unknown discovery algorithm")
	ErrMalformedIntent  = errors.New("malformed query intent")
)

// ParseAlgorithm validates an algorithm name at the boundary so scoring code
// never branches on raw strings.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmRelevance, AlgorithmDiversity, AlgorithmEmergent, AlgorithmStandingAware:
		return Algorithm(s), nil
	}
	return "", ErrUnknownAlgorithm
}

// QueryIntent is the parsed form of a discovery query.
type QueryIntent struct {
	CoreTopic              string   `json:"core_topic"`
	TimePreference         string   `json:"time_preference"`
	PerspectivePreferences []string `json:"perspective_preference"`
	RelatedDomains         []string `json:"related_domains"`
	KeyEntities            []string `json:"key_entities"`
	Keywords               []string `json:"keywords"`
	QueryAnalysis          string   `json:"query_analysis"`
}

// Validate reports whether the intent is usable for ranking.
func (q *QueryIntent) Validate() error {
	if q.CoreTopic == "" && len(q.Keywords) == 0 {
		return ErrMalformedIntent
	}
	switch q.TimePreference {
	case "", TimeRecent, TimeHistorical, TimeAnytime:
	default:
		return ErrMalformedIntent
	}
	return nil
}

func (q *QueryIntent) wantsPerspective(p string) bool {
	for _, pref := range q.PerspectivePreferences {
		if pref == p {
			return true
		}
	}
	return false
}

// FallbackIntent builds a keyword-only intent from a raw query string. It is
// the degradation path when the structured intent cannot be parsed.
func FallbackIntent(query string) QueryIntent {
	lower := strings.ToLower(query)

	timePref := TimeAnytime
	if containsAny(lower, "recent", "lately", "today", "this week", "new") {
		timePref = TimeRecent
	} else if containsAny(lower, "historical", "history", "past", "old", "ancient") {
		timePref = TimeHistorical
	}

	var perspectives []string
	if containsAny(lower, "different", "diverse", "other", "various", "perspectives", "viewpoints") {
		perspectives = append(perspectives, "diverse")
	}
	if containsAny(lower, "mainstream", "popular", "common", "consensus") {
		perspectives = append(perspectives, "mainstream")
	}
	if containsAny(lower, "critical", "against", "opposition", "disagree") {
		perspectives = append(perspectives, "critical")
	}
	if containsAny(lower, "expert", "research", "study", "scientific", "evidence") {
		perspectives = append(perspectives, "expert")
	}
	if len(perspectives) == 0 {
		perspectives = []string{"diverse", "mainstream"}
	}

	return QueryIntent{
		CoreTopic:              query,
		TimePreference:         timePref,
		PerspectivePreferences: perspectives,
		Keywords:               strings.Fields(lower),
		QueryAnalysis:          "keyword fallback analysis",
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Candidate is one claim considered for a discovery result set.
type Candidate struct {
	ClaimID         string
	AuthorID        string
	Text            string
	Domain          string
	PerspectiveType string
	CreatedAt       time.Time
	AnnotationCount int
	HelpfulVotes    int
	HasSources      bool
	ClarityScore    float64

	// OriginalityScore is the claim's frozen originality score.
	// OriginalityKnown is false when the score could not be obtained, in
	// which case the originality weight is redistributed.
	OriginalityScore float64
	OriginalityKnown bool

	// AnnotationDiversity reflects how varied the claim's annotation
	// perspectives are, 0-100. Zero means unknown and reads neutral.
	AnnotationDiversity float64

	AuthorTier          standing.Tier
	AuthorStandingScore float64
}

// SubScores are the per-signal components of a composite score, each 0-100.
type SubScores struct {
	Relevance   float64 `json:"relevance"`
	Diversity   float64 `json:"diversity"`
	Originality float64 `json:"originality"`
	Engagement  float64 `json:"engagement_quality"`
	Standing    float64 `json:"author_standing"`
	Recency     float64 `json:"recency"`
	Clarity     float64 `json:"clarity"`
}

// Result is one ranked claim with its score breakdown.
type Result struct {
	ClaimID         string    `json:"claim_id"`
	AuthorID        string    `json:"author_id"`
	CompositeScore  float64   `json:"composite_score"`
	SubScores       SubScores `json:"sub_scores"`
	ReachMultiplier float64   `json:"reach_multiplier"`
	CreatedAt       time.Time `json:"created_at"`
}
