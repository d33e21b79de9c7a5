// Package standing classifies users into descriptive contribution tiers from
// a weighted multi-metric vector. Standing is not a rank against other users;
// it reflects consistency, effort, and contribution quality over time, and is
// evaluated against a smoothed score so a single contribution cannot flip a
// tier.
package standing

import (
	"errors"
	"time"
)

// Tier is a descriptive standing level, not a ranking.
type Tier string

// Standing tiers, lowest to highest.
const (
	TierEmerging    Tier = "emerging"
	TierConsistent  Tier = "consistent"
	TierEstablished Tier = "established"
	TierExpert      Tier = "expert"
	TierTrusted     Tier = "trusted"
)

// Tier thresholds over the smoothed overall score.
const (
	DefaultConsistentThreshold  = 50.0
	DefaultEstablishedThreshold = 70.0
	DefaultExpertThreshold      = 80.0
	DefaultTrustedThreshold     = 90.0
)

// Metric weights. They sum to 1.0.
const (
	WeightContentQuality        = 0.35
	WeightEngagementConsistency = 0.25
	WeightOriginality           = 0.15
	WeightCommunityFeedback     = 0.15
	WeightTenure                = 0.10
)

// Metric display names.
const (
	MetricContentQuality        = "Content Quality"
	MetricEngagementConsistency = "Engagement Consistency"
	MetricOriginality           = "Originality"
	MetricCommunityFeedback     = "Community Feedback"
	MetricTenure                = "Tenure"
)

// Trend values derived from the last two standing records.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Common errors for standing operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// tierOrder lists tiers lowest to highest for milestone lookup.
var tierOrder = []Tier{TierEmerging, TierConsistent, TierEstablished, TierExpert, TierTrusted}

// reachTierBase maps each tier to its base reach multiplier. The floor of
// 0.8 is a hard invariant: standing scales reach softly and never suppresses
// a low-standing author's content entirely.
var reachTierBase = map[Tier]float64{
	TierEmerging:    0.8,
	TierConsistent:  0.9,
	TierEstablished: 1.0,
	TierExpert:      1.1,
	TierTrusted:     1.2,
}

// Metric is one weighted component of the overall standing score.
type Metric struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Record is an append-only snapshot of a standing computation. Records are
// never mutated; trend and smoothing are derived from the most recent ones.
type Record struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	ContentQuality        float64   `json:"content_quality"`
	EngagementConsistency float64   `json:"engagement_consistency"`
	Originality           float64   `json:"originality"`
	CommunityFeedback     float64   `json:"community_feedback"`
	Tenure                float64   `json:"tenure"`
	OverallScore          float64   `json:"overall_score"`
	Tier                  Tier      `json:"tier"`
	ComputedAt            time.Time `json:"computed_at"`
}

// Metrics expands the record's stored values into weighted metric components.
func (r *Record) Metrics() []Metric {
	build := func(name string, value, weight float64) Metric {
		return Metric{Name: name, Value: value, Weight: weight, Contribution: value * weight}
	}
	return []Metric{
		build(MetricContentQuality, r.ContentQuality, WeightContentQuality),
		build(MetricEngagementConsistency, r.EngagementConsistency, WeightEngagementConsistency),
		build(MetricOriginality, r.Originality, WeightOriginality),
		build(MetricCommunityFeedback, r.CommunityFeedback, WeightCommunityFeedback),
		build(MetricTenure, r.Tenure, WeightTenure),
	}
}

// Milestone estimates what it takes to reach the next tier.
type Milestone struct {
	NextTier      Tier     `json:"next_tier"`
	ScoreNeeded   float64  `json:"score_needed"`
	EstimatedDays int      `json:"estimated_days,omitempty"`
	FocusAreas    []string `json:"focus_areas,omitempty"`
}

// Signal is the full standing view returned to callers.
type Signal struct {
	UserID          string     `json:"user_id"`
	Tier            Tier       `json:"tier"`
	OverallScore    float64    `json:"overall_score"`
	SmoothedScore   float64    `json:"smoothed_score"`
	Metrics         []Metric   `json:"metrics"`
	TenureMonths    int        `json:"tenure_months"`
	Trend           string     `json:"trend"`
	NextMilestone   *Milestone `json:"next_milestone,omitempty"`
	ReachMultiplier float64    `json:"reach_multiplier"`
	ComputedAt      time.Time  `json:"computed_at"`
}

// UserSnapshot carries everything the classifier needs about a user at
// computation time.
type UserSnapshot struct {
	UserID                  string
	CreatedAt               time.Time
	ClaimsPosted            int
	AnnotationsAdded        int
	HelpfulVotesReceived    int
	NotHelpfulVotesReceived int
	// AvgClaimCredibility is the mean credibility score of the user's recent
	// claims, 0-100.
	AvgClaimCredibility float64
	// AvgOriginality is the mean originality score of the user's authored
	// claims, 0-100.
	AvgOriginality float64
}

// DataSource provides user snapshots for standing computation.
type DataSource interface {
	// UserSnapshot returns the current snapshot for a user, or ErrUserNotFound.
	UserSnapshot(userID string) (*UserSnapshot, error)
}

// RecordStore persists standing records.
type RecordStore interface {
	// AppendRecord stores a new record. The record ID is generated if empty.
	AppendRecord(r *Record) error
	// ListRecent returns the user's most recent records, newest first,
	// capped at limit.
	ListRecent(userID string, limit int) ([]Record, error)
}

// ReachMultiplier computes the soft reach multiplier for a tier and overall
// score. It is always at least the tier base, which is never below 0.8.
func ReachMultiplier(tier Tier, overallScore float64) float64 {
	base, ok := reachTierBase[tier]
	if !ok {
		base = 1.0
	}
	return base + (overallScore/100.0)*0.2
}

// NextTier returns the tier above the given one, or empty when already at
// the top.
func NextTier(t Tier) (Tier, bool) {
	for i, tier := range tierOrder {
		if tier == t && i+1 < len(tierOrder) {
			return tierOrder[i+1], true
		}
	}
	return "", false
}
