// Package credibility turns a claim's aggregated annotation signals into a
// 0-100 credibility score and a discrete truth label. The label is a
// descriptive band, never a binary true/false judgement.
package credibility

import (
	"math"

	"github.com/thrryv/engine/internal/claim"
)

// Truth label bands, from strongest support consensus to strongest
// contradiction consensus. Uncertain is forced whenever a claim has too few
// annotations to read as anything but unsettled.
const (
	LabelTrue        = "True"
	LabelLikelyTrue  = "Likely True"
	LabelMixed       = "Mixed Evidence"
	LabelUncertain   = "Uncertain"
	LabelLikelyFalse = "Likely False"
	LabelFalse       = "False"
)

// Default label thresholds and scoring constants. All are configurable via
// Config; these are the calibrated platform defaults.
const (
	DefaultTrueThreshold        = 85.0
	DefaultLikelyTrueThreshold  = 65.0
	DefaultMixedThreshold       = 45.0
	DefaultLikelyFalseThreshold = 25.0

	// DefaultUncertainFloor is the annotation count below which a claim is
	// labeled Uncertain regardless of its score.
	DefaultUncertainFloor = 3

	// NeutralMidpoint is the score a claim with no directional evidence
	// reads at, and the point low-volume claims shrink toward.
	NeutralMidpoint = 50.0

	// balanceEpsilon keeps the directional balance defined when a claim has
	// no weighted annotations at all.
	balanceEpsilon = 1e-9
)

// Config holds the label thresholds and the uncertain floor.
type Config struct {
	TrueThreshold        float64
	LikelyTrueThreshold  float64
	MixedThreshold       float64
	LikelyFalseThreshold float64
	UncertainFloor       int
}

// DefaultConfig returns the default credibility configuration.
func DefaultConfig() Config {
	return Config{
		TrueThreshold:        DefaultTrueThreshold,
		LikelyTrueThreshold:  DefaultLikelyTrueThreshold,
		MixedThreshold:       DefaultMixedThreshold,
		LikelyFalseThreshold: DefaultLikelyFalseThreshold,
		UncertainFloor:       DefaultUncertainFloor,
	}
}

// AnnotationWeight converts an annotation's floored net helpfulness into its
// scoring weight. The logarithm dampens vote brigading: the tenth helpful
// vote moves the weight far less than the first.
func AnnotationWeight(netHelpfulness int) float64 {
	if netHelpfulness < 0 {
		netHelpfulness = 0
	}
	return 1.0 + math.Log(1.0+float64(netHelpfulness))
}

func bucketWeight(b claim.SignalBucket) float64 {
	var total float64
	for _, net := range b.NetHelpfulness {
		total += AnnotationWeight(net)
	}
	return total
}

// Score computes the credibility score for a signal vector.
//
// The directional balance (support weight minus contradict weight over total
// weight, context included in the denominator as neutral mass) maps [-1, 1]
// onto [0, 100], then shrinks toward the neutral midpoint by
// 1/sqrt(aligned+1), where aligned counts the annotations on the balance's
// own side plus context. Opposing annotations enter the balance only; an
// added contradiction always moves a supported claim's score down, never up
// through the confidence term, and symmetrically for support against a
// contradicted claim.
func Score(v claim.SignalVector) float64 {
	supportW := bucketWeight(v.Support)
	contradictW := bucketWeight(v.Contradict)
	contextW := bucketWeight(v.Context)

	if v.AnnotationCount() == 0 {
		return NeutralMidpoint
	}

	balance := (supportW - contradictW) / (supportW + contradictW + contextW + balanceEpsilon)
	raw := NeutralMidpoint + balance*50.0

	// Low-volume shrinkage: deviation from the midpoint is scaled down by
	// the remaining uncertainty, which decays as 1/sqrt(aligned+1).
	aligned := v.Support.Count + v.Context.Count
	if balance < 0 {
		aligned = v.Contradict.Count + v.Context.Count
	}
	confidence := 1.0 - 1.0/math.Sqrt(float64(aligned)+1.0)
	score := NeutralMidpoint + (raw-NeutralMidpoint)*confidence

	return clampScore(score)
}

// Label derives the truth label for a score under the configured thresholds.
// The Uncertain floor overrides the ladder: any claim with fewer annotations
// than the floor is Uncertain regardless of score.
func (c Config) Label(score float64, annotationCount int) string {
	if annotationCount < c.UncertainFloor {
		return LabelUncertain
	}
	switch {
	case score >= c.TrueThreshold:
		return LabelTrue
	case score >= c.LikelyTrueThreshold:
		return LabelLikelyTrue
	case score >= c.MixedThreshold:
		return LabelMixed
	case score >= c.LikelyFalseThreshold:
		return LabelLikelyFalse
	default:
		return LabelFalse
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
