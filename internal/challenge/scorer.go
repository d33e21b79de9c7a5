package challenge

import "strings"

// Scoring defaults. An exact match earns the base scaled by the confidence
// multiplier; a close answer earns flat partial credit; any attempt earns a
// point. Points cap per prediction.
const (
	DefaultPointsExact   = 5.0
	DefaultPointsClose   = 2.5
	DefaultPointsAttempt = 1.0
	DefaultMaxPoints     = 50.0
)

// ScorerConfig holds the scoring parameters.
type ScorerConfig struct {
	PointsExact   float64
	PointsClose   float64
	PointsAttempt float64
	MaxPoints     float64
}

// DefaultScorerConfig returns the default scoring configuration.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		PointsExact:   DefaultPointsExact,
		PointsClose:   DefaultPointsClose,
		PointsAttempt: DefaultPointsAttempt,
		MaxPoints:     DefaultMaxPoints,
	}
}

// ConfidenceMultiplier scales linearly from 1x at zero confidence to 2x at
// full confidence.
func ConfidenceMultiplier(confidence float64) float64 {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return 1.0 + confidence/100.0
}

// Score computes the points a prediction earns against the actual outcome.
func (cfg ScorerConfig) Score(predictionValue, outcome string, confidence float64) float64 {
	var points float64
	switch {
	case predictionValue == outcome:
		points = cfg.PointsExact * ConfidenceMultiplier(confidence)
	case isClose(predictionValue, outcome):
		points = cfg.PointsClose
	default:
		points = cfg.PointsAttempt
	}

	if points > cfg.MaxPoints {
		points = cfg.MaxPoints
	}
	return points
}

// isClose grants partial credit when the prediction shares substantive
// wording with the outcome.
func isClose(prediction, outcome string) bool {
	if len(prediction) <= 3 || len(outcome) <= 3 {
		return false
	}
	predicted := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(prediction)) {
		predicted[w] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(outcome)) {
		if _, ok := predicted[w]; ok {
			return true
		}
	}
	return false
}
