// Package evaluator wraps the external AI evaluation service that scores
// content quality at publish time and judges semantic similarity between
// texts. The engine treats it as an unreliable collaborator: every call has a
// timeout and every caller has a fail-open path.
package evaluator

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the external evaluation call failed or
// timed out. Callers degrade to neutral values; content writes are never
// blocked by evaluator health.
var ErrUnavailable = errors.New("external evaluation unavailable")

// Scores holds the per-dimension quality scores (each 0-100) the evaluator
// assigns to a piece of content. It never judges truth or correctness, only
// informational value.
type Scores struct {
	Clarity          float64 `json:"clarity_score"`
	Originality      float64 `json:"originality_score"`
	Relevance        float64 `json:"relevance_score"`
	Effort           float64 `json:"effort_score"`
	EvidentiaryValue float64 `json:"evidentiary_value_score"`
	Summary          string  `json:"summary,omitempty"`
}

// Average returns the plain mean of the five dimensions.
func (s *Scores) Average() float64 {
	return (s.Clarity + s.Originality + s.Relevance + s.Effort + s.EvidentiaryValue) / 5.0
}

// Clamp bounds every dimension to [0, 100] in place.
func (s *Scores) Clamp() {
	s.Clarity = clamp(s.Clarity)
	s.Originality = clamp(s.Originality)
	s.Relevance = clamp(s.Relevance)
	s.Effort = clamp(s.Effort)
	s.EvidentiaryValue = clamp(s.EvidentiaryValue)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Evaluator is the boundary interface for the external AI service.
type Evaluator interface {
	// EvaluateContent scores a claim's informational value at publish time.
	// Returns ErrUnavailable (wrapped) when the service cannot answer.
	EvaluateContent(ctx context.Context, text, domain string) (*Scores, error)

	// JudgeSimilarity returns a semantic similarity in [0, 1] between two
	// texts. Returns ErrUnavailable (wrapped) when the service cannot answer.
	JudgeSimilarity(ctx context.Context, a, b string) (float64, error)
}

// Static is an Evaluator returning fixed values, used in tests and as an
// explicit "no evaluator configured" stand-in.
type Static struct {
	Scores     *Scores
	Similarity float64
	Err        error
}

// EvaluateContent returns the configured scores or error.
func (s *Static) EvaluateContent(ctx context.Context, text, domain string) (*Scores, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Scores == nil {
		return nil, ErrUnavailable
	}
	copied := *s.Scores
	return &copied, nil
}

// JudgeSimilarity returns the configured similarity or error.
func (s *Static) JudgeSimilarity(ctx context.Context, a, b string) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Similarity, nil
}
