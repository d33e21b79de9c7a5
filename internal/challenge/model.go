// Package challenge implements prediction challenges: time-boxed questions
// users predict on, scored with confidence weighting at resolution.
// Resolution affects only the predicting users' engagement stats; the
// associated claim and its author are never touched.
package challenge

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a challenge.
type Status string

// Challenge statuses.
const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// Lifecycle defaults.
const (
	DefaultDurationHours = 24
	DefaultResolveHours  = 48
)

// Common errors for challenge operations.
var (
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrPredictionNotFound  = errors.New("prediction not found")
	ErrChallengeNotActive  = errors.New("challenge is not accepting predictions")
	ErrAlreadyResolved     = errors.New("challenge already resolved")
	ErrDuplicatePrediction = errors.New("user already predicted on this challenge")
	ErrInvalidConfidence   = errors.New("confidence level must be between 0 and 100")
	ErrEmptyPrediction     = errors.New("prediction value must not be empty")
)

// Challenge is a time-boxed prediction question. Options are immutable after
// creation.
type Challenge struct {
	ID                    string    `json:"id"`
	ClaimID               string    `json:"claim_id,omitempty"`
	CreatorID             string    `json:"creator_id"`
	Question              string    `json:"question"`
	Options               []string  `json:"options"`
	Status                Status    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	ClosesAt              time.Time `json:"closes_at"`
	ResolveAt             time.Time `json:"resolve_at"`
	ActualOutcome         string    `json:"actual_outcome,omitempty"`
	ResolutionExplanation string    `json:"resolution_explanation,omitempty"`
	ResolvedAt            time.Time `json:"resolved_at,omitempty"`
}

// AcceptsPredictions reports whether new predictions can be submitted.
func (c *Challenge) AcceptsPredictions(now time.Time) bool {
	return c.Status == StatusActive && now.Before(c.ClosesAt)
}

// Prediction is one user's answer to a challenge. PointsEarned stays nil
// until resolution.
type Prediction struct {
	ID              string    `json:"id"`
	ChallengeID     string    `json:"challenge_id"`
	UserID          string    `json:"user_id"`
	Value           string    `json:"prediction_value"`
	ConfidenceLevel float64   `json:"confidence_level"`
	PointsEarned    *float64  `json:"points_earned,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks prediction fields before submission.
func (p *Prediction) Validate() error {
	if p.Value == "" {
		return ErrEmptyPrediction
	}
	if p.ConfidenceLevel < 0 || p.ConfidenceLevel > 100 {
		return ErrInvalidConfidence
	}
	return nil
}

// Repository persists challenges and predictions.
type Repository interface {
	// CreateChallenge stores a new challenge.
	CreateChallenge(c *Challenge) error
	// GetChallenge retrieves a challenge by ID, or ErrChallengeNotFound.
	GetChallenge(id string) (*Challenge, error)
	// ListChallengesByStatus returns challenges in the given status.
	ListChallengesByStatus(status Status) ([]Challenge, error)
	// UpdateChallenge replaces a challenge's mutable resolution fields.
	UpdateChallenge(c *Challenge) error

	// CreatePrediction stores a prediction. At most one per (user,
	// challenge); a second submission returns ErrDuplicatePrediction.
	CreatePrediction(p *Prediction) error
	// ListPredictions returns all predictions for a challenge.
	ListPredictions(challengeID string) ([]Prediction, error)
	// SetPredictionPoints records a prediction's earned points.
	SetPredictionPoints(predictionID string, points float64) error
}
