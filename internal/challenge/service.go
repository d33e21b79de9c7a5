package challenge

import (
	"fmt"
	"log/slog"
	"time"
)

// PredictionScore is one prediction's resolution outcome.
type PredictionScore struct {
	PredictionID string  `json:"prediction_id"`
	UserID       string  `json:"user_id"`
	PointsEarned float64 `json:"points_earned"`
	Exact        bool    `json:"exact"`
}

// Resolution summarizes a resolved challenge, including community-level
// engagement metrics.
type Resolution struct {
	ChallengeID        string            `json:"challenge_id"`
	ActualOutcome      string            `json:"actual_outcome"`
	Explanation        string            `json:"explanation,omitempty"`
	ResolvedAt         time.Time         `json:"resolved_at"`
	CommunityAccuracy  float64           `json:"community_accuracy"`
	TotalPredictions   int               `json:"total_predictions"`
	UniqueParticipants int               `json:"unique_participants"`
	Scores             []PredictionScore `json:"scores"`
}

// StandingNotifier marks users whose engagement stats changed so standing
// gets recomputed. Only predictors are ever marked; resolution never touches
// the challenge creator or any claim.
type StandingNotifier interface {
	MarkDirty(userID string)
}

// Service coordinates the challenge lifecycle.
type Service struct {
	repo     Repository
	scorer   ScorerConfig
	standing StandingNotifier
	logger   *slog.Logger
}

// NewService creates a challenge service. standing may be nil.
func NewService(repo Repository, scorer ScorerConfig, standing StandingNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		scorer:   scorer,
		standing: standing,
		logger:   logger,
	}
}

// Create opens a new challenge with default windows when none are given.
func (s *Service) Create(c *Challenge) error {
	now := time.Now()
	if c.ClosesAt.IsZero() {
		c.ClosesAt = now.Add(DefaultDurationHours * time.Hour)
	}
	if c.ResolveAt.IsZero() {
		c.ResolveAt = now.Add(DefaultResolveHours * time.Hour)
	}
	c.Status = StatusActive
	return s.repo.CreateChallenge(c)
}

// SubmitPrediction records a user's prediction on an active challenge.
func (s *Service) SubmitPrediction(p *Prediction) error {
	c, err := s.repo.GetChallenge(p.ChallengeID)
	if err != nil {
		return err
	}
	if !c.AcceptsPredictions(time.Now()) {
		return ErrChallengeNotActive
	}
	return s.repo.CreatePrediction(p)
}

// Resolve scores every prediction against the actual outcome and marks the
// challenge resolved. Only predictors' engagement stats are affected.
func (s *Service) Resolve(challengeID, actualOutcome, explanation string) (*Resolution, error) {
	c, err := s.repo.GetChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusResolved || c.Status == StatusExpired {
		return nil, ErrAlreadyResolved
	}

	predictions, err := s.repo.ListPredictions(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	resolution := &Resolution{
		ChallengeID:   challengeID,
		ActualOutcome: actualOutcome,
		Explanation:   explanation,
		ResolvedAt:    time.Now(),
	}

	exactCount := 0
	participants := make(map[string]struct{})
	for _, p := range predictions {
		points := s.scorer.Score(p.Value, actualOutcome, p.ConfidenceLevel)
		if err := s.repo.SetPredictionPoints(p.ID, points); err != nil {
			return nil, fmt.Errorf("failed to record prediction points: %w", err)
		}

		exact := p.Value == actualOutcome
		if exact {
			exactCount++
		}
		participants[p.UserID] = struct{}{}
		if s.standing != nil {
			s.standing.MarkDirty(p.UserID)
		}

		resolution.Scores = append(resolution.Scores, PredictionScore{
			PredictionID: p.ID,
			UserID:       p.UserID,
			PointsEarned: points,
			Exact:        exact,
		})
	}

	resolution.TotalPredictions = len(predictions)
	resolution.UniqueParticipants = len(participants)
	if len(predictions) > 0 {
		resolution.CommunityAccuracy = float64(exactCount) / float64(len(predictions))
	}

	c.Status = StatusResolved
	c.ActualOutcome = actualOutcome
	c.ResolutionExplanation = explanation
	c.ResolvedAt = resolution.ResolvedAt
	if err := s.repo.UpdateChallenge(c); err != nil {
		return nil, fmt.Errorf("failed to mark challenge resolved: %w", err)
	}

	s.logger.Info("challenge resolved",
		"challenge_id", challengeID,
		"predictions", resolution.TotalPredictions,
		"community_accuracy", resolution.CommunityAccuracy)

	return resolution, nil
}

// Close moves active challenges past their close time into the closed state.
func (s *Service) Close(now time.Time) (int, error) {
	active, err := s.repo.ListChallengesByStatus(StatusActive)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range active {
		if now.Before(active[i].ClosesAt) {
			continue
		}
		active[i].Status = StatusClosed
		if err := s.repo.UpdateChallenge(&active[i]); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// ExpireOverdue expires closed challenges past their resolve deadline that
// never got a resolution. Expired challenges award no points, preserving
// integrity over guesswork.
func (s *Service) ExpireOverdue(now time.Time) (int, error) {
	closed, err := s.repo.ListChallengesByStatus(StatusClosed)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range closed {
		if now.Before(closed[i].ResolveAt) {
			continue
		}
		closed[i].Status = StatusExpired
		if err := s.repo.UpdateChallenge(&closed[i]); err != nil {
			return expired, err
		}
		expired++
		s.logger.Info("challenge expired unresolved", "challenge_id", closed[i].ID)
	}
	return expired, nil
}
