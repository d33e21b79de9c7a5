package challenge

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu          sync.RWMutex
	challenges  map[string]*Challenge
	predictions map[string]*Prediction
	byUser      map[string]string // challengeID+"/"+userID -> predictionID
}

// NewInMemoryRepository creates a new in-memory challenge repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		challenges:  make(map[string]*Challenge),
		predictions: make(map[string]*Prediction),
		byUser:      make(map[string]string),
	}
}

// CreateChallenge stores a new challenge.
func (r *InMemoryRepository) CreateChallenge(c *Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = StatusActive
	}

	copied := *c
	copied.Options = append([]string(nil), c.Options...)
	r.challenges[c.ID] = &copied
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (r *InMemoryRepository) GetChallenge(id string) (*Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	copied := *c
	copied.Options = append([]string(nil), c.Options...)
	return &copied, nil
}

// ListChallengesByStatus returns challenges in the given status.
func (r *InMemoryRepository) ListChallengesByStatus(status Status) ([]Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Challenge
	for _, c := range r.challenges {
		if c.Status == status {
			copied := *c
			copied.Options = append([]string(nil), c.Options...)
			result = append(result, copied)
		}
	}
	return result, nil
}

// UpdateChallenge replaces a challenge's mutable resolution fields.
func (r *InMemoryRepository) UpdateChallenge(c *Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.challenges[c.ID]
	if !ok {
		return ErrChallengeNotFound
	}
	existing.Status = c.Status
	existing.ActualOutcome = c.ActualOutcome
	existing.ResolutionExplanation = c.ResolutionExplanation
	existing.ResolvedAt = c.ResolvedAt
	return nil
}

// CreatePrediction stores a prediction, enforcing one per (user, challenge).
func (r *InMemoryRepository) CreatePrediction(p *Prediction) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.challenges[p.ChallengeID]; !ok {
		return ErrChallengeNotFound
	}
	key := p.ChallengeID + "/" + p.UserID
	if _, exists := r.byUser[key]; exists {
		return ErrDuplicatePrediction
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	copied := *p
	r.predictions[p.ID] = &copied
	r.byUser[key] = p.ID
	return nil
}

// ListPredictions returns all predictions for a challenge.
func (r *InMemoryRepository) ListPredictions(challengeID string) ([]Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Prediction
	for _, p := range r.predictions {
		if p.ChallengeID == challengeID {
			result = append(result, *p)
		}
	}
	return result, nil
}

// SetPredictionPoints records a prediction's earned points.
func (r *InMemoryRepository) SetPredictionPoints(predictionID string, points float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.predictions[predictionID]
	if !ok {
		return ErrPredictionNotFound
	}
	p.PointsEarned = &points
	return nil
}
