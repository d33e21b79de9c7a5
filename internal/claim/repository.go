package claim

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the storage operations the scoring engine needs for
// claims, annotations, and votes. Persistence details (uniqueness on
// (voter, annotation), cascade on delete) live behind this boundary.
type Repository interface {
	// CreateClaim inserts a new claim with a generated UUID if none is set.
	CreateClaim(c *Claim) error

	// GetClaim retrieves a claim by ID. Returns ErrClaimNotFound if missing.
	GetClaim(id string) (*Claim, error)

	// ListClaimsByAuthor returns the author's claims, newest first, capped at limit.
	ListClaimsByAuthor(authorID string, limit int) ([]Claim, error)

	// ListRecentClaims returns the most recent claims across the platform,
	// newest first, capped at limit. Used as the originality corpus window.
	ListRecentClaims(limit int) ([]Claim, error)

	// UpdateScores writes the recomputed credibility score, label, and
	// annotation count, guarded by an optimistic version check. Returns
	// ErrStaleRecompute if the stored version no longer matches.
	UpdateScores(claimID string, score float64, label string, annotationCount, expectedVersion int) error

	// DeleteClaim removes a claim and cascades to its annotations and votes.
	DeleteClaim(id string) error

	// CreateAnnotation inserts a new annotation and bumps the claim version.
	CreateAnnotation(a *Annotation) error

	// GetAnnotation retrieves an annotation by ID.
	GetAnnotation(id string) (*Annotation, error)

	// ListAnnotations returns all annotations for a claim.
	ListAnnotations(claimID string) ([]Annotation, error)

	// CastVote records or changes a voter's helpfulness vote on an
	// annotation, updating the counts atomically. Returns ErrDuplicateVote
	// when the voter repeats an identical vote, and the claim version is
	// bumped on every successful count change.
	CastVote(v *Vote) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used in tests and as the storage fallback when no database is configured.
type InMemoryRepository struct {
	mu          sync.RWMutex
	claims      map[string]*Claim
	annotations map[string]*Annotation
	votes       map[string]*Vote // key: annotationID + "/" + voterID
}

// NewInMemoryRepository creates a new in-memory claim repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		claims:      make(map[string]*Claim),
		annotations: make(map[string]*Annotation),
		votes:       make(map[string]*Vote),
	}
}

// CreateClaim inserts a new claim with a generated UUID if none is set.
func (r *InMemoryRepository) CreateClaim(c *Claim) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	copied := *c
	r.claims[c.ID] = &copied
	return nil
}

// GetClaim retrieves a claim by ID.
func (r *InMemoryRepository) GetClaim(id string) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	copied := *c
	return &copied, nil
}

// ListClaimsByAuthor returns the author's claims, newest first.
func (r *InMemoryRepository) ListClaimsByAuthor(authorID string, limit int) ([]Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Claim
	for _, c := range r.claims {
		if c.AuthorID == authorID {
			result = append(result, *c)
		}
	}
	sortClaimsNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecentClaims returns the most recent claims, newest first.
func (r *InMemoryRepository) ListRecentClaims(limit int) ([]Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Claim, 0, len(r.claims))
	for _, c := range r.claims {
		result = append(result, *c)
	}
	sortClaimsNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateScores writes recomputed derived fields under an optimistic version check.
func (r *InMemoryRepository) UpdateScores(claimID string, score float64, label string, annotationCount, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[claimID]
	if !ok {
		return ErrClaimNotFound
	}
	if c.Version != expectedVersion {
		return ErrStaleRecompute
	}
	c.CredibilityScore = score
	c.TruthLabel = label
	c.AnnotationCount = annotationCount
	return nil
}

// DeleteClaim removes a claim and cascades to its annotations and votes.
func (r *InMemoryRepository) DeleteClaim(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[id]; !ok {
		return ErrClaimNotFound
	}
	delete(r.claims, id)

	for annID, ann := range r.annotations {
		if ann.ClaimID != id {
			continue
		}
		delete(r.annotations, annID)
		for key, v := range r.votes {
			if v.AnnotationID == annID {
				delete(r.votes, key)
			}
		}
	}
	return nil
}

// CreateAnnotation inserts a new annotation and bumps the claim version.
func (r *InMemoryRepository) CreateAnnotation(a *Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[a.ClaimID]
	if !ok {
		return ErrClaimNotFound
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	copied := *a
	r.annotations[a.ID] = &copied
	c.Version++
	return nil
}

// GetAnnotation retrieves an annotation by ID.
func (r *InMemoryRepository) GetAnnotation(id string) (*Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.annotations[id]
	if !ok {
		return nil, ErrAnnotationNotFound
	}
	copied := *a
	return &copied, nil
}

// ListAnnotations returns all annotations for a claim, oldest first.
func (r *InMemoryRepository) ListAnnotations(claimID string) ([]Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Annotation
	for _, a := range r.annotations {
		if a.ClaimID == claimID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CastVote records or changes a voter's vote, keeping counts consistent.
func (r *InMemoryRepository) CastVote(v *Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.annotations[v.AnnotationID]
	if !ok {
		return ErrAnnotationNotFound
	}

	key := v.AnnotationID + "/" + v.VoterID
	if existing, voted := r.votes[key]; voted {
		if existing.Helpful == v.Helpful {
			return ErrDuplicateVote
		}
		// Vote change: swap the counts instead of double-counting.
		if v.Helpful {
			a.HelpfulVotes++
			a.NotHelpfulVotes--
		} else {
			a.HelpfulVotes--
			a.NotHelpfulVotes++
		}
		existing.Helpful = v.Helpful
	} else {
		if v.Helpful {
			a.HelpfulVotes++
		} else {
			a.NotHelpfulVotes++
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now()
		}
		copied := *v
		r.votes[key] = &copied
	}

	if c, ok := r.claims[a.ClaimID]; ok {
		c.Version++
	}
	return nil
}

func sortClaimsNewestFirst(claims []Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].ID > claims[j].ID
		}
		return claims[i].CreatedAt.After(claims[j].CreatedAt)
	})
}
