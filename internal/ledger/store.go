package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore implements Store with in-memory storage.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryStore creates a new in-memory ledger store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds a new entry.
func (s *InMemoryStore) Append(e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now()
	}

	s.entries = append(s.entries, *e)
	return nil
}

// SumBySourceClaim returns the signed sum of entries for a source claim.
func (s *InMemoryStore) SumBySourceClaim(claimID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for i := range s.entries {
		if s.entries[i].SourceClaimID != nil && *s.entries[i].SourceClaimID == claimID {
			sum += s.entries[i].Delta
		}
	}
	return sum, nil
}

// SumByAnnotation returns total vote credit granted for an annotation.
func (s *InMemoryStore) SumByAnnotation(annotationID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for i := range s.entries {
		if s.entries[i].SourceAnnotationID != nil && *s.entries[i].SourceAnnotationID == annotationID {
			sum += s.entries[i].Delta
		}
	}
	return sum, nil
}

// Balance returns the sum of all the user's entries.
func (s *InMemoryStore) Balance(userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for i := range s.entries {
		if s.entries[i].UserID == userID {
			sum += s.entries[i].Delta
		}
	}
	return sum, nil
}

// ListByUser returns the user's entries, newest first.
func (s *InMemoryStore) ListByUser(userID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for i := range s.entries {
		if s.entries[i].UserID == userID {
			result = append(result, s.entries[i])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AppliedAt.After(result[j].AppliedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
