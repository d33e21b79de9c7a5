package standing

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRecordStore implements RecordStore with in-memory storage.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]Record // userID -> records, append order
}

// NewInMemoryRecordStore creates a new in-memory record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[string][]Record),
	}
}

// AppendRecord stores a new record.
func (s *InMemoryRecordStore) AppendRecord(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.ComputedAt.IsZero() {
		r.ComputedAt = time.Now()
	}
	s.records[r.UserID] = append(s.records[r.UserID], *r)
	return nil
}

// ListRecent returns the user's most recent records, newest first.
func (s *InMemoryRecordStore) ListRecent(userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.records[userID]
	result := make([]Record, len(stored))
	copy(result, stored)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ComputedAt.After(result[j].ComputedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// InMemoryDataSource is an in-memory DataSource for testing.
type InMemoryDataSource struct {
	mu        sync.RWMutex
	snapshots map[string]UserSnapshot
}

// NewInMemoryDataSource creates a new in-memory data source.
func NewInMemoryDataSource() *InMemoryDataSource {
	return &InMemoryDataSource{
		snapshots: make(map[string]UserSnapshot),
	}
}

// SetSnapshot stores or replaces a user's snapshot.
func (s *InMemoryDataSource) SetSnapshot(snapshot UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.UserID] = snapshot
}

// UserSnapshot returns the user's snapshot.
func (s *InMemoryDataSource) UserSnapshot(userID string) (*UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &snapshot, nil
}
