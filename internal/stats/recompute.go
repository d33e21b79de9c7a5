// Package stats provides utilities for tracking scoring operation statistics.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// RecomputeStats tracks cumulative statistics for credibility recomputes.
// All operations are thread-safe using atomic counters.
type RecomputeStats struct {
	completed int64 // Recomputes that wrote a score
	retried   int64 // Attempts retried after losing the version race
	contended int64 // Recomputes abandoned after exhausting retries
}

// NewRecomputeStats creates a new RecomputeStats instance.
func NewRecomputeStats() *RecomputeStats {
	return &RecomputeStats{}
}

// RecordCompleted increments the completed counter.
func (s *RecomputeStats) RecordCompleted() {
	atomic.AddInt64(&s.completed, 1)
}

// RecordRetry increments the retried counter.
func (s *RecomputeStats) RecordRetry() {
	atomic.AddInt64(&s.retried, 1)
}

// RecordContended increments the contended counter.
func (s *RecomputeStats) RecordContended() {
	atomic.AddInt64(&s.contended, 1)
}

// Completed returns the total number of successful recomputes.
func (s *RecomputeStats) Completed() int64 {
	return atomic.LoadInt64(&s.completed)
}

// Retried returns the total number of stale-write retries.
func (s *RecomputeStats) Retried() int64 {
	return atomic.LoadInt64(&s.retried)
}

// Contended returns the total number of recomputes that gave up.
func (s *RecomputeStats) Contended() int64 {
	return atomic.LoadInt64(&s.contended)
}

// Reset resets all counters to zero.
func (s *RecomputeStats) Reset() {
	atomic.StoreInt64(&s.completed, 0)
	atomic.StoreInt64(&s.retried, 0)
	atomic.StoreInt64(&s.contended, 0)
}

// String returns a human-readable summary of the statistics.
func (s *RecomputeStats) String() string {
	return fmt.Sprintf("completed=%d retried=%d contended=%d", s.Completed(), s.Retried(), s.Contended())
}

// LogSummary logs a summary of recompute statistics at INFO level.
// Useful at shutdown or for periodic reporting.
func (s *RecomputeStats) LogSummary(logger *slog.Logger) {
	logger.Info("recompute statistics",
		"completed", s.Completed(),
		"retried", s.Retried(),
		"contended", s.Contended(),
	)
}
