package standing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DirtyTracker tracks which users have pending activity that requires a
// standing recomputation. Thread-safe via RWMutex.
type DirtyTracker struct {
	mu         sync.RWMutex
	dirtyFlags map[string]time.Time // userID -> time marked dirty
}

// NewDirtyTracker creates a new DirtyTracker instance.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirtyFlags: make(map[string]time.Time),
	}
}

// MarkDirty marks a user as needing standing recomputation.
func (t *DirtyTracker) MarkDirty(userID string) {
	t.mu.Lock()
	t.dirtyFlags[userID] = time.Now()
	t.mu.Unlock()
}

// ClearDirty removes the dirty flag for a user after recomputation.
func (t *DirtyTracker) ClearDirty(userID string) {
	t.mu.Lock()
	delete(t.dirtyFlags, userID)
	t.mu.Unlock()
}

// GetDirtyUsers returns a list of user IDs that are marked dirty.
func (t *DirtyTracker) GetDirtyUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.dirtyFlags))
	for userID := range t.dirtyFlags {
		users = append(users, userID)
	}
	return users
}

// IsDirty checks if a specific user is marked as dirty.
func (t *DirtyTracker) IsDirty(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.dirtyFlags[userID]
	return exists
}

// DirtyCount returns the number of users marked as dirty.
func (t *DirtyTracker) DirtyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirtyFlags)
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// DefaultRecomputeInterval is the default interval between recompute cycles.
const DefaultRecomputeInterval = 60 * time.Second

// DefaultRecomputeTimeout is the default timeout for a single recompute cycle.
const DefaultRecomputeTimeout = 30 * time.Second

const jobTypeStandingRecompute = "standing_recompute"

// RecomputeJobConfig configures the standing recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
	// Timeout for each recompute cycle.
	Timeout time.Duration
}

// RecomputeJob periodically recomputes standing for users with recent
// activity.
type RecomputeJob struct {
	config       RecomputeJobConfig
	dirtyTracker *DirtyTracker
	classifier   *Classifier

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a new standing recompute job.
func NewRecomputeJob(config RecomputeJobConfig, dirtyTracker *DirtyTracker, classifier *Classifier) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}

	return &RecomputeJob{
		config:       config,
		dirtyTracker: dirtyTracker,
		classifier:   classifier,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the recompute job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the recompute job.
func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("standing recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("standing recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.recomputeDirtyUsers(ctx)
		}
	}
}

// recomputeDirtyUsers processes all dirty users and refreshes their standing
// records.
func (j *RecomputeJob) recomputeDirtyUsers(parentCtx context.Context) {
	dirtyUsers := j.dirtyTracker.GetDirtyUsers()
	if len(dirtyUsers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	userCount := len(dirtyUsers)
	var successCount int

	j.config.Logger.Info("recomputing standing",
		"dirty_count", userCount)

	for i, userID := range dirtyUsers {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("standing recompute timeout exceeded",
				"processed", i,
				"total", userCount,
				"timeout", j.config.Timeout)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeStandingRecompute, "timeout")
			}
			j.finishCycle(startTime, successCount, userCount)
			return
		default:
		}

		if _, err := j.classifier.Recompute(userID); err != nil {
			j.config.Logger.Error("failed to recompute standing",
				"user_id", userID,
				"error", err)
			if j.config.Metrics != nil {
				j.config.Metrics.IncRecomputeErrors()
			}
			if j.config.JobMetrics != nil {
				j.config.JobMetrics.IncJobErrors(jobTypeStandingRecompute, "recompute_error")
			}
			continue
		}

		j.dirtyTracker.ClearDirty(userID)
		successCount++

		// Log batch progress every 10 users
		if (i+1)%10 == 0 {
			j.config.Logger.Debug("recompute progress",
				"processed", i+1,
				"total", userCount)
		}
	}

	j.finishCycle(startTime, successCount, userCount)
}

// finishCycle records cycle metrics and the completion log.
func (j *RecomputeJob) finishCycle(startTime time.Time, successCount, userCount int) {
	duration := time.Since(startTime).Seconds()

	status := "success"
	if successCount < userCount {
		status = "failure"
	}

	if j.config.Metrics != nil {
		j.config.Metrics.IncRecomputeTotal()
		j.config.Metrics.ObserveRecomputeDuration(duration)
		j.config.Metrics.SetLastRecomputeTimestamp(float64(time.Now().Unix()))
		j.config.Metrics.SetLastRecomputeUserCount(float64(successCount))
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobTypeStandingRecompute, status)
		j.config.JobMetrics.ObserveJobDuration(jobTypeStandingRecompute, duration)
	}

	j.config.Logger.Info("standing recompute completed",
		"duration_seconds", duration,
		"users_processed", successCount,
		"users_failed", userCount-successCount)
}

// RecomputeNow immediately recomputes all dirty users without waiting for
// the ticker.
func (j *RecomputeJob) RecomputeNow() {
	j.recomputeDirtyUsers(context.Background())
}
