package standing

import (
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Classifier defaults.
const (
	// DefaultEMAWindow is the number of recent records the smoothed score
	// spans.
	DefaultEMAWindow = 3
	// DefaultMinTenureDays keeps brand-new accounts in the emerging tier
	// regardless of score.
	DefaultMinTenureDays = 7
	// DefaultCacheTTL bounds how stale a cached standing signal may be.
	DefaultCacheTTL = 2 * time.Minute

	// trendEpsilon is the minimum score movement between the last two
	// records before the trend leaves "stable".
	trendEpsilon = 0.1
)

// Config holds classifier tuning. Thresholds apply to the smoothed score.
type Config struct {
	ConsistentThreshold  float64
	EstablishedThreshold float64
	ExpertThreshold      float64
	TrustedThreshold     float64
	EMAWindow            int
	MinTenureDays        int
	CacheTTL             time.Duration
}

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{
		ConsistentThreshold:  DefaultConsistentThreshold,
		EstablishedThreshold: DefaultEstablishedThreshold,
		ExpertThreshold:      DefaultExpertThreshold,
		TrustedThreshold:     DefaultTrustedThreshold,
		EMAWindow:            DefaultEMAWindow,
		MinTenureDays:        DefaultMinTenureDays,
		CacheTTL:             DefaultCacheTTL,
	}
}

// Classifier computes standing signals from user snapshots and the append-only
// record history.
type Classifier struct {
	source  DataSource
	records RecordStore
	config  Config
	cache   *gocache.Cache
	logger  *slog.Logger
}

// NewClassifier creates a standing classifier with a short-TTL read cache.
func NewClassifier(source DataSource, records RecordStore, config Config, logger *slog.Logger) *Classifier {
	if config.EMAWindow <= 0 {
		config.EMAWindow = DefaultEMAWindow
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		source:  source,
		records: records,
		config:  config,
		cache:   gocache.New(config.CacheTTL, 2*config.CacheTTL),
		logger:  logger,
	}
}

// Standing returns the user's current standing signal, serving from the
// short-TTL cache when fresh enough. A cache miss recomputes and appends a
// new record.
func (c *Classifier) Standing(userID string) (*Signal, error) {
	if cached, found := c.cache.Get(userID); found {
		return cached.(*Signal), nil
	}
	return c.Recompute(userID)
}

// Recompute computes a fresh standing record for the user, appends it to the
// record history, and returns the derived signal. The cache entry is
// replaced.
func (c *Classifier) Recompute(userID string) (*Signal, error) {
	snapshot, err := c.source.UserSnapshot(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user snapshot: %w", err)
	}

	now := time.Now()
	record := &Record{
		UserID:                userID,
		ContentQuality:        ContentQualityMetric(snapshot.AvgClaimCredibility),
		EngagementConsistency: EngagementMetric(snapshot.ClaimsPosted, snapshot.AnnotationsAdded),
		Originality:           OriginalityMetric(snapshot.AvgOriginality, snapshot.ClaimsPosted),
		CommunityFeedback:     FeedbackMetric(snapshot.HelpfulVotesReceived, snapshot.NotHelpfulVotesReceived, snapshot.AnnotationsAdded),
		Tenure:                TenureMetric(snapshot.CreatedAt, now),
		ComputedAt:            now,
	}
	for _, m := range record.Metrics() {
		record.OverallScore += m.Contribution
	}

	previous, err := c.records.ListRecent(userID, c.config.EMAWindow-1)
	if err != nil {
		return nil, fmt.Errorf("failed to load standing history: %w", err)
	}

	smoothed := c.smoothedScore(previous, record.OverallScore)
	record.Tier = c.tierFor(smoothed, snapshot.CreatedAt, now)

	if err := c.records.AppendRecord(record); err != nil {
		return nil, fmt.Errorf("failed to append standing record: %w", err)
	}

	signal := &Signal{
		UserID:          userID,
		Tier:            record.Tier,
		OverallScore:    record.OverallScore,
		SmoothedScore:   smoothed,
		Metrics:         record.Metrics(),
		TenureMonths:    tenureMonths(snapshot.CreatedAt, now),
		Trend:           trendFrom(previous, record.OverallScore),
		NextMilestone:   c.milestone(record, smoothed, previous),
		ReachMultiplier: ReachMultiplier(record.Tier, record.OverallScore),
		ComputedAt:      now,
	}
	c.cache.Set(userID, signal, c.config.CacheTTL)

	c.logger.Debug("standing recomputed",
		"user_id", userID,
		"tier", record.Tier,
		"overall_score", record.OverallScore,
		"smoothed_score", smoothed)

	return signal, nil
}

// Invalidate drops the cached signal so the next read recomputes.
func (c *Classifier) Invalidate(userID string) {
	c.cache.Delete(userID)
}

// smoothedScore folds the current score into an exponential moving average
// over the most recent records. previous is newest first.
func (c *Classifier) smoothedScore(previous []Record, current float64) float64 {
	if len(previous) == 0 {
		return current
	}
	alpha := 2.0 / (float64(c.config.EMAWindow) + 1.0)
	// Seed from the oldest record and fold forward in time.
	ema := previous[len(previous)-1].OverallScore
	for i := len(previous) - 2; i >= 0; i-- {
		ema = alpha*previous[i].OverallScore + (1-alpha)*ema
	}
	return alpha*current + (1-alpha)*ema
}

// tierFor maps a smoothed score to a tier. Accounts younger than the minimum
// tenure stay emerging regardless of score.
func (c *Classifier) tierFor(smoothed float64, createdAt, now time.Time) Tier {
	if now.Sub(createdAt) < time.Duration(c.config.MinTenureDays)*24*time.Hour {
		return TierEmerging
	}
	switch {
	case smoothed >= c.config.TrustedThreshold:
		return TierTrusted
	case smoothed >= c.config.ExpertThreshold:
		return TierExpert
	case smoothed >= c.config.EstablishedThreshold:
		return TierEstablished
	case smoothed >= c.config.ConsistentThreshold:
		return TierConsistent
	default:
		return TierEmerging
	}
}

// tierThreshold returns the lower bound of a tier.
func (c *Classifier) tierThreshold(t Tier) float64 {
	switch t {
	case TierConsistent:
		return c.config.ConsistentThreshold
	case TierEstablished:
		return c.config.EstablishedThreshold
	case TierExpert:
		return c.config.ExpertThreshold
	case TierTrusted:
		return c.config.TrustedThreshold
	default:
		return 0
	}
}

// milestone estimates the gap and time to the next tier from the user's
// recent score velocity. Returns nil at the top tier.
func (c *Classifier) milestone(record *Record, smoothed float64, previous []Record) *Milestone {
	next, ok := NextTier(record.Tier)
	if !ok {
		return nil
	}

	gap := c.tierThreshold(next) - smoothed
	if gap < 0 {
		gap = 0
	}

	m := &Milestone{
		NextTier:    next,
		ScoreNeeded: gap,
	}

	for _, metric := range record.Metrics() {
		if metric.Value < 70 {
			m.FocusAreas = append(m.FocusAreas, metric.Name)
		}
	}

	// Velocity in score points per day over the recent window. Flat or
	// declining users get no estimate.
	if len(previous) > 0 && gap > 0 {
		oldest := previous[len(previous)-1]
		days := record.ComputedAt.Sub(oldest.ComputedAt).Hours() / 24.0
		if days >= 1 {
			velocity := (record.OverallScore - oldest.OverallScore) / days
			if velocity > 0 {
				m.EstimatedDays = int(gap/velocity) + 1
			}
		}
	}

	return m
}

// trendFrom derives the trend by comparing the current score against the
// most recent prior record. previous is newest first.
func trendFrom(previous []Record, current float64) string {
	if len(previous) == 0 {
		return TrendStable
	}
	delta := current - previous[0].OverallScore
	switch {
	case delta > trendEpsilon:
		return TrendImproving
	case delta < -trendEpsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func tenureMonths(createdAt, now time.Time) int {
	months := int(now.Sub(createdAt).Hours() / 24 / 30)
	if months < 0 {
		return 0
	}
	return months
}

// ContentQualityMetric maps the user's average claim credibility to the
// content quality metric with a slight uplift, capped at 100.
func ContentQualityMetric(avgCredibility float64) float64 {
	return clampScore(avgCredibility * 1.2)
}

// EngagementMetric scores contribution regularity: a volume ladder, a bonus
// for contributing both claims and annotations, and a bonus for balance
// between the two.
func EngagementMetric(claimsPosted, annotationsAdded int) float64 {
	total := claimsPosted + annotationsAdded
	if total == 0 {
		return 30.0
	}

	var score float64
	switch {
	case total >= 50:
		score = 40.0
	case total >= 20:
		score = 30.0
	case total >= 10:
		score = 20.0
	case total >= 5:
		score = 15.0
	default:
		score = 5.0
	}

	if claimsPosted > 0 && annotationsAdded > 0 {
		score += 30.0
		lo, hi := claimsPosted, annotationsAdded
		if lo > hi {
			lo, hi = hi, lo
		}
		score += float64(lo) / float64(hi) * 20.0
	} else if annotationsAdded > 0 {
		score += 15.0
	}

	return clampScore(score)
}

// OriginalityMetric maps the average originality of authored claims onto the
// metric, with a bonus for sustained high originality. Users with no claims
// read neutral.
func OriginalityMetric(avgOriginality float64, claimsPosted int) float64 {
	if claimsPosted == 0 {
		return 50.0
	}
	score := avgOriginality
	if avgOriginality > 80 {
		score += 15.0
	} else if avgOriginality > 60 {
		score += 10.0
	}
	return clampScore(score)
}

// FeedbackMetric scores the helpful-vote ratio on the user's annotations
// with a small bonus for significant vote volume. No annotations or no votes
// read neutral.
func FeedbackMetric(helpfulVotes, notHelpfulVotes, annotationsAdded int) float64 {
	if annotationsAdded == 0 {
		return 50.0
	}
	totalVotes := helpfulVotes + notHelpfulVotes
	if totalVotes == 0 {
		return 50.0
	}

	score := float64(helpfulVotes) / float64(totalVotes) * 100.0
	if totalVotes >= 50 {
		score += 10.0
	} else if totalVotes >= 20 {
		score += 5.0
	}
	return clampScore(score)
}

// TenureMetric scores account age on a ladder that rises quickly through the
// first year and caps at 100.
func TenureMetric(createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24.0
	switch {
	case ageDays < 7:
		return 20.0
	case ageDays < 30:
		return 30.0
	case ageDays < 90:
		return 50.0
	case ageDays < 180:
		return 70.0
	case ageDays < 365:
		return 85.0
	default:
		extra := ageDays / 365.0
		if extra > 5 {
			extra = 5
		}
		return 95.0 + extra
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
