package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thrryv/engine/internal/evaluator"
	"github.com/thrryv/engine/internal/idempotency"
)

// Default boost-curve and credit constants. The boost is conservative and
// non-punitive: content below the threshold earns nothing, never a penalty.
const (
	DefaultBoostThreshold = 50.0
	DefaultMinBoost       = 5.0
	DefaultMaxBoost       = 15.0

	// Vote credit: 1 point base, plus an aging-well bonus for annotations
	// that keep collecting helpful votes over time, maxing out at 30 days.
	DefaultVoteCreditBase      = 1.0
	DefaultVoteCreditAgingMax  = 2.0
	DefaultVoteCreditAgingDays = 30

	// DefaultMaxCreditPerAnnotation bounds total vote credit a single
	// annotation can produce, to prevent unbounded farming.
	DefaultMaxCreditPerAnnotation = 25.0
)

// Config holds the tunable boost and credit parameters.
type Config struct {
	BoostThreshold         float64
	MinBoost               float64
	MaxBoost               float64
	VoteCreditBase         float64
	VoteCreditAgingMax     float64
	VoteCreditAgingDays    int
	MaxCreditPerAnnotation float64
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{
		BoostThreshold:         DefaultBoostThreshold,
		MinBoost:               DefaultMinBoost,
		MaxBoost:               DefaultMaxBoost,
		VoteCreditBase:         DefaultVoteCreditBase,
		VoteCreditAgingMax:     DefaultVoteCreditAgingMax,
		VoteCreditAgingDays:    DefaultVoteCreditAgingDays,
		MaxCreditPerAnnotation: DefaultMaxCreditPerAnnotation,
	}
}

// BoostResult reports what a creation boost applied.
type BoostResult struct {
	Delta             float64 `json:"delta"`
	QualifiesForBoost bool    `json:"qualifies_for_boost"`
}

// Ledger applies and reverses reputation deltas.
type Ledger struct {
	store  Store
	keys   idempotency.Repository
	config Config
	logger *slog.Logger
}

// New creates a Ledger over the given store and idempotency key repository.
func New(store Store, keys idempotency.Repository, config Config, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		keys:   keys,
		config: config,
		logger: logger,
	}
}

// BoostCurve maps an average evaluation score to a boost delta. Scores below
// the threshold earn zero; above it the boost scales linearly from MinBoost
// at the threshold to MaxBoost at 100, clamped to that range. The result is
// never negative for any input.
func (l *Ledger) BoostCurve(avgScore float64) float64 {
	if avgScore < l.config.BoostThreshold {
		return 0
	}
	scoreRange := 100.0 - l.config.BoostThreshold
	if scoreRange <= 0 {
		return l.config.MaxBoost
	}
	normalized := (avgScore - l.config.BoostThreshold) / scoreRange
	boost := l.config.MinBoost + normalized*(l.config.MaxBoost-l.config.MinBoost)
	if boost < l.config.MinBoost {
		boost = l.config.MinBoost
	}
	if boost > l.config.MaxBoost {
		boost = l.config.MaxBoost
	}
	return boost
}

// ApplyBaselineBoost records the creation-time reputation boost for a claim.
// A nil eval means the external evaluator was unavailable: the claim is
// still recorded with a zero delta (fail-open), because content creation is
// never blocked by evaluator health.
func (l *Ledger) ApplyBaselineBoost(userID, claimID string, eval *evaluator.Scores) (*BoostResult, error) {
	var delta float64
	qualifies := false

	if eval != nil {
		delta = l.BoostCurve(eval.Average())
		qualifies = delta > 0
	} else {
		l.logger.Warn("evaluator unavailable, recording zero baseline boost",
			"user_id", userID,
			"claim_id", claimID)
	}

	entry := &Entry{
		UserID:        userID,
		SourceClaimID: &claimID,
		Delta:         delta,
		Reason:        ReasonBaselineBoost,
	}
	if err := l.store.Append(entry); err != nil {
		return nil, fmt.Errorf("failed to record baseline boost: %w", err)
	}

	l.logger.Info("baseline boost applied",
		"user_id", userID,
		"claim_id", claimID,
		"delta", delta,
		"qualifies", qualifies)

	return &BoostResult{Delta: delta, QualifiesForBoost: qualifies}, nil
}

// Reverse undoes everything a claim contributed to its author's reputation
// by appending one compensating entry with the negated sum. It is keyed by
// (claim, reason) so retried or concurrent delete requests are no-ops that
// return the originally reversed delta. A claim that produced zero boost
// reverses to a zero-delta entry.
func (l *Ledger) Reverse(userID, claimID string) (float64, error) {
	key := idempotency.ReversalKey(claimID, ReasonReversal)

	if existing, err := l.keys.Get(key); err == nil {
		l.logger.Debug("reversal already applied",
			"claim_id", claimID,
			"delta_reversed", existing.Result)
		return existing.Result, nil
	} else if !errors.Is(err, idempotency.ErrKeyNotFound) {
		return 0, fmt.Errorf("failed to check reversal key: %w", err)
	}

	sum, err := l.store.SumBySourceClaim(claimID)
	if err != nil {
		return 0, err
	}

	entry := &Entry{
		UserID:        userID,
		SourceClaimID: &claimID,
		Delta:         -sum,
		Reason:        ReasonReversal,
	}
	if err := l.store.Append(entry); err != nil {
		return 0, fmt.Errorf("failed to append reversal entry: %w", err)
	}

	record := &idempotency.Key{Key: key, Operation: ReasonReversal, Result: -sum}
	if err := l.keys.Store(record); err != nil && !errors.Is(err, idempotency.ErrKeyExists) {
		// The reversal itself landed; a failed key write only risks a
		// duplicate attempt, which the next Get will not catch. Surface it.
		return -sum, fmt.Errorf("reversal applied but key write failed: %w", err)
	}

	l.logger.Info("claim boost reversed",
		"user_id", userID,
		"claim_id", claimID,
		"delta_reversed", -sum)

	return -sum, nil
}

// CreditHelpfulVote grants the annotation author a small positive delta when
// their annotation accrues a net-helpful vote. Older annotations that are
// still collecting helpful votes earn an aging-well bonus. Total credit per
// annotation is bounded.
func (l *Ledger) CreditHelpfulVote(authorID, annotationID string, annotationCreatedAt time.Time) (float64, error) {
	granted, err := l.store.SumByAnnotation(annotationID)
	if err != nil {
		return 0, err
	}
	if granted >= l.config.MaxCreditPerAnnotation {
		l.logger.Debug("annotation vote credit cap reached",
			"annotation_id", annotationID,
			"granted", granted)
		return 0, nil
	}

	daysOld := time.Since(annotationCreatedAt).Hours() / 24.0
	if daysOld < 0 {
		daysOld = 0
	}
	agingBonus := daysOld / (float64(l.config.VoteCreditAgingDays) / l.config.VoteCreditAgingMax)
	if agingBonus > l.config.VoteCreditAgingMax {
		agingBonus = l.config.VoteCreditAgingMax
	}

	delta := l.config.VoteCreditBase + agingBonus
	if granted+delta > l.config.MaxCreditPerAnnotation {
		delta = l.config.MaxCreditPerAnnotation - granted
	}

	entry := &Entry{
		UserID:             authorID,
		SourceAnnotationID: &annotationID,
		Delta:              delta,
		Reason:             ReasonVoteCredit,
	}
	if err := l.store.Append(entry); err != nil {
		return 0, fmt.Errorf("failed to record vote credit: %w", err)
	}

	return delta, nil
}

// Balance returns the user's current reputation score.
func (l *Ledger) Balance(userID string) (float64, error) {
	return l.store.Balance(userID)
}
