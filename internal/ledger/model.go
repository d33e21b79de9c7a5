// Package ledger maintains each user's reputation as an append-only log of
// signed deltas. The ledger, not the scalar reputation score, is the source
// of truth: any boost a claim produced can be undone exactly by a single
// compensating entry, and the running balance is always the sum of entries.
package ledger

import (
	"errors"
	"time"
)

// Entry reasons.
const (
	ReasonBaselineBoost = "baseline_boost"
	ReasonVoteCredit    = "vote_credit"
	ReasonReversal      = "reversal"
)

// Common errors for ledger operations.
var (
	ErrInvalidReason = errors.New("invalid ledger entry reason")
	ErrMissingUser   = errors.New("ledger entry requires a user id")
)

// ValidReason checks if a reason string is one of the known entry reasons.
func ValidReason(reason string) bool {
	switch reason {
	case ReasonBaselineBoost, ReasonVoteCredit, ReasonReversal:
		return true
	}
	return false
}

// Entry is one signed reputation delta. SourceClaimID links entries that a
// claim deletion must undo; it is nil for vote credits, which belong to the
// annotation author and survive deletion of the annotated claim (a reversal
// is a single entry for a single user, so only the claim author's own
// entries may carry the claim reference). SourceAnnotationID exists to bound
// per-annotation vote-credit farming.
type Entry struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	SourceClaimID      *string   `json:"source_claim_id,omitempty"`
	SourceAnnotationID *string   `json:"source_annotation_id,omitempty"`
	Delta              float64   `json:"delta"`
	Reason             string    `json:"reason"`
	AppliedAt          time.Time `json:"applied_at"`
}

// Validate checks entry invariants before append.
func (e *Entry) Validate() error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	if !ValidReason(e.Reason) {
		return ErrInvalidReason
	}
	return nil
}

// Store persists ledger entries. Appends only; entries are never mutated or
// deleted, which is what makes concurrent writes safe and reversal exact.
type Store interface {
	// Append adds a new entry. The entry ID is generated if empty.
	Append(e *Entry) error

	// SumBySourceClaim returns the signed sum of all entries carrying the
	// given source claim, including any reversal already applied.
	SumBySourceClaim(claimID string) (float64, error)

	// SumByAnnotation returns the total vote credit already granted for an
	// annotation, used to enforce the per-annotation credit bound.
	SumByAnnotation(annotationID string) (float64, error)

	// Balance returns the user's reputation: the sum of all their entries.
	Balance(userID string) (float64, error)

	// ListByUser returns the user's entries, newest first, capped at limit.
	ListByUser(userID string, limit int) ([]Entry, error)
}
