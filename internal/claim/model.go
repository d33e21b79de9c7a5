// Package claim provides models and repositories for claims, annotations,
// and annotation votes, plus the signal aggregation that feeds credibility
// scoring.
package claim

import (
	"errors"
	"time"

	"github.com/thrryv/engine/internal/validate"
)

// AnnotationType classifies how an annotation relates to its claim.
const (
	TypeSupport    = "support"
	TypeContradict = "contradict"
	TypeContext    = "context"
)

// MaxTextLength is the maximum allowed length for claim and annotation text.
const MaxTextLength = validate.MaxClaimTextLength

// Common errors for claim operations.
var (
	ErrClaimNotFound      = errors.New("claim not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrInvalidType        = errors.New("invalid annotation type: must be support, contradict, or context")
	ErrEmptyText          = errors.New("text must not be empty")
	ErrTextTooLong        = errors.New("text exceeds maximum length")
	ErrDuplicateVote      = errors.New("voter already cast this vote on the annotation")
	ErrStaleRecompute     = errors.New("claim score version changed during recompute")
	ErrInvalidConfidence  = errors.New("confidence level must be between 0 and 100")
)

// ValidType checks if an annotation type string is valid.
func ValidType(t string) bool {
	switch t {
	case TypeSupport, TypeContradict, TypeContext:
		return true
	}
	return false
}

// Claim represents a short post whose text is immutable after creation.
// Derived fields (credibility, label, annotation count) are recomputed by the
// scoring engine; the originality fields are frozen at creation time.
type Claim struct {
	ID                 string  `json:"id"`
	Text               string  `json:"text"`
	AuthorID           string  `json:"author_id"`
	Domain             string  `json:"domain,omitempty"`
	ConfidenceLevel    int     `json:"confidence_level"` // Author's stated self-confidence (0-100)
	CredibilityScore   float64 `json:"credibility_score"`
	TruthLabel         string  `json:"truth_label"`
	OriginalityScore   float64 `json:"originality_score"`
	NoveltyLevel       string  `json:"novelty_level,omitempty"`
	OriginalityBoosted bool    `json:"originality_boosted,omitempty"`
	AnnotationCount    int     `json:"annotation_count"`

	// Version guards derived-score writes. Every annotation or vote mutation
	// bumps it; a recompute that observed an older version must retry.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks claim invariants at creation time.
func (c *Claim) Validate() error {
	if err := validateText(c.Text); err != nil {
		return err
	}
	if c.ConfidenceLevel < 0 || c.ConfidenceLevel > 100 {
		return ErrInvalidConfidence
	}
	return nil
}

// validateText maps the shared text constraints onto this package's
// sentinel errors.
func validateText(text string) error {
	_, err := validate.ClaimText(text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, validate.ErrEmpty):
		return ErrEmptyText
	case errors.Is(err, validate.ErrStringTooLong):
		return ErrTextTooLong
	default:
		return err
	}
}

// Annotation represents supporting, contradicting, or contextual evidence
// attached to a claim. Annotations are owned by their claim: deleting the
// claim cascades to them.
type Annotation struct {
	ID              string    `json:"id"`
	ClaimID         string    `json:"claim_id"`
	AuthorID        string    `json:"author_id"`
	Text            string    `json:"text"`
	AnnotationType  string    `json:"annotation_type"`
	HelpfulVotes    int       `json:"helpful_votes"`
	NotHelpfulVotes int       `json:"not_helpful_votes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks annotation invariants at creation time.
func (a *Annotation) Validate() error {
	if err := validateText(a.Text); err != nil {
		return err
	}
	if !ValidType(a.AnnotationType) {
		return ErrInvalidType
	}
	return nil
}

// NetHelpfulness returns helpful minus not-helpful votes, floored at zero so
// heavily downvoted annotations carry no weight rather than negative weight.
func (a *Annotation) NetHelpfulness() int {
	net := a.HelpfulVotes - a.NotHelpfulVotes
	if net < 0 {
		return 0
	}
	return net
}

// Vote records a single user's helpfulness judgement on an annotation.
// At most one active vote exists per (voter, annotation); changing a vote
// swaps the counts rather than double-counting.
type Vote struct {
	AnnotationID string    `json:"annotation_id"`
	VoterID      string    `json:"voter_id"`
	Helpful      bool      `json:"helpful"`
	CreatedAt    time.Time `json:"created_at"`
}
