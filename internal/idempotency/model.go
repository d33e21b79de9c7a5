// Package idempotency provides key management for exactly-once scoring
// operations, most importantly reputation reversal on claim deletion.
package idempotency

import (
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to create a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is invalid.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 128 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 128

// Key represents a completed exactly-once operation. Result carries the
// operation's outcome so a retried request returns the original answer
// instead of re-executing.
type Key struct {
	Key       string    `json:"key"`
	Operation string    `json:"operation"`
	Result    float64   `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// ReversalKey builds the idempotency key for a claim-boost reversal.
// One reversal per claim, ever: the key is the claim ID plus the reason tag,
// so retried or concurrent delete requests cannot double-apply.
func ReversalKey(claimID, reason string) string {
	return claimID + ":" + reason
}

// ValidateKey checks if an idempotency key is valid.
// Returns ErrInvalidKey if the key is empty.
// Returns ErrKeyTooLong if the key exceeds MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Repository defines methods for idempotency key persistence.
type Repository interface {
	// Get retrieves an idempotency key by its key value.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(key string) (*Key, error)

	// Store saves a new idempotency key.
	// Returns ErrKeyExists if the key already exists.
	Store(record *Key) error

	// DeleteOlderThan removes idempotency keys older than the specified
	// duration. This is used for cleanup jobs to prevent unbounded growth.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
