// Package validate provides centralized input validation and sanitization
// utilities for the engine API.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// SanitizeHTML escapes HTML special characters to prevent XSS attacks.
// This should be called on all user-generated text that will be displayed in HTML.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// MaxClaimTextLength is the maximum character count for claim and
// annotation text.
const MaxClaimTextLength = 2000

// actorIDPattern restricts actor identifiers to URL-safe characters.
var actorIDPattern = regexp.MustCompile(`^[A-Za-z0-9@_\-\.:]+$`)

// domainPattern restricts claim domains to simple lowercase tags.
var domainPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// ClaimText validates claim body text:
// - Required (not empty after trimming)
// - Max 2000 characters
func ClaimText(text string) (string, error) {
	return String(text, StringConstraints{
		MinLength:  1,
		MaxLength:  MaxClaimTextLength,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

// AnnotationText validates annotation body text with the same bounds as
// claim text.
func AnnotationText(text string) (string, error) {
	return String(text, StringConstraints{
		MinLength:  1,
		MaxLength:  MaxClaimTextLength,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

// ActorID validates a user or author identifier:
// - 1-64 characters
// - Letters, numbers, and @ _ - . : only
func ActorID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: actorIDPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// Domain validates an optional claim domain tag:
// - Optional (can be empty)
// - Max 50 characters, lowercase letters, numbers, and dashes
func Domain(domain string) (string, error) {
	return String(domain, StringConstraints{
		MaxLength:      50,
		AllowedPattern: domainPattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
}
