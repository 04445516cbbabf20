// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every DomainError carries one of these as its Kind, and
// callers classify failures with errors.Is or the Is* predicates below.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation kinds
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrExpired        = errors.New("expired")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrOptimisticLock = errors.New("optimistic lock failure")
	ErrRateLimited    = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "activity", "goal", "gamification"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Activity domain errors
var (
	ErrActivityNotFound       = NewDomainError("activity", "Find", ErrNotFound, "activity not found")
	ErrInvalidCategory        = NewDomainError("activity", "Validate", ErrInvalidInput, "unknown activity category")
	ErrInvalidDescription     = NewDomainError("activity", "Validate", ErrValueOutOfRange, "description must be 1-500 characters")
	ErrInvalidDuration        = NewDomainError("activity", "Validate", ErrValueOutOfRange, "duration must be at least 1 minute")
	ErrInvalidProgressPercent = NewDomainError("activity", "Validate", ErrValueOutOfRange, "goal progress percentage must be between 0 and 100")
	ErrInvalidDetail          = NewDomainError("activity", "Validate", ErrInvalidFormat, "invalid activity detail")
	ErrInvalidUserID          = NewDomainError("activity", "Validate", ErrInvalidID, "invalid user ID")
)

// Goal domain errors
var (
	ErrGoalNotFound       = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrInvalidGoalTitle   = NewDomainError("goal", "Validate", ErrValueOutOfRange, "title must be 1-100 characters")
	ErrInvalidGoalDesc    = NewDomainError("goal", "Validate", ErrValueOutOfRange, "description must be at most 300 characters")
	ErrInvalidGoalPeriod  = NewDomainError("goal", "Validate", ErrInvalidInput, "period must be monthly or yearly")
	ErrInvalidGoalTarget  = NewDomainError("goal", "Validate", ErrValueOutOfRange, "target must be at least 1")
	ErrNoSubGoals         = NewDomainError("goal", "Validate", ErrEmptyValue, "at least one sub-goal is required")
	ErrInvalidSubGoalName = NewDomainError("goal", "Validate", ErrValueOutOfRange, "sub-goal name must be 1-100 characters")
	ErrInvalidSubGoalDesc = NewDomainError("goal", "Validate", ErrValueOutOfRange, "sub-goal description must be at most 200 characters")
)

// Gamification domain errors
var (
	ErrStatsNotFound        = NewDomainError("gamification", "FindStats", ErrNotFound, "user stats not found")
	ErrStatsVersionStale    = NewDomainError("gamification", "SaveStats", ErrOptimisticLock, "user stats were modified concurrently")
	ErrAchievementUnknown   = NewDomainError("gamification", "FindAchievement", ErrNotFound, "achievement not in catalog")
	ErrAchievementNotEarned = NewDomainError("gamification", "Share", ErrNotFound, "achievement not earned")
)

// Verification domain errors
var (
	ErrVerificationNotFound = NewDomainError("verification", "Find", ErrNotFound, "verification code not found")
	ErrVerificationExpired  = NewDomainError("verification", "Confirm", ErrExpired, "verification code has expired")
	ErrTooManyAttempts      = NewDomainError("verification", "Confirm", ErrRateLimited, "too many failed attempts")
	ErrInvalidPIN           = NewDomainError("verification", "Confirm", ErrInvalidInput, "invalid verification code")
	ErrInvalidEmail         = NewDomainError("verification", "Validate", ErrInvalidFormat, "invalid email address")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is any of the validation kinds.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict reports a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// IsExpired checks if the error is an "expired" error.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// IsRateLimited checks if the error is a rate limit or attempt limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnauthorized checks if the error is an "unauthorized" error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// UserMessage returns the message of the outermost DomainError in the
// chain, or "" when err carries none.
func UserMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
