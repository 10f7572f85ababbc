// Package shared contains common domain types, errors, events, and value
// objects used across all domain packages. It has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Storage errors
	ErrStorage            = errors.New("storage error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "skill", "plan", "suggestion"
	Op      string // Operation that failed, e.g., "Advance", "Assemble"
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

// Child domain errors
var (
	ErrChildNotFound  = NewDomainError("child", "Find", ErrNotFound, "child not found")
	ErrChildInactive  = NewDomainError("child", "CheckStatus", ErrInvalidState, "child profile is inactive")
	ErrInvalidChildID = NewDomainError("child", "Validate", ErrInvalidID, "invalid child ID")
	ErrOwnerNotFound  = NewDomainError("child", "FindOwner", ErrNotFound, "owner account not found")
)

// Skill domain errors
var (
	ErrSkillNotFound       = NewDomainError("skill", "Find", ErrNotFound, "developmental skill not found")
	ErrSkillStatusNotFound = NewDomainError("skill", "FindStatus", ErrNotFound, "child skill status not found")
	ErrSkillRegression     = NewDomainError("skill", "Advance", ErrStateTransition, "skill status cannot move backward")
	ErrInvalidSkillStatus  = NewDomainError("skill", "Validate", ErrInvalidInput, "invalid skill status")
)

// Catalog domain errors
var (
	ErrActivityNotFound = NewDomainError("catalog", "Find", ErrNotFound, "activity not found")
	ErrActivityInactive = NewDomainError("catalog", "CheckStatus", ErrInvalidState, "activity is not active")
)

// Progress domain errors
var (
	ErrProgressRecordNotFound = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrEventAlreadyProcessed  = NewDomainError("progress", "MarkProcessed", ErrAlreadyProcessed, "completion event already processed")
)

// Suggestion domain errors
var (
	ErrSuggestionNotFound   = NewDomainError("suggestion", "Find", ErrNotFound, "suggestion not found")
	ErrDuplicateSuggestion  = NewDomainError("suggestion", "Create", ErrAlreadyExists, "open suggestion already exists for this activity")
	ErrSuggestionTerminal   = NewDomainError("suggestion", "Transition", ErrStateTransition, "suggestion is already in a terminal state")
	ErrSuggestionNotPending = NewDomainError("suggestion", "Accept", ErrInvalidState, "suggestion is not pending")
)

// Plan domain errors
var (
	ErrPlanNotFound      = NewDomainError("plan", "Find", ErrNotFound, "weekly plan not found")
	ErrPlanExists        = NewDomainError("plan", "Create", ErrAlreadyExists, "weekly plan already exists for this week")
	ErrDayAtCapacity     = NewDomainError("plan", "AddEntry", ErrValueOutOfRange, "day bucket is at capacity")
	ErrDuplicateActivity = NewDomainError("plan", "AddEntry", ErrAlreadyExists, "activity already planned for this day")
	ErrInvalidWeekday    = NewDomainError("plan", "Validate", ErrInvalidInput, "invalid weekday")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsAlreadyProcessed checks if the error marks duplicate event processing.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
