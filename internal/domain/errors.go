package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested DAO or proposal doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned when a payload fails shape or completeness checks
	ErrValidation = errors.New("validation failed")

	// ErrLedgerUnavailable is returned when the ledger could not be reached in time
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrInvalidProposal is returned when the ledger does not know the proposal id
	ErrInvalidProposal = errors.New("invalid proposal")

	// ErrIneligibleTransition is returned when the action guard rejects an action
	ErrIneligibleTransition = errors.New("ineligible transition")

	// ErrRejectedByLedger is returned when a submitted or simulated action reverts
	ErrRejectedByLedger = errors.New("rejected by ledger")

	// ErrActionInFlight is returned when the same action is already being submitted
	ErrActionInFlight = errors.New("action already in flight")

	// ErrAborted is returned when the user declines a confirmation prompt
	ErrAborted = errors.New("aborted")
)

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand constructor
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IneligibleTransitionError carries the guard's verdict for a blocked action
type IneligibleTransitionError struct {
	Action   Action
	Current  string
	Required string
	Reason   string
}

func (e *IneligibleTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Action, e.Reason)
}

func (e *IneligibleTransitionError) Unwrap() error { return ErrIneligibleTransition }

// RejectedByLedgerError is a revert translated into a user-facing message
type RejectedByLedgerError struct {
	Message string
	Cause   error
}

func (e *RejectedByLedgerError) Error() string {
	return e.Message
}

func (e *RejectedByLedgerError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrRejectedByLedger}
	}
	return []error{ErrRejectedByLedger, e.Cause}
}
