// Package apperr defines the error taxonomy shared by the task, review,
// dispute and credit services. Handlers translate these to HTTP status codes
// with errors.Is / errors.As; anything unrecognized is a 500.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a task, escrow, user or dispute id does not resolve.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the actor lacks authority for the operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed input. Never retried; surfaced verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a transition that is not legal from the current
// status (or a duplicate request / already-closed escrow). Status carries the
// entity's current status so the caller can refresh its view.
type ConflictError struct {
	Reason string
	Status string
}

func (e *ConflictError) Error() string {
	if e.Status == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (current status: %s)", e.Reason, e.Status)
}

// Conflict builds a ConflictError with the entity's current status.
func Conflict(reason, status string) error {
	return &ConflictError{Reason: reason, Status: status}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
