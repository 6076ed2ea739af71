package app

import (
	"errors"
	"fmt"

	"github.com/hylla/cotiza/internal/domain"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound       = errors.New("not found")
	ErrAllocation     = errors.New("quote number allocation failed")
	ErrDragInProgress = errors.New("a drag gesture is already in progress")
	ErrWriteInFlight  = errors.New("quote has a status write in flight")
)

// AllocationError reports that no quote number could be issued for a tenant.
// Callers must not create the quote when they receive one.
type AllocationError struct {
	TenantID string
	Err      error
}

// Error returns a message suitable for user display.
func (e *AllocationError) Error() string {
	if e.TenantID == "" {
		return fmt.Sprintf("could not allocate a quote number: %v", e.Err)
	}
	return fmt.Sprintf("could not allocate a quote number for tenant %q: %v", e.TenantID, e.Err)
}

// Unwrap exposes the underlying store failure.
func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Is matches ErrAllocation.
func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocation
}

// StatusWriteError reports a failed durable status write for a committed drag.
type StatusWriteError struct {
	QuoteID string
	Number  string
	From    domain.QuoteStatus
	To      domain.QuoteStatus
	Err     error
}

// Error returns the failure description.
func (e *StatusWriteError) Error() string {
	name := e.Number
	if name == "" {
		name = e.QuoteID
	}
	return fmt.Sprintf("move %s from %s to %s: %v", name, e.From.Label(), e.To.Label(), e.Err)
}

// Unwrap exposes the underlying store failure.
func (e *StatusWriteError) Unwrap() error {
	return e.Err
}
