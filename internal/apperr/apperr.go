// Package apperr defines the error taxonomy shared by the scheduling core,
// the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleSnapshot is returned by a store when the snapshot a decision
	// was computed from changed before the write. Callers reload and decide
	// again.
	ErrStaleSnapshot = errors.New("snapshot is stale")
)

// ValidationError carries every violated field rule of a candidate.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ConflictError carries the ids of the events blocking a proposed change.
type ConflictError struct {
	ConflictsWith []string
}

func (e *ConflictError) Error() string {
	return "conflicts with " + strings.Join(e.ConflictsWith, ", ")
}

// ReasonCode identifies why a release workflow transition was refused.
type ReasonCode string

// Guard violation reason codes.
const (
	ReasonInvalidState           ReasonCode = "invalid-state"
	ReasonDateRangeInvalid       ReasonCode = "date-range-invalid"
	ReasonReplacementUnavailable ReasonCode = "replacement-unavailable"
	ReasonUnauthorizedTransition ReasonCode = "unauthorized-transition"
)

// GuardViolation is a refused workflow transition. The release stays in its
// current state.
type GuardViolation struct {
	Code    ReasonCode
	Message string
}

// NewGuardViolation builds a violation with a formatted message.
func NewGuardViolation(code ReasonCode, format string, args ...any) *GuardViolation {
	return &GuardViolation{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *GuardViolation) Error() string {
	return string(e.Code) + ": " + e.Message
}

// IntegrationFailure wraps a fault raised by an external collaborator such
// as the store or the lecturer directory.
type IntegrationFailure struct {
	Op  string
	Err error
}

// Integration wraps err as an IntegrationFailure unless it already is one
// or is a sentinel the caller should see unchanged.
func Integration(op string, err error) error {
	if err == nil {
		return nil
	}
	var inf *IntegrationFailure
	if errors.As(err, &inf) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleSnapshot) {
		return err
	}
	return &IntegrationFailure{Op: op, Err: err}
}

func (e *IntegrationFailure) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IntegrationFailure) Unwrap() error {
	return e.Err
}
