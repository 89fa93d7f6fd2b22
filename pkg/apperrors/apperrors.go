// Package apperrors holds the sentinel errors shared between the domain
// services and the HTTP response mapping, so neither side has to import the
// other.
package apperrors

import "errors"

var (
	// ErrNotFound reports an operation on an unknown entity id.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports input rejected before any state changed.
	ErrValidation = errors.New("validation failed")
	// ErrTerminalState reports a lifecycle change requested on an entity
	// that has already reached a terminal status.
	ErrTerminalState = errors.New("terminal state")
)
