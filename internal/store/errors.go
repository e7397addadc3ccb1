package store

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyDelivered is returned by MarkDelivered when the reminder
	// already reached delivered (or a later) state. Callers treat it as an
	// idempotent success.
	ErrAlreadyDelivered = errors.New("store: already delivered")

	// ErrInvalidTransition is returned when a state change is not allowed
	// from the row's current state.
	ErrInvalidTransition = errors.New("store: invalid state transition")

	// ErrValidation is wrapped by input validation failures.
	ErrValidation = errors.New("store: validation")
)
