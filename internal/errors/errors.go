package errors

import (
	"errors"
)

// Sentinel errors. Every failure surfaced by the turn pipeline wraps exactly
// one of these so handlers and adapters can pick the right user-facing
// message without string matching.
var (
	// ErrInvalidInput - user input failed validation (format, enum, future date, ordering)
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied - actor is not allowed to confirm/cancel this conversation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound - referenced site/ticket/row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEvent - repeat delivery of an already-processed dedup token
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrTransient - retryable failure (network, rate limit, timeout)
	ErrTransient = errors.New("transient error")

	// ErrClassifierUnavailable - classifier backend failed after its single retry
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInvalidModelOutput - classifier returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInternal - anything else; generic message to the user, details in logs
	ErrInternal = errors.New("internal error")
)
