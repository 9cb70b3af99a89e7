// Package errs defines sentinel errors shared across services so callers can
// translate them into transport status codes uniformly.
package errs

import "errors"

var (
	// ErrAuthenticationRequired means no or an invalid session token was
	// presented (401 equivalent).
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrForbidden means the session is valid but the role or policy disallows
	// the action (403 equivalent).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means a core operation received malformed input. It fails
	// fast and never silently defaults.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")
)
