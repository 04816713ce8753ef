// Package chat implements presence tracking and real-time delivery of direct
// messages over live connections.
package chat

import "errors"

var (
	// ErrUnauthenticated indicates the caller has no verified identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation indicates a missing or empty required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced user or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the acting user may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates the caller exceeded its send quota.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// PublicMessage returns the text safe to show a client for err. Errors
// outside the taxonomy are reported generically.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrRateLimited):
		return err.Error()
	default:
		return "internal error"
	}
}
