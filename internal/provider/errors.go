package provider

import "errors"

// Domain-specific errors for provider calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthentication is returned when the session service rejects the credentials.
	ErrAuthentication = errors.New("provider: invalid credentials")

	// ErrConnection is returned for any other failed call.
	ErrConnection = errors.New("provider: connection failed")

	// ErrNotAuthenticated is returned by calls that need a session before one exists.
	ErrNotAuthenticated = errors.New("provider: no session")

	// ErrNoListing is returned when a listings query matches nothing.
	ErrNoListing = errors.New("provider: no listing found")
)
