package horizon

import "errors"

// Domain errors for the horizon bridge package.
var (
	// ErrConnectionFailed is returned when the broker connection cannot be
	// established, including a second credential refusal after re-authentication.
	ErrConnectionFailed = errors.New("horizon: connection to broker failed")

	// ErrNoSession is returned when Connect is called before the session
	// manager holds credentials.
	ErrNoSession = errors.New("horizon: no session credentials")

	// ErrSourceNotFound is returned by SelectSource when no catalog channel
	// has the requested title.
	ErrSourceNotFound = errors.New("horizon: source not found")

	// ErrInvalidKey is returned when a key command names no key.
	ErrInvalidKey = errors.New("horizon: invalid key")

	// ErrMalformedMessage is returned when an inbound payload cannot be
	// decoded or lacks a required field.
	ErrMalformedMessage = errors.New("horizon: malformed message")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("horizon: bridge already started")
)
