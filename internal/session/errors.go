package session

import "errors"

var (
	// ErrNoCredentials is returned when the account username or password is empty.
	ErrNoCredentials = errors.New("session: username and password are required")

	// ErrNoAuthenticator is returned when NewManager is given a nil Authenticator.
	ErrNoAuthenticator = errors.New("session: authenticator is required")
)
