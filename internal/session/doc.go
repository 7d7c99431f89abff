// Package session owns the household session and the broker token.
//
// Manager.Acquire logs in and fetches a token; Manager.Reauthenticate
// replaces both wholesale. Concurrent Reauthenticate calls share a single
// round trip. The token is a JWT; its expiry is read without verifying the
// signature and is used only for logging and health reporting.
package session
