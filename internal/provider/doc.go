// Package provider is the HTTP client for the operator's metadata services.
//
// It covers session creation, broker token retrieval, the channel list,
// programme listings and set-top box enumeration. Every call is bounded by
// the request timeout and honours context cancellation.
//
// Failures are reported through two sentinels: ErrAuthentication when the
// service rejects the credentials, and ErrConnection for everything else
// (transport errors, unexpected status codes, undecodable bodies). Metadata
// requests carry the session header pair stored by SetSession.
package provider
