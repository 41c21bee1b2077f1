package gira

import "errors"

// Error kinds returned by the vendor client. Every client error wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	// ErrAuth is returned when credentials are rejected, the token is no
	// longer accepted, or the auth response is malformed.
	ErrAuth = errors.New("gira: authentication failed")

	// ErrTransport is returned for network failures, timeouts and unexpected
	// HTTP status codes.
	ErrTransport = errors.New("gira: transport failed")

	// ErrDecode is returned when a vendor response body is not the JSON we expect.
	ErrDecode = errors.New("gira: malformed response")
)
