package session

import "errors"

var (
	// ErrNotSignedIn is returned when a token matches no stored session.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrSessionExpired is returned when a matched session's expiration has
	// passed. The session is gone from cache and store once this is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrWrongCredential is returned for a password mismatch on sign-in or
	// password change.
	ErrWrongCredential = errors.New("wrong credential")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
