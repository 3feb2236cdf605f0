package token

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidTokenHash = errors.New("invalid token hash")
)
