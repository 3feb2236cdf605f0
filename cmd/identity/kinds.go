package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API bodies).
var (
	ErrInvalidInput  = errors.New("invalid_input")
	ErrAlreadyExists = errors.New("already_exists")
	ErrNoSuchUser    = errors.New("no_such_user")
)
