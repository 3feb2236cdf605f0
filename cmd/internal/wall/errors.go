package wall

import "errors"

// Sentinel error kinds (stable for errors.Is at the API boundary).
var (
	ErrEmptyMessage   = errors.New("empty_message")
	ErrMessageTooLong = errors.New("message_too_long")
)
