package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind must be one of the sentinel kinds when applicable; Msg may carry
// human-readable context and must never include secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness conflict for a specific logical field.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrAlreadyExists)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrAlreadyExists, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrAlreadyExists }

// NotFoundError reports a missing user row.
type NotFoundError struct {
	Op    string
	Email string
}

func (e NotFoundError) Error() string {
	if e.Email == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNoSuchUser)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNoSuchUser, e.Email)
}

func (e NotFoundError) Unwrap() error { return ErrNoSuchUser }

// IsAlreadyExists reports whether err represents ErrAlreadyExists.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsNoSuchUser reports whether err represents ErrNoSuchUser.
func IsNoSuchUser(err error) bool { return errors.Is(err, ErrNoSuchUser) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
