package api

import (
	"errors"
	"net/http"

	"twidder/cmd/identity"
	"twidder/cmd/internal/auth/session"
	"twidder/cmd/internal/wall"
)

// Client-visible message strings. These are part of the wire contract;
// clients match on them.
const (
	msgSignedUp       = "Successfully created a new user"
	msgUserExists     = "User already exists."
	msgNoSuchUser     = "No such user."
	msgSignedIn       = "Successfully signed in."
	msgWrongPassword  = "Wrong password."
	msgSignedOut      = "Successfully signed out."
	msgNotSignedIn    = "You are not signed in."
	msgSessionExpired = "Session has expired."
	msgPwChanged      = "Password changed."
	msgUserData       = "User data retrieved."
	msgUserMessages   = "User messages retrieved"
	msgMessagePosted  = "Message posted."
	msgMisformatted   = "Misformatted data."
	msgInternal       = "Internal server error."
)

// Result is the uniform outcome of one operation. Code is the HTTP status
// for the REST surface; it is not serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	Code int `json:"-"`
}

func ok(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data, Code: http.StatusOK}
}

func fail(code int, message string) Result {
	return Result{Success: false, Message: message, Code: code}
}

// Misformatted is the uniform bad-input result.
func Misformatted() Result { return fail(http.StatusBadRequest, msgMisformatted) }

// resultFromErr maps domain errors to client-facing results.
func resultFromErr(err error) Result {
	switch {
	case identity.IsAlreadyExists(err):
		return fail(http.StatusBadRequest, msgUserExists)
	case identity.IsNoSuchUser(err):
		return fail(http.StatusNotFound, msgNoSuchUser)
	case errors.Is(err, session.ErrWrongCredential):
		return fail(http.StatusBadRequest, msgWrongPassword)
	case errors.Is(err, session.ErrNotSignedIn):
		return fail(http.StatusUnauthorized, msgNotSignedIn)
	case errors.Is(err, session.ErrSessionExpired):
		return fail(http.StatusUnauthorized, msgSessionExpired)
	case identity.IsInvalidInput(err),
		errors.Is(err, wall.ErrEmptyMessage),
		errors.Is(err, wall.ErrMessageTooLong):
		return Misformatted()
	default:
		return fail(http.StatusInternalServerError, msgInternal)
	}
}
