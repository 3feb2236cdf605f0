package identity

import (
	"context"
	"time"
)

// Profile holds the user-visible profile fields from sign-up.
type Profile struct {
	FirstName  string
	FamilyName string
	Gender     string
	City       string
	Country    string
}

// User is Twidder's canonical principal, keyed by email.
type User struct {
	Email   string
	Profile Profile

	CreatedAt time.Time
}

// UserAuth is a User plus its stored password hash.
// It exists only for the verification path and must not be serialized.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a sign-up request.
// PasswordHash must already be hashed (see HashPassword).
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Profile      Profile
	Now          time.Time
}

// Store is the credential/profile persistence boundary.
type Store interface {
	// CreateUser persists a new user. Returns ErrAlreadyExists (via
	// ConflictError) when the email is taken, ErrInvalidInput for a blank
	// email or hash.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserByEmail loads profile data. Returns ErrNoSuchUser when absent.
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// GetUserAuthByEmail loads the user together with its password hash.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrNoSuchUser when the user is absent.
	UpdatePassword(ctx context.Context, email string, newHash string) error
}
