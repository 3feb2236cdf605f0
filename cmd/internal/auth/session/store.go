package session

import (
	"context"
	"time"
)

// Session is one signed-in token's durable state.
// TokenHash is the salted one-way hash of the token; the raw token is never
// persisted and cannot be recovered from the row.
type Session struct {
	ID        string
	UserEmail string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store abstracts session persistence.
//
// There is deliberately no lookup-by-token: token hashes are salted, so the
// only way to find a session for a presented token is to scan All and verify
// each hash (the Manager's cache exists to make that rare).
type Store interface {
	// Create inserts a new session row.
	Create(ctx context.Context, s Session) error

	// All returns every stored session, newest first.
	All(ctx context.Context) ([]Session, error)

	// Delete removes a session by ID. Deleting an absent session is a no-op;
	// the expiry path may race with itself.
	Delete(ctx context.Context, sessionID string) error
}
