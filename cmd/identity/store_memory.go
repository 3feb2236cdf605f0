package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured,
// and by tests. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]UserAuth // keyed by normalized email
}

// NewMemoryStore constructs an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]UserAuth)}
}

// CreateUser persists a new user.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := NormalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and password hash are required"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{Email: email, Profile: in.Profile, CreatedAt: now}
	s.users[email] = UserAuth{User: u, PasswordHash: in.PasswordHash}
	return u, nil
}

// GetUserByEmail loads a user's profile.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	ua, err := s.GetUserAuthByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return ua.User, nil
}

// GetUserAuthByEmail loads a user together with its password hash.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	ua, ok := s.users[email]
	s.mu.RUnlock()

	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Email: email}
	}
	return ua, nil
}

// UpdatePassword replaces the stored password hash.
func (s *MemoryStore) UpdatePassword(ctx context.Context, email string, newHash string) error {
	const op = "identity.UpdatePassword"

	email = NormalizeEmail(email)
	if email == "" || newHash == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and new hash are required"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.users[email]
	if !ok {
		return NotFoundError{Op: op, Email: email}
	}
	ua.PasswordHash = newHash
	s.users[email] = ua
	return nil
}
