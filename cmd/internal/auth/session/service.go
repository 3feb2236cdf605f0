package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"twidder/cmd/identity"
	"twidder/cmd/identity/ids"
	"twidder/cmd/security/token"
)

// Sanity bound on presented tokens to avoid pathological inputs.
const maxTokenLen = 512

// Manager implements the high-level session operations for Twidder.
//
// It issues opaque tokens backed by salted hashes in durable storage,
// resolves presented tokens through a cache-aside lookup, and expires
// sessions lazily on first access past their deadline.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	users identity.Store
	store Store
	cache *tokenCache
}

// NewManager constructs a Manager over the given credential and session stores.
func NewManager(cfg Config, log *slog.Logger, users identity.Store, store Store) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg:   cfg,
		log:   log,
		users: users,
		store: store,
		cache: newTokenCache(),
	}
}

// SignUp registers a new user. No session is created as a side effect.
// Fails with identity.ErrAlreadyExists when the email is taken.
func (m *Manager) SignUp(ctx context.Context, email, password string, profile identity.Profile, now time.Time) error {
	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = m.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Profile:      profile,
		Now:          now,
	})
	if err != nil {
		return err
	}

	m.log.Info("session.signup", "email", identity.NormalizeEmail(email))
	return nil
}

// SignIn authenticates email/password and returns a fresh raw token.
// The token is returned exactly once; only its salted hash is stored.
// Fails with identity.ErrNoSuchUser or ErrWrongCredential.
func (m *Manager) SignIn(ctx context.Context, email, password string, now time.Time) (string, error) {
	ua, err := m.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	ok, err := identity.VerifyPassword(password, ua.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrWrongCredential
	}

	raw, err := token.NewOpaqueToken(m.cfg.TokenBytes)
	if err != nil {
		return "", err
	}
	hash, err := token.HashTokenSaltedHex(raw)
	if err != nil {
		return "", err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}

	s := Session{
		ID:        id,
		UserEmail: ua.User.Email,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return "", err
	}

	// Warm the cache; the raw token is about to be used on every request.
	m.cache.PutIfAbsent(raw, s)

	m.log.Info("session.signin", "email", s.UserEmail, "session_id", s.ID, "expires_at", s.ExpiresAt)
	return raw, nil
}

// Resolve maps a presented token to its live session.
//
// Cache first; on a miss it scans the durable sessions, verifying the token
// against each salted hash (there is no hash-to-token lookup). A session
// found past its expiration is deleted from store and cache together and
// Resolve fails with ErrSessionExpired. An unmatched token fails with
// ErrNotSignedIn.
func (m *Manager) Resolve(ctx context.Context, tok string, now time.Time) (Session, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || len(tok) > maxTokenLen {
		return Session{}, ErrNotSignedIn
	}

	expired := func(s Session) bool { return !s.ExpiresAt.After(now) }
	evict := func(s Session) error {
		sessionsExpired.Inc()
		m.log.Info("session.resolve.expired", "session_id", s.ID, "email", s.UserEmail)
		return m.store.Delete(ctx, s.ID)
	}

	s, ok, err := m.cache.ResolveCached(tok, expired, evict)
	if err != nil {
		return Session{}, err
	}
	if ok {
		cacheHits.Inc()
		return s, nil
	}
	cacheMisses.Inc()

	all, err := m.store.All(ctx)
	if err != nil {
		return Session{}, err
	}

	for _, row := range all {
		match, err := token.VerifyTokenHash(row.TokenHash, tok)
		if err != nil {
			// Malformed stored hash; skip the row rather than fail the lookup.
			m.log.Warn("session.resolve.bad_hash", "session_id", row.ID, "err", err)
			continue
		}
		if !match {
			continue
		}

		if expired(row) {
			// Remove the row and any concurrently-populated cache entry in
			// one critical section; Delete is idempotent if raced.
			if err := m.cache.RemoveWith(tok, func() error { return evict(row) }); err != nil {
				return Session{}, err
			}
			return Session{}, ErrSessionExpired
		}

		return m.cache.PutIfAbsent(tok, row), nil
	}

	return Session{}, ErrNotSignedIn
}

// SignOut resolves the token and deletes the session from durable storage
// and cache. A second sign-out of the same token fails with ErrNotSignedIn.
func (m *Manager) SignOut(ctx context.Context, tok string, now time.Time) error {
	s, err := m.Resolve(ctx, tok, now)
	if err != nil {
		return err
	}

	tok = strings.TrimSpace(tok)
	if err := m.cache.RemoveWith(tok, func() error { return m.store.Delete(ctx, s.ID) }); err != nil {
		return err
	}

	m.log.Info("session.signout", "session_id", s.ID, "email", s.UserEmail)
	return nil
}

// ChangePassword verifies the caller's current password and stores a new
// hash. Other active sessions for the same user remain valid.
func (m *Manager) ChangePassword(ctx context.Context, tok, oldPassword, newPassword string, now time.Time) error {
	s, err := m.Resolve(ctx, tok, now)
	if err != nil {
		return err
	}

	ua, err := m.users.GetUserAuthByEmail(ctx, s.UserEmail)
	if err != nil {
		return err
	}

	ok, err := identity.VerifyPassword(oldPassword, ua.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCredential
	}

	newHash, err := identity.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := m.users.UpdatePassword(ctx, s.UserEmail, newHash); err != nil {
		return err
	}

	m.log.Info("session.password_changed", "email", s.UserEmail)
	return nil
}
