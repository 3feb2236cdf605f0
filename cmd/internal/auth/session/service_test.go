package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"twidder/cmd/identity"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(DefaultConfig(), log, identity.NewMemoryStore(), store)
	return m, store
}

func mustSignUp(t *testing.T, m *Manager, email, password string, now time.Time) {
	t.Helper()
	err := m.SignUp(context.Background(), email, password, identity.Profile{
		FirstName:  "Test",
		FamilyName: "User",
		Gender:     "other",
		City:       "Linkoping",
		Country:    "Sweden",
	}, now)
	if err != nil {
		t.Fatalf("SignUp(%q): %v", email, err)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)

	err := m.SignUp(context.Background(), "a@x.com", "pw2", identity.Profile{}, now)
	if !identity.IsAlreadyExists(err) {
		t.Fatalf("duplicate SignUp: got %v, want ErrAlreadyExists", err)
	}
}

func TestSignInResolveRoundTrip(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)

	tok, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if tok == "" {
		t.Fatal("SignIn returned empty token")
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}

	s, err := m.Resolve(ctx, tok, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.UserEmail != "a@x.com" {
		t.Fatalf("resolved email = %q, want a@x.com", s.UserEmail)
	}
	if !s.ExpiresAt.Equal(now.Add(m.cfg.TTL)) {
		t.Fatalf("ExpiresAt = %v, want %v", s.ExpiresAt, now.Add(m.cfg.TTL))
	}
}

func TestSignInWrongPassword(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)

	if _, err := m.SignIn(ctx, "a@x.com", "wrong", now); !errors.Is(err, ErrWrongCredential) {
		t.Fatalf("SignIn wrong password: got %v, want ErrWrongCredential", err)
	}
	if _, err := m.SignIn(ctx, "nobody@x.com", "pw1", now); !identity.IsNoSuchUser(err) {
		t.Fatalf("SignIn unknown user: got %v, want ErrNoSuchUser", err)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	for _, tok := range []string{"", "   ", "not-a-token"} {
		if _, err := m.Resolve(ctx, tok, now); !errors.Is(err, ErrNotSignedIn) {
			t.Fatalf("Resolve(%q): got %v, want ErrNotSignedIn", tok, err)
		}
	}
}

func TestResolveExpiredEvictsEverywhere(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)
	tok, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	later := now.Add(m.cfg.TTL) // expiry is inclusive: now >= ExpiresAt
	if _, err := m.Resolve(ctx, tok, later); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Resolve past TTL: got %v, want ErrSessionExpired", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d after expiry, want 0", store.Len())
	}
	if m.cache.Len() != 0 {
		t.Fatalf("cache.Len() = %d after expiry, want 0", m.cache.Len())
	}

	// The token is gone for good, not merely expired on repeat presentation.
	if _, err := m.Resolve(ctx, tok, later); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("Resolve after eviction: got %v, want ErrNotSignedIn", err)
	}
}

func TestResolveColdCacheScansStore(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)
	tok, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	// Simulate a process restart: same durable rows, empty cache.
	cold := NewManager(m.cfg, m.log, m.users, store)
	s, err := cold.Resolve(ctx, tok, now)
	if err != nil {
		t.Fatalf("Resolve on cold cache: %v", err)
	}
	if s.UserEmail != "a@x.com" {
		t.Fatalf("resolved email = %q, want a@x.com", s.UserEmail)
	}
	if cold.cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d after scan hit, want 1", cold.cache.Len())
	}
}

func TestSignOutIsTerminal(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)
	tok, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := m.SignOut(ctx, tok, now); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d after sign-out, want 0", store.Len())
	}

	if _, err := m.Resolve(ctx, tok, now); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("Resolve after sign-out: got %v, want ErrNotSignedIn", err)
	}
	if err := m.SignOut(ctx, tok, now); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("second SignOut: got %v, want ErrNotSignedIn", err)
	}
}

func TestTwoSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)

	tok1, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn #1: %v", err)
	}
	tok2, err := m.SignIn(ctx, "a@x.com", "pw1", now.Add(time.Second))
	if err != nil {
		t.Fatalf("SignIn #2: %v", err)
	}
	if tok1 == tok2 {
		t.Fatal("two sign-ins produced the same token")
	}

	if err := m.SignOut(ctx, tok1, now); err != nil {
		t.Fatalf("SignOut tok1: %v", err)
	}
	if _, err := m.Resolve(ctx, tok2, now.Add(time.Second)); err != nil {
		t.Fatalf("Resolve tok2 after tok1 sign-out: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)
	tok, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := m.ChangePassword(ctx, tok, "wrong", "pw2", now); !errors.Is(err, ErrWrongCredential) {
		t.Fatalf("ChangePassword wrong old: got %v, want ErrWrongCredential", err)
	}
	if err := m.ChangePassword(ctx, "bogus", "pw1", "pw2", now); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("ChangePassword bogus token: got %v, want ErrNotSignedIn", err)
	}

	if err := m.ChangePassword(ctx, tok, "pw1", "pw2", now); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// The session that changed the password stays valid.
	if _, err := m.Resolve(ctx, tok, now); err != nil {
		t.Fatalf("Resolve after password change: %v", err)
	}

	// Old password is dead, new one signs in.
	if _, err := m.SignIn(ctx, "a@x.com", "pw1", now); !errors.Is(err, ErrWrongCredential) {
		t.Fatalf("SignIn old password: got %v, want ErrWrongCredential", err)
	}
	if _, err := m.SignIn(ctx, "a@x.com", "pw2", now); err != nil {
		t.Fatalf("SignIn new password: %v", err)
	}
}

func TestChangePasswordKeepsOtherSessions(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	mustSignUp(t, m, "a@x.com", "pw1", now)
	tok1, err := m.SignIn(ctx, "a@x.com", "pw1", now)
	if err != nil {
		t.Fatalf("SignIn #1: %v", err)
	}
	tok2, err := m.SignIn(ctx, "a@x.com", "pw1", now.Add(time.Second))
	if err != nil {
		t.Fatalf("SignIn #2: %v", err)
	}

	if err := m.ChangePassword(ctx, tok1, "pw1", "pw2", now); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := m.Resolve(ctx, tok2, now.Add(time.Second)); err != nil {
		t.Fatalf("Resolve other session after password change: %v", err)
	}
}
