package session

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"twidder/cmd/identity/ids"
	"twidder/cmd/security/token"
)

// Integration tests are enabled when TWIDDER_TEST_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateAllDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	defer pool.Close()

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC()
	raw, err := token.NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	hash, err := token.HashTokenSaltedHex(raw)
	if err != nil {
		t.Fatalf("HashTokenSaltedHex: %v", err)
	}
	id, err := ids.NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}

	email := "it-" + id + "@example.test"
	mustCreateUserRow(ctx, t, pool, email, now)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM twidder.sessions WHERE user_email = $1`, email)
		_, _ = pool.Exec(ctx, `DELETE FROM twidder.users WHERE email = $1`, email)
	})

	sess := Session{
		ID:        id,
		UserEmail: email,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	var found *Session
	for i := range all {
		if all[i].ID == id {
			found = &all[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("All: created session %q not returned", id)
	}
	if found.UserEmail != email || found.TokenHash != hash {
		t.Fatalf("All: row mismatch: %+v", *found)
	}

	ok, err := token.VerifyTokenHash(found.TokenHash, raw)
	if err != nil || !ok {
		t.Fatalf("VerifyTokenHash on stored hash: ok=%v err=%v", ok, err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Absent rows are a no-op.
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete (repeat): %v", err)
	}
}

func TestPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatal("NewPostgresStore(nil): expected error")
	}

	pool := &pgxpool.Pool{}
	for _, schema := range []string{"", "bad-schema", `x"; DROP TABLE users; --`} {
		if _, err := NewPostgresStore(pool, WithSchema(schema)); err == nil {
			t.Fatalf("WithSchema(%q): expected error", schema)
		}
	}
}

func mustIntegrationPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TWIDDER_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TWIDDER_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("pgxpool.ParseConfig: %v", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pgxpool.NewWithConfig: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("pool.Ping: %v", err)
	}
	return pool
}

func mustCreateUserRow(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email string, now time.Time) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		INSERT INTO twidder.users (email, password_hash, firstname, familyname, gender, city, country, created_at)
		VALUES ($1, 'x', 'Test', 'User', 'other', 'Linkoping', 'Sweden', $2)
	`, email, now)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
