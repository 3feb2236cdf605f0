package wall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"twidder/cmd/identity"
	"twidder/cmd/internal/auth/session"
)

type recordedPush struct {
	Recipient string
	Writer    string
	Content   string
	Origin    Conn
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes []recordedPush
}

func (b *recordingBroadcaster) PushMessage(recipient, writer, content string, origin Conn) {
	b.mu.Lock()
	b.pushes = append(b.pushes, recordedPush{recipient, writer, content, origin})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) all() []recordedPush {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedPush(nil), b.pushes...)
}

type connStub string

func (c connStub) ConnID() string { return string(c) }

type wallFixture struct {
	svc      *Service
	sessions *session.Manager
	store    *MemoryStore
	hub      *recordingBroadcaster
}

func newFixture(t *testing.T) *wallFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := identity.NewMemoryStore()
	sessions := session.NewManager(session.DefaultConfig(), log, users, session.NewMemoryStore())
	store := NewMemoryStore()
	hub := &recordingBroadcaster{}
	return &wallFixture{
		svc:      NewService(log, sessions, users, store, hub),
		sessions: sessions,
		store:    store,
		hub:      hub,
	}
}

func (f *wallFixture) signUpAndIn(t *testing.T, email, password string, now time.Time) string {
	t.Helper()
	ctx := context.Background()
	if err := f.sessions.SignUp(ctx, email, password, identity.Profile{FirstName: "T", FamilyName: "U"}, now); err != nil {
		t.Fatalf("SignUp(%q): %v", email, err)
	}
	tok, err := f.sessions.SignIn(ctx, email, password, now)
	if err != nil {
		t.Fatalf("SignIn(%q): %v", email, err)
	}
	return tok
}

func TestPostPersistsThenPushes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tokA := f.signUpAndIn(t, "a@x.com", "pw1", now)
	f.signUpAndIn(t, "b@x.com", "pw2", now)

	origin := connStub("conn-a")
	if err := f.svc.Post(ctx, tokA, "hi", "b@x.com", origin, now); err != nil {
		t.Fatalf("Post: %v", err)
	}

	msgs, err := f.store.ListByRecipient(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("ListByRecipient: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Writer != "a@x.com" || msgs[0].Content != "hi" {
		t.Fatalf("stored messages = %+v, want one from a@x.com: hi", msgs)
	}

	pushes := f.hub.all()
	if len(pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(pushes))
	}
	p := pushes[0]
	if p.Recipient != "b@x.com" || p.Writer != "a@x.com" || p.Content != "hi" || p.Origin != origin {
		t.Fatalf("push = %+v", p)
	}
}

func TestPostValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tokA := f.signUpAndIn(t, "a@x.com", "pw1", now)

	if err := f.svc.Post(ctx, "bogus", "hi", "a@x.com", nil, now); !errors.Is(err, session.ErrNotSignedIn) {
		t.Fatalf("Post bad token: got %v, want ErrNotSignedIn", err)
	}
	if err := f.svc.Post(ctx, tokA, "   ", "a@x.com", nil, now); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Post blank content: got %v, want ErrEmptyMessage", err)
	}
	long := strings.Repeat("x", maxMessageChars+1)
	if err := f.svc.Post(ctx, tokA, long, "a@x.com", nil, now); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("Post oversized content: got %v, want ErrMessageTooLong", err)
	}
	if err := f.svc.Post(ctx, tokA, "hi", "nobody@x.com", nil, now); !identity.IsNoSuchUser(err) {
		t.Fatalf("Post unknown recipient: got %v, want ErrNoSuchUser", err)
	}

	if got := len(f.hub.all()); got != 0 {
		t.Fatalf("failed posts pushed %d times, want 0", got)
	}
	if msgs, _ := f.store.ListByRecipient(ctx, "a@x.com"); len(msgs) != 0 {
		t.Fatalf("failed posts persisted %d rows, want 0", len(msgs))
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tokA := f.signUpAndIn(t, "a@x.com", "pw1", now)
	tokB := f.signUpAndIn(t, "b@x.com", "pw2", now)

	for i, content := range []string{"first", "second", "third"} {
		at := now.Add(time.Duration(i) * time.Second)
		if err := f.svc.Post(ctx, tokA, content, "b@x.com", nil, at); err != nil {
			t.Fatalf("Post %q: %v", content, err)
		}
	}

	own, err := f.svc.ListForToken(ctx, tokB, now)
	if err != nil {
		t.Fatalf("ListForToken: %v", err)
	}
	want := []Entry{
		{Writer: "a@x.com", Content: "third"},
		{Writer: "a@x.com", Content: "second"},
		{Writer: "a@x.com", Content: "first"},
	}
	if len(own) != len(want) {
		t.Fatalf("ListForToken returned %d entries, want %d", len(own), len(want))
	}
	for i := range want {
		if own[i] != want[i] {
			t.Fatalf("entry[%d] = %+v, want %+v", i, own[i], want[i])
		}
	}

	// Another signed-in user sees the same wall through ListForEmail.
	other, err := f.svc.ListForEmail(ctx, tokA, "b@x.com", now)
	if err != nil {
		t.Fatalf("ListForEmail: %v", err)
	}
	if len(other) != len(want) || other[0] != want[0] {
		t.Fatalf("ListForEmail = %+v", other)
	}
}

func TestListRequiresSessionAndTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tokA := f.signUpAndIn(t, "a@x.com", "pw1", now)

	if _, err := f.svc.ListForToken(ctx, "bogus", now); !errors.Is(err, session.ErrNotSignedIn) {
		t.Fatalf("ListForToken bad token: got %v", err)
	}
	if _, err := f.svc.ListForEmail(ctx, tokA, "nobody@x.com", now); !identity.IsNoSuchUser(err) {
		t.Fatalf("ListForEmail unknown target: got %v", err)
	}
}

func TestUserLookups(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	tokA := f.signUpAndIn(t, "a@x.com", "pw1", now)
	f.signUpAndIn(t, "b@x.com", "pw2", now)

	me, err := f.svc.UserByToken(ctx, tokA, now)
	if err != nil {
		t.Fatalf("UserByToken: %v", err)
	}
	if me.Email != "a@x.com" {
		t.Fatalf("UserByToken email = %q", me.Email)
	}

	other, err := f.svc.UserByEmail(ctx, tokA, "b@x.com", now)
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if other.Email != "b@x.com" {
		t.Fatalf("UserByEmail email = %q", other.Email)
	}

	if _, err := f.svc.UserByEmail(ctx, tokA, "nobody@x.com", now); !identity.IsNoSuchUser(err) {
		t.Fatalf("UserByEmail unknown: got %v", err)
	}
	if _, err := f.svc.UserByToken(ctx, "bogus", now); !errors.Is(err, session.ErrNotSignedIn) {
		t.Fatalf("UserByToken bad token: got %v", err)
	}
}
