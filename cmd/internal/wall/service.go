package wall

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"twidder/cmd/identity"
	"twidder/cmd/identity/ids"
	"twidder/cmd/internal/auth/session"
)

// Entry is one wall message as presented to clients: writer and content
// only, recipient and timestamp are implied by the request.
type Entry struct {
	Writer  string `json:"writer"`
	Content string `json:"content"`
}

// Service implements the wall operations on top of the session manager,
// the credential store, and the durable message store.
type Service struct {
	log      *slog.Logger
	sessions *session.Manager
	users    identity.Store
	store    MessageStore
	hub      Broadcaster
}

// NewService constructs a wall service. A nil hub disables live delivery.
func NewService(log *slog.Logger, sessions *session.Manager, users identity.Store, store MessageStore, hub Broadcaster) *Service {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &Service{
		log:      log,
		sessions: sessions,
		users:    users,
		store:    store,
		hub:      hub,
	}
}

// Post persists a message to the recipient's wall and pushes it to the
// recipient's live channels, skipping the originating channel. The row is
// durable before any delivery is attempted; persistence errors surface,
// delivery failures never do.
func (s *Service) Post(ctx context.Context, tok, content, recipientEmail string, origin Conn, now time.Time) error {
	sess, err := s.sessions.Resolve(ctx, tok, now)
	if err != nil {
		return err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if len([]rune(content)) > maxMessageChars {
		return ErrMessageTooLong
	}

	recipient, err := s.users.GetUserByEmail(ctx, recipientEmail)
	if err != nil {
		return err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return err
	}

	m := Message{
		ID:        id,
		Writer:    sess.UserEmail,
		Recipient: recipient.Email,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return err
	}

	s.hub.PushMessage(m.Recipient, m.Writer, m.Content, origin)

	s.log.Info("wall.post", "message_id", m.ID, "writer", m.Writer, "recipient", m.Recipient)
	return nil
}

// ListForToken returns the caller's own wall, newest first.
func (s *Service) ListForToken(ctx context.Context, tok string, now time.Time) ([]Entry, error) {
	sess, err := s.sessions.Resolve(ctx, tok, now)
	if err != nil {
		return nil, err
	}
	return s.listFor(ctx, sess.UserEmail)
}

// ListForEmail returns the named user's wall, newest first. The caller
// needs a valid session and the target user must exist.
func (s *Service) ListForEmail(ctx context.Context, tok, email string, now time.Time) ([]Entry, error) {
	if _, err := s.sessions.Resolve(ctx, tok, now); err != nil {
		return nil, err
	}

	target, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.listFor(ctx, target.Email)
}

func (s *Service) listFor(ctx context.Context, email string) ([]Entry, error) {
	msgs, err := s.store.ListByRecipient(ctx, email)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Entry{Writer: m.Writer, Content: m.Content})
	}
	return out, nil
}

// UserByToken returns the caller's own profile.
func (s *Service) UserByToken(ctx context.Context, tok string, now time.Time) (identity.User, error) {
	sess, err := s.sessions.Resolve(ctx, tok, now)
	if err != nil {
		return identity.User{}, err
	}
	return s.users.GetUserByEmail(ctx, sess.UserEmail)
}

// UserByEmail returns the named user's profile. The caller needs a valid
// session.
func (s *Service) UserByEmail(ctx context.Context, tok, email string, now time.Time) (identity.User, error) {
	if _, err := s.sessions.Resolve(ctx, tok, now); err != nil {
		return identity.User{}, err
	}
	return s.users.GetUserByEmail(ctx, email)
}
