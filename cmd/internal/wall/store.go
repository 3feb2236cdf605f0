package wall

import (
	"context"
	"time"
)

// Max message text length (runes).
const maxMessageChars = 4000

// Message is one immutable wall entry.
type Message struct {
	ID        string
	Writer    string
	Recipient string
	Content   string
	CreatedAt time.Time
}

// MessageStore is the durable persistence boundary for wall messages.
type MessageStore interface {
	// Insert persists a message row.
	Insert(ctx context.Context, m Message) error

	// ListByRecipient returns the recipient's messages, newest first
	// (created_at DESC, id DESC tiebreak).
	ListByRecipient(ctx context.Context, recipient string) ([]Message, error)
}
