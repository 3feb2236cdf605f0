package wall

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process MessageStore used when no database is
// configured, and by tests. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemoryStore constructs an empty in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert persists a message row.
func (s *MemoryStore) Insert(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	return nil
}

// ListByRecipient returns the recipient's messages, newest first.
func (s *MemoryStore) ListByRecipient(ctx context.Context, recipient string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Message, 0, 8)
	for _, m := range s.messages {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
