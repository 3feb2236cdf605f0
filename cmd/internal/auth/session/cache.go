package session

import "sync"

// tokenCache maps raw tokens to their last-resolved Session snapshot.
//
// All compound operations run under one mutex so that a concurrent reader
// never observes a token as cached-valid while its durable row is being
// deleted: expiry eviction removes the row and the entry in one critical
// section (see ResolveCached).
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]Session
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: make(map[string]Session)}
}

// ResolveCached looks up tok and settles its state in one critical section.
// When the cached session is live it is returned with ok=true. When it has
// expired, evict is invoked under the lock (it must delete the durable row),
// the entry is removed, and ErrSessionExpired is returned. A miss returns
// ok=false with no error.
func (c *tokenCache) ResolveCached(tok string, isExpired func(Session) bool, evict func(Session) error) (Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[tok]
	if !ok {
		return Session{}, false, nil
	}

	if isExpired(s) {
		if err := evict(s); err != nil {
			return Session{}, false, err
		}
		delete(c.entries, tok)
		return Session{}, false, ErrSessionExpired
	}

	return s, true, nil
}

// PutIfAbsent inserts a resolved session for tok unless a concurrent lookup
// already did; the first writer wins and its snapshot is returned.
func (c *tokenCache) PutIfAbsent(tok string, s Session) Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[tok]; ok {
		return existing
	}
	c.entries[tok] = s
	return s
}

// RemoveWith removes tok's entry after running del under the lock.
// Used by sign-out so the durable delete and the cache removal are not
// observable separately.
func (c *tokenCache) RemoveWith(tok string, del func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := del(); err != nil {
		return err
	}
	delete(c.entries, tok)
	return nil
}

// Len reports the number of cached tokens (tests only).
func (c *tokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
