// Package session implements Twidder's session lifecycle: sign-up, sign-in,
// token resolution, sign-out, and password change.
//
// Tokens are opaque random strings; the durable store holds only a salted
// one-way hash, so resolving a presented token requires comparing it against
// each stored hash. An in-memory cache keyed by the raw token makes the
// common case O(1); every cache hit is still re-checked against expiration,
// and expired sessions are removed from cache and store together.
package session
