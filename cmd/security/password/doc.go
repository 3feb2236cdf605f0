// Package password provides Argon2id password hashing for Twidder.
//
// Hashes are stored as PHC-style encoded strings. The package covers:
// - Configurable Argon2id cost parameters (environment-driven)
// - Password policy validation
// - Strict hash decoding with anti-DoS parameter bounds on Verify
//
// Hash strings are treated as untrusted input during Verify; verification
// refuses hashes whose parameters exceed reasonable bounds.
package password
