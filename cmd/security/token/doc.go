// Package token provides opaque session-token primitives for Twidder.
//
// It is the single source of truth for how session tokens are generated and
// how their server-side hashes are produced and compared.
//
// Design:
//   - Tokens are high-entropy random strings handed to the client exactly once.
//   - The server stores only a salted one-way hash ("<salt_hex>$<digest_hex>",
//     digest = SHA-256(salt || token)). The per-row salt means there is no
//     computable hash-to-token index: resolving a presented token requires
//     comparing it against each stored hash.
//   - Comparison is constant-time.
//
// Slow KDFs are unnecessary here: unlike passwords, tokens carry >= 256 bits
// of entropy, so a fast salted digest is sufficient against offline attacks.
package token
