package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	// DefaultTokenBytes is the entropy of a generated token.
	DefaultTokenBytes = 32

	saltBytes = 16
)

// NewOpaqueToken returns a cryptographically random token.
// It is URL-safe (base64url, no padding) and SHOULD be stored only on the
// client; the server stores only a hash (see HashTokenSaltedHex).
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultTokenBytes
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashTokenSaltedHex returns the server-stored representation of a token:
// "<salt_hex>$<digest_hex>" where digest = SHA-256(salt || token).
// A fresh random salt per call makes equal tokens hash differently, so the
// stored value cannot be used as a lookup key.
func HashTokenSaltedHex(tok string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + "$" + digestHex(salt, tok), nil
}

// VerifyTokenHash reports whether tok matches the stored salted hash.
// Returns ErrInvalidTokenHash for malformed stored values.
func VerifyTokenHash(encoded, tok string) (bool, error) {
	saltHex, digest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrInvalidTokenHash
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false, ErrInvalidTokenHash
	}

	want := []byte(digest)
	got := []byte(digestHex(salt, tok))
	if len(want) != len(got) {
		return false, ErrInvalidTokenHash
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func digestHex(salt []byte, tok string) string {
	h := sha256.New()
	_, _ = h.Write(salt)
	_, _ = h.Write([]byte(tok))
	return hex.EncodeToString(h.Sum(nil))
}
