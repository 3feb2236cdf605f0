package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// TTL is the absolute session lifetime from sign-in.
	TTL time.Duration

	// TokenBytes is the number of random bytes in a generated token.
	TokenBytes int
}

// DefaultConfig returns the defaults: 7-day sessions, 32-byte tokens.
func DefaultConfig() Config {
	return Config{
		TTL:        7 * 24 * time.Hour,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - TWIDDER_SESSION_TTL (Go duration, > 0)
//   - TWIDDER_SESSION_TOKEN_BYTES (32..64)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("TWIDDER_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("TWIDDER_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
