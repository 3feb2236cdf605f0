// Package identity owns durable user records and password verification.
//
// The password hash never leaves this package boundary: callers authenticate
// through VerifyPassword and the UserAuth lookup helpers, and receive only
// profile data otherwise.
package identity
