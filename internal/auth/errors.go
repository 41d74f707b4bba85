package auth

import "errors"

var (
	// ErrTokenMalformed indicates the bearer token is structurally invalid
	// or its signature does not verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired indicates the bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionRevoked indicates the token verifies but its session is no
	// longer present in the registry.
	ErrSessionRevoked = errors.New("session revoked")
)
