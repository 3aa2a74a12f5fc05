// Package auth issues and validates signed session tokens.
package auth

import "errors"

// Token errors.
var (
	// ErrEmptySubject indicates a token was requested for an empty username.
	ErrEmptySubject = errors.New("token subject is empty")

	// ErrMissingBearerToken indicates the Authorization header carried no bearer token.
	ErrMissingBearerToken = errors.New("missing bearer token")

	// ErrInvalidToken indicates the token is malformed, forged or expired.
	// Expiry and signature failures are deliberately not distinguished.
	ErrInvalidToken = errors.New("invalid or expired token")
)
