// Package domain contains the core business entities for the fertilizer advisor.
// These are pure Go structs with no external dependencies.
package domain

import (
	"time"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique login name.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new User stamped with the current time.
func NewUser(username, passwordHash string) *User {
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}
