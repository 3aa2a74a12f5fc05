// Package service provides business logic services for the fertilizer advisor.
package service

import (
	"errors"
	"fmt"
)

// Common service errors.
var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// User errors
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Recommendation errors
	ErrInference             = errors.New("inference failed")
	ErrClassifierUnavailable = errors.New("classifier not loaded")

	// Infrastructure errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLockTimeout        = errors.New("timed out waiting for lock")
)

func storageError(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
