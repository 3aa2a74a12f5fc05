// Package repository defines data access interfaces for the fertilizer advisor.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user and sets its ID.
	// Returns domain.ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByUsername retrieves a user by username.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Count returns the number of registered users.
	Count(ctx context.Context) (int64, error)
}

// =============================================================================
// Rule Repository
// =============================================================================

// RuleRepository defines the interface for recommendation rule data access.
// Every list is ordered by ascending ID.
type RuleRepository interface {
	// List returns all rules.
	List(ctx context.Context) ([]*domain.Rule, error)

	// ListByCrop returns the rules for a crop, compared case-insensitively.
	ListByCrop(ctx context.Context, crop string) ([]*domain.Rule, error)

	// Crops returns the distinct crop names that have rules.
	Crops(ctx context.Context) ([]string, error)

	// Count returns the number of stored rules.
	Count(ctx context.Context) (int64, error)

	// CreateBatch inserts rules in order within a single transaction and sets their IDs.
	CreateBatch(ctx context.Context, rules []*domain.Rule) error
}
