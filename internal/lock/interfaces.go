// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Scoped Execution
// =============================================================================

// ErrNotAcquired is returned by WithLock when the lock stayed held by someone else.
var ErrNotAcquired = errors.New("lock not acquired")

// Options controls how WithLock waits for a lock.
type Options struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type ownerKey struct{}

// WithOwner returns a context that identifies owner as the lock holder.
// Lockers that track ownership only release or extend a key for the
// owner that acquired it.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner set by WithOwner, or "".
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// even if ctx has been cancelled by then. Each call acquires under its own owner
// token, so a caller that outlived its TTL cannot release a successor's lock.
func WithLock(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	ctx = WithOwner(ctx, uuid.NewString())

	acquired, err := locker.AcquireWithRetry(ctx, key, opts.TTL, opts.MaxRetries, opts.RetryDelay)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	defer func() {
		_, _ = locker.Release(context.WithoutCancel(ctx), key)
	}()

	return fn(ctx)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Signup returns a lock key serializing registrations of one username.
func (lockKeys) Signup(username string) string {
	return "lock:signup:" + username
}

// RuleSeed returns a lock key held while seeding the recommendation table.
func (lockKeys) RuleSeed() string {
	return "lock:seed:rules"
}
