package repository

import (
	"context"
	"time"
)

// =============================================================================
// Distributed Lock Interface (Redis)
// =============================================================================

// DistributedLock defines the interface for distributed locking.
// Used to coordinate signup and seeding across multiple server instances.
type DistributedLock interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held by this process.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held by this process.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held by anyone.
	IsHeld(ctx context.Context, key string) (bool, error)
}
