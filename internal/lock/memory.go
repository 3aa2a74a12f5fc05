package lock

import (
	"context"
	"sync"
	"time"
)

// cleanupInterval is how often expired entries are swept.
const cleanupInterval = 30 * time.Second

// MemoryLocker implements Locker using in-memory locks.
// This is suitable for single-node deployments where distributed locking is not needed.
// The locks are NOT shared across process restarts or multiple instances.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// lockEntry represents a single lock.
// owner is the token carried by the acquiring context, empty when it had none.
type lockEntry struct {
	expiresAt time.Time
	owner     string
}

// NewMemoryLocker creates a new in-memory locker.
// Call Stop to end its background cleanup.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{
		locks: make(map[string]*lockEntry),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go ml.cleanupLoop()

	return ml
}

// Stop ends the background cleanup goroutine. It is safe to call more than once.
func (m *MemoryLocker) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// cleanupLoop periodically removes expired locks.
func (m *MemoryLocker) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes expired locks.
func (m *MemoryLocker) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.locks {
		if now.After(entry.expiresAt) {
			delete(m.locks, key)
		}
	}
}

// Acquire attempts to acquire a lock.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if entry, exists := m.locks[key]; exists && now.Before(entry.expiresAt) {
		return false, nil
	}

	m.locks[key] = &lockEntry{
		expiresAt: now.Add(ttl),
		owner:     OwnerFromContext(ctx),
	}

	return true, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// Release releases a lock held by the owner carried in ctx.
// A lock that expired and was taken by another owner is left alone.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists || entry.owner != OwnerFromContext(ctx) {
		return false, nil
	}

	delete(m.locks, key)
	return !m.now().After(entry.expiresAt), nil
}

// Extend extends the TTL of a held lock.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists || entry.owner != OwnerFromContext(ctx) {
		return false, nil
	}

	now := m.now()
	if now.After(entry.expiresAt) {
		delete(m.locks, key)
		return false, nil
	}

	entry.expiresAt = now.Add(ttl)
	return true, nil
}

// IsHeld checks if a lock is currently held.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return false, nil
	}

	if m.now().After(entry.expiresAt) {
		delete(m.locks, key)
		return false, nil
	}

	return true, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
