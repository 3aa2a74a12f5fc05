package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only when the key still holds our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// DistributedLock implements repository.DistributedLock with SET NX PX.
// Each acquired key stores a random owner token so that only the
// acquiring process can release or extend it.
type DistributedLock struct {
	client goredis.UniversalClient

	mu     sync.Mutex
	tokens map[string]string
}

// NewDistributedLock creates a lock backed by client.
func NewDistributedLock(client goredis.UniversalClient) *DistributedLock {
	return &DistributedLock{
		client: client,
		tokens: make(map[string]string),
	}
}

// Acquire attempts to acquire a lock.
func (l *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

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

// Release releases a lock held by this process.
func (l *DistributedLock) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return false, nil
	}

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Extend extends the TTL of a lock held by this process.
func (l *DistributedLock) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[key]
	l.mu.Unlock()

	if !ok {
		return false, nil
	}

	n, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	if n == 0 {
		l.mu.Lock()
		delete(l.tokens, key)
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// IsHeld checks if the lock is currently held by anyone.
func (l *DistributedLock) IsHeld(ctx context.Context, key string) (bool, error) {
	err := l.client.Get(ctx, key).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Ensure DistributedLock implements repository.DistributedLock
var _ repository.DistributedLock = (*DistributedLock)(nil)
