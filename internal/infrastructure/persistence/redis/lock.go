package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out best-effort exclusive leases so that only one worker
// instance runs a given job at a time.
type Locker struct {
	cache *Cache
}

// NewLocker creates a Locker.
func NewLocker(cache *Cache) *Locker {
	return &Locker{cache: cache}
}

// TryLock acquires resource for ttl. When acquired is false, another
// holder owns the lease and release is a no-op.
func (l *Locker) TryLock(ctx context.Context, resource string, ttl time.Duration) (release func(), acquired bool, err error) {
	key := LockKey(resource)
	token := uuid.NewString()

	// SetNX stores JSON, so compare against the encoded token.
	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	encoded := fmt.Sprintf("%q", token)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.cache.Client(), []string{key}, encoded).Err()
	}, true, nil
}
