package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLockKey = "webhook-dispatch:sweeper:lock"
	defaultLockTTL = 30 * time.Second
)

// releaseScript only deletes the lock if it still holds this instance's
// token, so a holder never releases a lease another instance has since
// acquired after this one's TTL expired.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweeperLock is a Redis-backed mutual-exclusion lease used to guarantee
// only one replica runs a sweep cycle at a time.
type SweeperLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewSweeperLock(client *goredis.Client, ttl time.Duration) (*SweeperLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &SweeperLock{
		client: client,
		key:    defaultLockKey,
		ttl:    ttl,
	}, nil
}

// TryAcquire attempts to take the lease with a fresh token. It is safe to
// call repeatedly; a failed attempt simply means another instance holds it.
func (l *SweeperLock) TryAcquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("sweeper lock is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweeper lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.token = token
	return true, nil
}

// Release drops the lease, but only if this instance's token is still the
// one stored in Redis.
func (l *SweeperLock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("sweeper lock is not initialized")
	}
	if l.token == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("failed to release sweeper lock: %w", err)
	}

	l.token = ""
	return nil
}
