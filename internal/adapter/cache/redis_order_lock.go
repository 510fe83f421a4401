package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/payflow/internal/usecase"
)

// RedisOrderLock is the per-key serialization point for order and payment
// mutations: SetNX with a holder token, released by a check-and-delete script
// so only the holder can unlock. The TTL bounds how long a crashed holder can
// block others; the optimistic version check on orders backs this up, so an
// expired lock degrades to a retried conflict, never a lost update.
type RedisOrderLock struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxWait    time.Duration
	retryDelay time.Duration
}

func NewRedisOrderLock(rdb *redis.Client, ttl, maxWait time.Duration) *RedisOrderLock {
	return &RedisOrderLock{rdb: rdb, ttl: ttl, maxWait: maxWait, retryDelay: 25 * time.Millisecond}
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisOrderLock) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	rkey := "lock:" + key
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, rkey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: timed out after %s", key, l.maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	unlock := func() {
		// Best effort: on failure the TTL reclaims the lock.
		_ = unlockScript.Run(context.Background(), l.rdb, []string{rkey}, token).Err()
	}
	return unlock, nil
}

var _ usecase.OrderLocker = (*RedisOrderLock)(nil)
