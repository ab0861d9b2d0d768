package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/saascore/saas-cloud/log"
)

const (
	LockKeyPrefix    = "saas-lock/"
	DefaultLockTTL   = 2 * time.Hour
	DefaultLockRetry = 500 * time.Millisecond
)

// only the holder's token may release the lock
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is a lock shared by every instance manager process using
// the same redis.
type Locker struct {
	client *RedisClient
	TTL    time.Duration
	Retry  time.Duration
}

func NewLocker(client *RedisClient) *Locker {
	return &Locker{
		client: client,
		TTL:    DefaultLockTTL,
		Retry:  DefaultLockRetry,
	}
}

// Lock blocks until the lock for key is acquired or ctx is done. The
// returned function releases it.
func (s *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := LockKeyPrefix + key
	token := uuid.New().String()
	for {
		ok, err := s.client.SetNX(ctx, lockKey, token, s.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s, %v", key, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(s.Retry):
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s is held by another process, %v", key, ctx.Err())
		}
	}
	log.SpanLog(ctx, log.DebugLevelEvents, "acquired lock", "key", lockKey)
	unlock := func() {
		out, err := s.client.RunScript(ctx, unlockScript, []string{lockKey}, token)
		if err != nil || out != int64(1) {
			log.SpanLog(ctx, log.DebugLevelEvents, "lock was not released", "key", lockKey, "out", out, "err", err)
		}
	}
	return unlock, nil
}
