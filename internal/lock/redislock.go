// Package lock serialises work across processes with a Redis SET NX lease.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lease is still held by another owner
// after MaxWait has elapsed.
var ErrNotAcquired = errors.New("lock: lease held by another owner")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker hands out leases keyed by name. A zero MaxWait waits until ctx is
// done.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	MaxWait      time.Duration
}

// WithLock runs fn while holding the lease for key. The lease is released
// when fn returns, whatever its result; ttl bounds how long a crashed owner
// can block others.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	var deadline <-chan time.Time
	if l.MaxWait > 0 {
		wait := time.NewTimer(l.MaxWait)
		defer wait.Stop()
		deadline = wait.C
	}

	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		retry := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			retry.Stop()
			return ctx.Err()
		case <-deadline:
			retry.Stop()
			return ErrNotAcquired
		case <-retry.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		// scripting disabled: fall back to a plain delete
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
