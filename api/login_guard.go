package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginLockPrefix = "login"

// RedisLoginGuard holds short lived per-email locks in Redis so concurrent
// first logins on any instance create at most one user.
type RedisLoginGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLoginGuard creates a guard using the provided Redis client. ttl
// bounds how long a crashed holder can block other logins.
func NewRedisLoginGuard(client *redis.Client, ttl time.Duration) *RedisLoginGuard {
	return &RedisLoginGuard{client: client, ttl: ttl}
}

func (r *RedisLoginGuard) key(email string) string {
	return loginLockPrefix + ":" + email
}

// Acquire takes the lock if nobody holds it.
func (r *RedisLoginGuard) Acquire(ctx context.Context, email string) (bool, error) {
	return r.client.SetNX(ctx, r.key(email), 1, r.ttl).Result()
}

// Release deletes the lock.
func (r *RedisLoginGuard) Release(ctx context.Context, email string) error {
	return r.client.Del(ctx, r.key(email)).Err()
}

const (
	loginLockAttempts = 5
	loginLockBackoff  = 50 * time.Millisecond
)

// lockLogin tries to take the login lock for email, retrying with a linear
// backoff. It returns a release func when the lock was taken and nil when the
// caller should proceed without it.
func lockLogin(ctx context.Context, guard LoginGuard, email string) (func(), error) {
	if guard == nil {
		return nil, nil
	}
	for attempt := 1; ; attempt++ {
		ok, err := guard.Acquire(ctx, email)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = guard.Release(context.WithoutCancel(ctx), email)
			}, nil
		}
		if attempt == loginLockAttempts {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * loginLockBackoff):
		}
	}
}
