package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = time.Hour

// Lock guarantees a single worker dispatches reminders per cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// leaseExtender is implemented by locks whose lease can be pushed out while a
// long cycle is still working through jobs.
type leaseExtender interface {
	Extend(ctx context.Context) error
}

// holderReporter exposes who currently owns a lock so skipped cycles can say so.
type holderReporter interface {
	Holder(ctx context.Context) (string, error)
}

type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// ErrLockLost is returned by Extend when another worker took over the key.
var ErrLockLost = errors.New("cron lock no longer owned")

// RedisLock stores "<host>/<token>" under key with a TTL so a crashed worker
// frees the lock on its own.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	host   string
	owner  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return &RedisLock{client: client, key: key, ttl: ttl, host: host}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := l.host + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Extend resets the TTL while the stored owner still matches ours.
func (l *RedisLock) Extend(ctx context.Context) error {
	if l.owner == "" {
		return ErrLockLost
	}
	current, err := l.readOwner(ctx)
	if err != nil {
		return err
	}
	if current != l.owner {
		l.owner = ""
		return ErrLockLost
	}
	if err := l.client.Set(ctx, l.key, l.owner, l.ttl); err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	return nil
}

// Holder returns the host part of the current owner, or "" when free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	current, err := l.readOwner(ctx)
	if err != nil {
		return "", err
	}
	host, _, _ := strings.Cut(current, "/")
	return host, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	current, err := l.readOwner(ctx)
	if err != nil {
		return err
	}
	if current != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

func (l *RedisLock) readOwner(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock owner: %w", err)
	}
	return value, nil
}
