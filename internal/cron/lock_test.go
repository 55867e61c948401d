package cron

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
		delete(m.ttls, k)
	}
	return nil
}

func TestRedisLockSingleDispatcher(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "cm:lock:cron-worker:prod", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "cm:lock:cron-worker:prod", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second worker acquired a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values["cm:lock:cron-worker:prod"]; !held {
		t.Fatal("non-owner release freed the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after owner release")
	}
}

func TestRedisLockOwnerCarriesHost(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "cm:lock:cron", time.Minute)
	ctx := context.Background()

	if holder, _ := lock.Holder(ctx); holder != "" {
		t.Fatalf("free lock reported holder %q", holder)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown-host"
	}
	if !strings.HasPrefix(store.values["cm:lock:cron"], host+"/") {
		t.Fatalf("owner %q not prefixed with host %q", store.values["cm:lock:cron"], host)
	}
	if holder, err := lock.Holder(ctx); err != nil || holder != host {
		t.Fatalf("holder=%q err=%v", holder, err)
	}
}

func TestRedisLockExtend(t *testing.T) {
	store := newMemoryRedis()
	lock, _ := NewRedisLock(store, "cm:lock:cron", 2*time.Minute)
	ctx := context.Background()

	if err := lock.Extend(ctx); !errors.Is(err, ErrLockLost) {
		t.Fatalf("extend before acquire: %v", err)
	}
	lock.Acquire(ctx)
	store.ttls["cm:lock:cron"] = time.Second
	if err := lock.Extend(ctx); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if store.ttls["cm:lock:cron"] != 2*time.Minute {
		t.Fatalf("ttl not reset: %v", store.ttls["cm:lock:cron"])
	}

	store.values["cm:lock:cron"] = "other-host/token"
	if err := lock.Extend(ctx); !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost after takeover, got %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after takeover: %v", err)
	}
	if store.values["cm:lock:cron"] != "other-host/token" {
		t.Fatal("release removed another worker's lock")
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(newMemoryRedis(), " ", time.Minute); err == nil {
		t.Fatal("expected empty key error")
	}
	lock, _ := NewRedisLock(newMemoryRedis(), "k", 0)
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v", lock.ttl)
	}
}
