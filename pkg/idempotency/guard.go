package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cancelmem/cancelmem-backend/pkg/redis"
)

// Guard remembers processed message ids per scope so redeliveries are
// acknowledged without being applied twice.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether id was already seen and marks it otherwise.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	key := g.store.IdempotencyKey(g.scope, id)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *Guard) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	key := g.store.IdempotencyKey(g.scope, id)
	return g.store.Del(ctx, key)
}
