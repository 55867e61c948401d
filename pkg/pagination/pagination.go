// Package pagination drives keyset scans over (created_at, id) ordered tables.
package pagination

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBatch is the page size background jobs use when scanning tables.
	DefaultBatch = 200
	// MaxBatch caps a single background scan page.
	MaxBatch = 1000
)

// Cursor is the keyset position of the last row seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeBatch applies the batch defaults used by background scans.
func NormalizeBatch(limit int) int {
	if limit <= 0 {
		return DefaultBatch
	}
	if limit > MaxBatch {
		return MaxBatch
	}
	return limit
}

// After returns the cursor positioned on the given row.
func After(createdAt time.Time, id uuid.UUID) *Cursor {
	return &Cursor{CreatedAt: createdAt, ID: id}
}

// FetchFunc loads up to limit rows strictly after the cursor. A nil cursor
// starts from the beginning.
type FetchFunc[T any] func(ctx context.Context, after *Cursor, limit int) ([]T, error)

// Walk pages through fetch until a short page comes back, handing every row
// to visit in order. key reports the keyset position of a row. The context is
// checked between pages so long scans stop promptly on shutdown.
func Walk[T any](ctx context.Context, batch int, fetch FetchFunc[T], key func(*T) Cursor, visit func(*T)) error {
	batch = NormalizeBatch(batch)
	var cursor *Cursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := fetch(ctx, cursor, batch)
		if err != nil {
			return err
		}
		for i := range page {
			visit(&page[i])
		}
		if len(page) < batch {
			return nil
		}
		last := key(&page[len(page)-1])
		cursor = &last
	}
}
