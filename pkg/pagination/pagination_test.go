package pagination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBatch(t *testing.T) {
	require.Equal(t, DefaultBatch, NormalizeBatch(-1))
	require.Equal(t, MaxBatch, NormalizeBatch(5000))
	require.Equal(t, 50, NormalizeBatch(50))
}

type row struct {
	createdAt time.Time
	id        uuid.UUID
}

func rowKey(r *row) Cursor { return Cursor{CreatedAt: r.createdAt, ID: r.id} }

func seedRows(n int) []row {
	base := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{createdAt: base.Add(time.Duration(i) * time.Minute), id: uuid.New()}
	}
	return rows
}

// sliceFetch serves rows after the cursor by position, recording each call.
func sliceFetch(rows []row, calls *[]*Cursor) FetchFunc[row] {
	return func(_ context.Context, after *Cursor, limit int) ([]row, error) {
		*calls = append(*calls, after)
		start := 0
		if after != nil {
			for i := range rows {
				if rows[i].id == after.ID {
					start = i + 1
					break
				}
			}
		}
		end := start + limit
		if end > len(rows) {
			end = len(rows)
		}
		return rows[start:end], nil
	}
}

func TestWalkVisitsEveryRowAcrossPages(t *testing.T) {
	rows := seedRows(7)
	var calls []*Cursor
	var seen []uuid.UUID

	err := Walk(context.Background(), 3, sliceFetch(rows, &calls), rowKey, func(r *row) {
		seen = append(seen, r.id)
	})
	require.NoError(t, err)
	require.Len(t, seen, 7)
	require.Len(t, calls, 3)
	require.Nil(t, calls[0])
	require.Equal(t, rows[2].id, calls[1].ID)
	require.Equal(t, rows[5].createdAt, calls[2].CreatedAt)
}

func TestWalkExactMultipleFetchesTrailingEmptyPage(t *testing.T) {
	rows := seedRows(4)
	var calls []*Cursor
	count := 0

	require.NoError(t, Walk(context.Background(), 2, sliceFetch(rows, &calls), rowKey, func(*row) { count++ }))
	require.Equal(t, 4, count)
	require.Len(t, calls, 3)
}

func TestWalkStopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(context.Context, *Cursor, int) ([]row, error) { return nil, boom }

	err := Walk(context.Background(), 10, fetch, rowKey, func(*row) { t.Fatal("visit must not run") })
	require.ErrorIs(t, err, boom)
}

func TestWalkHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []*Cursor

	err := Walk(ctx, 10, sliceFetch(seedRows(3), &calls), rowKey, func(*row) {})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, calls)
}
