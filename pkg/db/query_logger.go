package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// queryLogger forwards failed and slow statements to the service logger.
// Record-not-found is a normal outcome for lookups and stays quiet.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
	mode gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &queryLogger{logg: logg, slow: slow, mode: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.mode = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, _ ...any) {
	if q.mode >= gormlogger.Info {
		q.logg.Debug(ctx, msg)
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, _ ...any) {
	if q.mode >= gormlogger.Warn {
		q.logg.Warn(ctx, msg)
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, _ ...any) {
	if q.mode >= gormlogger.Error {
		q.logg.Error(ctx, msg, nil)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.mode <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.mode >= gormlogger.Error:
		statement, rows := fc()
		q.logg.Error(q.fields(ctx, statement, rows, elapsed), "db statement failed", err)
	case elapsed > q.slow && q.mode >= gormlogger.Warn:
		statement, rows := fc()
		q.logg.Warn(q.fields(ctx, statement, rows, elapsed), "slow db statement")
	}
}

func (q *queryLogger) fields(ctx context.Context, statement string, rows int64, elapsed time.Duration) context.Context {
	return q.logg.WithFields(ctx, map[string]any{
		"sql":         statement,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
}
