package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cancelmem/cancelmem-backend/internal/reminders"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

type reminderDispatcher interface {
	Dispatch(ctx context.Context, asOf time.Time) (reminders.Result, error)
}

// ReminderJobParams configures the reminder dispatch job. Location decides
// which calendar day "today" is.
type ReminderJobParams struct {
	Logger     *logger.Logger
	Dispatcher reminderDispatcher
	Location   *time.Location
	Now        func() time.Time
}

func NewReminderJob(params ReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("reminder dispatcher required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reminderJob{
		logg:       params.Logger,
		dispatcher: params.Dispatcher,
		loc:        loc,
		now:        now,
	}, nil
}

type reminderJob struct {
	logg       *logger.Logger
	dispatcher reminderDispatcher
	loc        *time.Location
	now        func() time.Time
}

func (j *reminderJob) Name() string { return "reminder-dispatch" }

func (j *reminderJob) Run(ctx context.Context) error {
	asOf := j.now().In(j.loc)
	result, err := j.dispatcher.Dispatch(ctx, asOf)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":  asOf.Format(time.RFC3339),
		"sent":   result.Sent,
		"failed": result.Failed,
	})
	if err != nil {
		return fmt.Errorf("reminder dispatch: %w", err)
	}
	j.logg.Info(logCtx, "reminders dispatched")
	return nil
}
