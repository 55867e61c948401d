package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service. Schedule is a standard five-field
// cron spec evaluated in Location; when empty, jobs run every Interval.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Schedule string
	Location *time.Location
	Interval time.Duration
	Now      func() time.Time
}

// Service executes registered cron jobs on a schedule.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	schedule robfig.Schedule
	location *time.Location
	interval time.Duration
	now      func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	location := params.Location
	if location == nil {
		location = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	var schedule robfig.Schedule
	if spec := strings.TrimSpace(params.Schedule); spec != "" {
		parsed, err := robfig.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
		}
		schedule = parsed
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: schedule,
		location: location,
		interval: interval,
		now:      now,
	}, nil
}

// Run starts the cron loop until the context is canceled. The first cycle
// runs immediately.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}

	for {
		wait := s.nextDelay(s.now())
		s.logg.Info(s.logg.WithField(ctx, "next_run_in", wait.String()), "waiting for next run")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-timer.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce executes a single locked cycle. Used by the CLI.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) nextDelay(now time.Time) time.Duration {
	if s.schedule == nil {
		return s.interval
	}
	local := now.In(s.location)
	wait := s.schedule.Next(local).Sub(local)
	if wait <= 0 {
		return time.Second
	}
	return wait
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		skipCtx := ctx
		if reporter, ok := s.lock.(holderReporter); ok {
			if holder, herr := reporter.Holder(ctx); herr == nil && holder != "" {
				skipCtx = s.logg.WithField(ctx, "lock_holder", holder)
			}
		}
		s.logg.Info(skipCtx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	extender, canExtend := s.lock.(leaseExtender)
	for i, job := range s.registry.Jobs() {
		if i > 0 && canExtend {
			if extErr := extender.Extend(ctx); extErr != nil {
				return fmt.Errorf("extend lock before %s: %w", job.Name(), extErr)
			}
		}
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithJob(ctx, job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	s.metrics.MarkLastSuccess(job.Name(), s.now())
}
