package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

const (
	defaultReadyAttempts = 5
	defaultReadyBackoff  = 2 * time.Second
	pingTimeout          = 5 * time.Second
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

// Dependency is something the worker must reach before it starts pulling.
type Dependency struct {
	Name   string
	Pinger pinger
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []Dependency
	Consumer     consumer
	Gatherer     prometheus.Gatherer

	// ReadyAttempts and ReadyBackoff bound the startup wait for dependencies.
	ReadyAttempts int
	ReadyBackoff  time.Duration
}

// Service waits for its dependencies, then runs the reminder email consumer
// until the context ends. Handler exposes liveness and metrics meanwhile.
type Service struct {
	logg     *logger.Logger
	deps     []Dependency
	consumer consumer
	gatherer prometheus.Gatherer
	attempts int
	backoff  time.Duration
	sleep    func(context.Context, time.Duration) error

	consuming atomic.Bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	for _, dep := range params.Dependencies {
		if dep.Pinger == nil {
			return nil, fmt.Errorf("%s client is required", dep.Name)
		}
	}
	if params.ReadyAttempts <= 0 {
		params.ReadyAttempts = defaultReadyAttempts
	}
	if params.ReadyBackoff <= 0 {
		params.ReadyBackoff = defaultReadyBackoff
	}
	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Service{
		logg:     params.Logger,
		deps:     params.Dependencies,
		consumer: params.Consumer,
		gatherer: gatherer,
		attempts: params.ReadyAttempts,
		backoff:  params.ReadyBackoff,
		sleep:    sleepCtx,
	}, nil
}

// waitReady pings every dependency, retrying the ones that fail with a
// doubling backoff.
func (s *Service) waitReady(ctx context.Context) error {
	for _, dep := range s.deps {
		backoff := s.backoff
		for attempt := 1; ; attempt++ {
			err := ping(ctx, dep.Pinger)
			if err == nil {
				break
			}
			depCtx := s.logg.WithFields(ctx, map[string]any{"dependency": dep.Name, "attempt": attempt})
			if attempt >= s.attempts {
				s.logg.Error(depCtx, "dependency unavailable", err)
				return fmt.Errorf("%s ping failed: %w", dep.Name, err)
			}
			s.logg.Warn(depCtx, "dependency not ready; retrying")
			if err := s.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func ping(ctx context.Context, p pinger) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(pingCtx)
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	s.consuming.Store(true)
	defer s.consuming.Store(false)

	err := s.consumer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return nil
}

// Handler serves /healthz (200 only while the consumer is pulling) and
// /metrics.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.consuming.Load() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
