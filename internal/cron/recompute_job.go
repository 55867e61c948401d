package cron

import (
	"context"
	"fmt"

	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

type derivedRecomputer interface {
	RecomputeAll(ctx context.Context, batchSize int) (subscriptions.RecomputeResult, error)
}

type RecomputeJobParams struct {
	Logger     *logger.Logger
	Recomputer derivedRecomputer
	BatchSize  int
}

// NewRecomputeJob builds the job that repairs drifted cancel-by dates and
// proof statuses.
func NewRecomputeJob(params RecomputeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Recomputer == nil {
		return nil, fmt.Errorf("recomputer required")
	}
	return &recomputeJob{logg: params.Logger, recomputer: params.Recomputer, batch: params.BatchSize}, nil
}

type recomputeJob struct {
	logg       *logger.Logger
	recomputer derivedRecomputer
	batch      int
}

func (j *recomputeJob) Name() string { return "recompute-derived" }

func (j *recomputeJob) Run(ctx context.Context) error {
	result, err := j.recomputer.RecomputeAll(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"repaired": result.Repaired,
		"invalid":  result.Invalid,
	})
	if err != nil {
		return fmt.Errorf("recompute derived fields: %w", err)
	}
	if result.Repaired > 0 || result.Invalid > 0 {
		j.logg.Warn(logCtx, "derived fields drifted")
		return nil
	}
	j.logg.Info(logCtx, "derived fields consistent")
	return nil
}
