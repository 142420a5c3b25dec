package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/b1signal/backend/pkg/logger"
)

// UniverseSource refreshes the active-code cache (s1_universe.Cache)
type UniverseSource interface {
	GetActiveCodes(ctx context.Context, forceRefresh bool) ([]string, error)
}

// UniverseWarmupJob refetches the active stock list ahead of interactive use
type UniverseWarmupJob struct {
	universe UniverseSource
	schedule string
	logger   *logger.Logger
}

// NewUniverseWarmupJob creates a new universe warmup job
func NewUniverseWarmupJob(universe UniverseSource, schedule string, log *logger.Logger) *UniverseWarmupJob {
	if schedule == "" {
		schedule = DefaultUniverseWarmupSchedule
	}
	return &UniverseWarmupJob{
		universe: universe,
		schedule: schedule,
		logger:   log.Component("universe_job"),
	}
}

// DefaultUniverseWarmupSchedule runs before the A-share open (09:00 with seconds)
const DefaultUniverseWarmupSchedule = "0 0 9 * * 1-5"

// Name returns the job name
func (j *UniverseWarmupJob) Name() string {
	return "universe_warmup"
}

// Schedule returns the cron schedule
func (j *UniverseWarmupJob) Schedule() string {
	return j.schedule
}

// Run refetches the active universe
func (j *UniverseWarmupJob) Run(ctx context.Context) error {
	codes, err := j.universe.GetActiveCodes(ctx, true)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	if len(codes) == 0 {
		j.logger.Warn("Active universe is empty")
		return nil
	}

	j.logger.WithField("active", len(codes)).Info("Universe cache warmed")
	return nil
}
