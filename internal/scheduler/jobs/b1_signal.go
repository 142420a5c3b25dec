package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// SignalRunner runs one filter-and-tag pass (brain.Orchestrator)
type SignalRunner interface {
	FilterAndTag(ctx context.Context, req contracts.FilterRequest) (*contracts.FilterResponse, error)
}

// UniverseCache is the shared active-code cache the job resets before each run
type UniverseCache interface {
	Clear()
}

// TradeDateSource resolves the most recent trade date with quotes
type TradeDateSource interface {
	LatestTradeDate(ctx context.Context) (time.Time, error)
}

// B1SignalJob evaluates and persists the B1 signals of the latest trade date
// ⭐ SSOT: B1 일일 스케줄은 이 Job에서만
type B1SignalJob struct {
	runner        SignalRunner
	universe      UniverseCache
	dates         TradeDateSource
	users         contracts.UserDirectory
	schedule      string
	bootstrapUser int64
	tradeDate     string // YYYYMMDD; empty = latest trade date
	logger        *logger.Logger
}

// NewB1SignalJob creates a new B1 signal job
func NewB1SignalJob(
	runner SignalRunner,
	universe UniverseCache,
	dates TradeDateSource,
	users contracts.UserDirectory,
	schedule string,
	bootstrapUser int64,
	log *logger.Logger,
) *B1SignalJob {
	return &B1SignalJob{
		runner:        runner,
		universe:      universe,
		dates:         dates,
		users:         users,
		schedule:      schedule,
		bootstrapUser: bootstrapUser,
		logger:        log.Component("b1_signal_job"),
	}
}

// ForDate returns a copy of the job pinned to one trade date (YYYYMMDD).
// An empty date restores the latest-trade-date behavior.
func (j *B1SignalJob) ForDate(date string) *B1SignalJob {
	pinned := *j
	pinned.tradeDate = date
	return &pinned
}

// Name returns the job name
func (j *B1SignalJob) Name() string {
	return "b1_signal"
}

// Schedule returns the cron schedule (default 20:35 Asia/Shanghai, after the daily data load)
func (j *B1SignalJob) Schedule() string {
	return j.schedule
}

// Run executes the evaluation for the pinned date, or the latest trade date
func (j *B1SignalJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled B1 signal run")

	// 장 마감 후 종목 상태가 바뀌었을 수 있으므로 유니버스 캐시 초기화
	j.universe.Clear()

	userID := j.owner(ctx)

	date, err := j.resolveDate(ctx)
	if err != nil {
		return err
	}

	resp, err := j.runner.FilterAndTag(ctx, contracts.FilterRequest{
		TradeDate:    contracts.FormatTradeDate(date),
		Persist:      true,
		ForceRefresh: true,
		UserID:       &userID,
	})
	if err != nil {
		return fmt.Errorf("b1 signal run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":     resp.RunID,
		"trade_date": resp.TradeDate,
		"success":    resp.Success,
		"total":      resp.Total,
		"saved":      resp.Saved,
		"message":    resp.Message,
	}).Info("Scheduled B1 signal run finished")

	return nil
}

func (j *B1SignalJob) resolveDate(ctx context.Context) (time.Time, error) {
	if j.tradeDate != "" {
		date, err := contracts.ParseTradeDate(j.tradeDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("pinned trade date: %w", err)
		}
		return date, nil
	}

	date, err := j.dates.LatestTradeDate(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve trade date: %w", err)
	}
	return date, nil
}

// owner resolves the admin whose rule set the scheduled run uses
func (j *B1SignalJob) owner(ctx context.Context) int64 {
	id, err := j.users.AdminUserID(ctx)
	if err == nil {
		return id
	}

	entry := j.logger.WithField("fallback_user_id", j.bootstrapUser)
	if !errors.Is(err, contracts.ErrNoAdmin) {
		entry = entry.WithError(err)
	}
	entry.Warn("Admin user not resolved, using bootstrap user")
	return j.bootstrapUser
}
