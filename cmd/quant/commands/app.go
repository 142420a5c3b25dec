package commands

import (
	"fmt"
	"time"

	"github.com/wonny/b1signal/backend/internal/brain"
	"github.com/wonny/b1signal/backend/internal/data/repos"
	"github.com/wonny/b1signal/backend/internal/s0_data"
	"github.com/wonny/b1signal/backend/internal/s0_data/quality"
	"github.com/wonny/b1signal/backend/internal/s1_universe"
	"github.com/wonny/b1signal/backend/internal/s2_signals"
	"github.com/wonny/b1signal/backend/internal/scheduler"
	"github.com/wonny/b1signal/backend/internal/scheduler/jobs"
	"github.com/wonny/b1signal/backend/internal/selection"
	"github.com/wonny/b1signal/backend/internal/strategyconfig"
	"github.com/wonny/b1signal/backend/internal/tagconfig"
	"github.com/wonny/b1signal/backend/pkg/config"
	"github.com/wonny/b1signal/backend/pkg/database"
	"github.com/wonny/b1signal/backend/pkg/logger"
	"github.com/wonny/b1signal/backend/pkg/redis"
)

// app bundles the wired pipeline for one CLI invocation
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	hash     string
	log      *logger.Logger

	db    *database.DB
	redis *redis.Client

	market   *s0_data.Repository
	tags     *tagconfig.Repository
	loader   *tagconfig.Loader
	universe *s1_universe.Cache
	results  *repos.SignalRepository
	runLog   *repos.RunLogRepository
	gate     *quality.Gate

	orchestrator *brain.Orchestrator
}

// newApp loads configuration, connects to Postgres and Redis and wires every stage
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strategyConfigPath != "" {
		cfg.StrategyConfigPath = strategyConfigPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load pipeline settings
	strategy, err := strategyconfig.LoadOrDefault(cfg.StrategyConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Connect to redis (optional)
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, result cache disabled")
		rdb = redis.Disabled()
	}
	cache := redis.NewCache(rdb, "b1")

	// 6. Create repositories
	market := s0_data.NewRepository(db.Pool)
	tags := tagconfig.NewRepository(db.Pool)
	results := repos.NewSignalRepository(db, cache, strategy.Persistence.BatchSize, log)
	runLog := repos.NewRunLogRepository(db.Pool)

	// 7. Create stages
	loader := tagconfig.NewLoader(tags, strategy.Meta.StrategyType, log)
	universe := s1_universe.NewCache(market, strategy.Universe.CacheTTL, log)
	screener := selection.NewScreener(universe, market, selection.Defaults{
		JThreshold:       strategy.QuickFilter.JThreshold,
		MacdDifThreshold: strategy.QuickFilter.MacdDifThreshold,
	}, log)
	evaluator := s2_signals.NewEvaluator(market, s2_signals.DefaultRegistry(), s2_signals.Config{
		LookbackDays:       strategy.Detail.LookbackDays,
		DisplayFactorLimit: strategy.Detail.DisplayFactorLimit,
		Scoring: s2_signals.ScoringConfig{
			StrongMinScore:       strategy.Scoring.StrongMinScore,
			StrongMinVolumeRatio: strategy.Scoring.StrongMinVolumeRatio,
			MediumMinScore:       strategy.Scoring.MediumMinScore,
		},
	}, log)

	qualityConfig := quality.DefaultConfig()
	qualityConfig.LookbackDays = strategy.Detail.LookbackDays
	gate := quality.NewGate(quality.NewRepository(db.Pool), qualityConfig, log)

	// 8. Create orchestrator
	orchestrator := brain.NewOrchestrator(loader, screener, evaluator, results, log,
		brain.WithRunLog(runLog, strategy.Meta.StrategyType, hash),
	)

	return &app{
		cfg:          cfg,
		strategy:     strategy,
		hash:         hash,
		log:          log,
		db:           db,
		redis:        rdb,
		market:       market,
		tags:         tags,
		loader:       loader,
		universe:     universe,
		results:      results,
		runLog:       runLog,
		gate:         gate,
		orchestrator: orchestrator,
	}, nil
}

// Close releases the database and redis connections
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

// location resolves the scheduler timezone: env override, then the strategy YAML
func (a *app) location() (*time.Location, error) {
	name := a.cfg.SchedulerTimezone
	if name == "" {
		name = a.strategy.Schedule.Timezone
	}
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// newScheduler registers the daily B1 job and the universe warmup job. b1Date pins the B1 job to one trade date; "" = latest.
func (a *app) newScheduler(b1Date string) (*scheduler.Scheduler, error) {
	loc, err := a.location()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log, scheduler.WithLocation(loc))

	b1Job := jobs.NewB1SignalJob(
		a.orchestrator,
		a.universe,
		a.market,
		a.tags,
		a.strategy.Schedule.Cron,
		a.strategy.Meta.BootstrapUserID,
		a.log,
	).ForDate(b1Date)
	if err := sched.AddJob(b1Job); err != nil {
		return nil, fmt.Errorf("register b1 job: %w", err)
	}

	if err := sched.AddJob(jobs.NewUniverseWarmupJob(a.universe, "", a.log)); err != nil {
		return nil, fmt.Errorf("register universe job: %w", err)
	}

	return sched, nil
}
