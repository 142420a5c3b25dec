package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/internal/s2_signals"
	"github.com/wonny/b1signal/backend/internal/selection"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// TagLoader loads the rule set of one run (tagconfig.Loader)
type TagLoader interface {
	Load(ctx context.Context, codes []string, userID *int64) (contracts.TagConfig, error)
}

// Orchestrator coordinates the B1 filter-and-tag pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
// TAG_CONFIG → QUICK_FILTER → DETAIL → VERIFY → HISTORY → EVALUATE → PERSIST
type Orchestrator struct {
	loader    TagLoader
	screener  *selection.Screener
	evaluator *s2_signals.Evaluator
	results   contracts.SignalResultRepository

	runLog     contracts.RunLogRepository
	strategy   string
	configHash string

	now      func() time.Time
	newRunID func() string
	logger   *logger.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides the clock used for run-log timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunIDs overrides the run id generator
func WithRunIDs(gen func() string) Option {
	return func(o *Orchestrator) { o.newRunID = gen }
}

// WithRunLog records one run-log row per persisted run
func WithRunLog(repo contracts.RunLogRepository, strategy, configHash string) Option {
	return func(o *Orchestrator) {
		o.runLog = repo
		o.strategy = strategy
		o.configHash = configHash
	}
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	loader TagLoader,
	screener *selection.Screener,
	evaluator *s2_signals.Evaluator,
	results contracts.SignalResultRepository,
	log *logger.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		loader:    loader,
		screener:  screener,
		evaluator: evaluator,
		results:   results,
		strategy:  contracts.StrategyB1,
		now:       time.Now,
		newRunID:  GenerateRunID,
		logger:    log.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return uuid.NewString()
}

// run carries the per-invocation state through the stages
type run struct {
	req       contracts.FilterRequest
	date      time.Time
	resp      *contracts.FilterResponse
	startedAt time.Time
	candidate int
}

// FilterAndTag runs the pipeline once for req.TradeDate.
// Empty-result conditions return Success=false with a nil error; data-access
// failures return the error. A persist failure returns the evaluated rows
// together with the error.
func (o *Orchestrator) FilterAndTag(ctx context.Context, req contracts.FilterRequest) (*contracts.FilterResponse, error) {
	date, err := contracts.ParseTradeDate(req.TradeDate)
	if err != nil {
		return nil, err
	}

	r := &run{
		req:       req,
		date:      date,
		startedAt: o.now(),
		resp: &contracts.FilterResponse{
			RunID:     o.newRunID(),
			TradeDate: req.TradeDate,
			Data:      []contracts.SignalResult{},
		},
	}

	log := o.logger.WithFields(map[string]interface{}{
		"run_id":     r.resp.RunID,
		"trade_date": req.TradeDate,
	})
	log.WithFields(map[string]interface{}{
		"persist":       req.Persist,
		"force_refresh": req.ForceRefresh,
		"tag_subset":    len(req.TagCodes),
		"stock_subset":  req.StockCodes != nil,
	}).Info("Starting B1 filter-and-tag run")

	err = o.execute(ctx, r)

	status := contracts.RunStatusSuccess
	switch {
	case err != nil:
		status = contracts.RunStatusFailed
	case !r.resp.Success:
		status = contracts.RunStatusEmpty
	}
	o.writeRunLog(ctx, r, status, err)

	fields := map[string]interface{}{
		"status":   status,
		"total":    r.resp.Total,
		"saved":    r.resp.Saved,
		"duration": time.Since(r.startedAt).Seconds(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("B1 run failed")
		return r.resp, err
	}
	log.WithFields(fields).WithField("message", r.resp.Message).Info("B1 run completed")

	return r.resp, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	req, resp := r.req, r.resp

	// 1. 태그 설정
	start := time.Now()
	cfg, err := o.loader.Load(ctx, req.TagCodes, req.UserID)
	o.record(resp, contracts.StageTagConfig, start, len(req.TagCodes), cfg.Count(), err)
	if err != nil {
		return err
	}
	if cfg.IsEmpty() {
		resp.Message = contracts.MsgNoTagRules
		return nil
	}

	ov := selection.Overrides{
		JThreshold:       req.JThreshold,
		MacdDifThreshold: req.MacdDifThreshold,
	}

	// 2. 1차 필터 (종목 직접 지정 시 생략)
	var candidates []string
	if req.StockCodes != nil {
		candidates = append([]string{}, req.StockCodes...)
	} else {
		start = time.Now()
		candidates, err = o.screener.QuickFilter(ctx, r.date, cfg.Filter, ov, req.ForceRefresh)
		o.record(resp, contracts.StageQuickFilter, start, 0, len(candidates), err)
		if err != nil {
			return err
		}
	}
	r.candidate = len(candidates)
	if req.TagCodes == nil {
		resp.FilteredCodes = candidates
	}
	if len(candidates) == 0 {
		resp.Message = contracts.MsgNoCandidates
		return nil
	}

	// 3. 상세 데이터
	start = time.Now()
	rows, err := o.evaluator.LoadSnapshots(ctx, r.date, candidates)
	o.record(resp, contracts.StageDetail, start, len(candidates), len(rows), err)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		resp.Message = contracts.MsgNoStockData
		return nil
	}

	// 4. 필터 재검증
	start = time.Now()
	verified := o.screener.Verify(rows, cfg.Filter, ov)
	o.record(resp, contracts.StageVerify, start, len(rows), len(verified), nil)
	if len(verified) == 0 {
		resp.Message = contracts.MsgNoVerifiedStocks
		return nil
	}

	// 5. 과거 시세
	codes := make([]string, len(verified))
	for i, v := range verified {
		codes[i] = v.TsCode
	}
	start = time.Now()
	history, err := o.evaluator.LoadHistory(ctx, r.date, codes)
	o.record(resp, contracts.StageHistory, start, len(codes), len(history), err)
	if err != nil {
		return err
	}

	// 6. 태그 평가
	start = time.Now()
	results := o.evaluator.Evaluate(ctx, verified, history, cfg)
	o.record(resp, contracts.StageEvaluate, start, len(verified), len(results), nil)

	resp.Success = true
	resp.Data = results
	resp.Total = len(results)
	resp.Message = fmt.Sprintf("evaluated %d stocks", len(results))

	// 7. 저장
	if !req.Persist {
		return nil
	}

	start = time.Now()
	saved, err := o.results.Save(ctx, r.date, results)
	o.record(resp, contracts.StagePersist, start, len(results), saved, err)
	if err != nil {
		resp.Saved = 0
		resp.PersistError = err.Error()
		return fmt.Errorf("persist results: %w", err)
	}
	resp.Saved = saved

	return nil
}

func (o *Orchestrator) record(resp *contracts.FilterResponse, stage contracts.Stage, start time.Time, in, out int, err error) {
	sr := contracts.StageResult{
		Stage:       stage,
		InputCount:  in,
		OutputCount: out,
		Duration:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		sr.Error = err.Error()
	}
	resp.Stages = append(resp.Stages, sr)
}

// writeRunLog records persisted runs only; a failed insert is logged and ignored
func (o *Orchestrator) writeRunLog(ctx context.Context, r *run, status contracts.RunStatus, runErr error) {
	if o.runLog == nil || !r.req.Persist {
		return
	}

	msg := r.resp.Message
	if runErr != nil {
		msg = runErr.Error()
	}

	entry := &contracts.RunLog{
		RunID:          r.resp.RunID,
		TradeDate:      r.date,
		StrategyType:   o.strategy,
		UserID:         r.req.UserID,
		Status:         status,
		CandidateCount: r.candidate,
		EvaluatedCount: r.resp.Total,
		SavedCount:     r.resp.Saved,
		Message:        msg,
		ConfigHash:     o.configHash,
		StartedAt:      r.startedAt,
		FinishedAt:     o.now(),
	}

	if err := o.runLog.Insert(ctx, entry); err != nil {
		o.logger.WithError(err).WithField("run_id", entry.RunID).Warn("Failed to write run log")
	}
}
