package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// MarketSource is the slice of the Market Data Store the detail stage reads
type MarketSource interface {
	Snapshots(ctx context.Context, date time.Time, codes []string) ([]contracts.StockSnapshot, error)
	History(ctx context.Context, date time.Time, days int, codes []string) (map[string][]contracts.Bar, error)
	LatestMovingAverages(ctx context.Context, codes []string) (map[string]contracts.MovingAverages, error)
}

// Config configures the detail evaluation stage
type Config struct {
	LookbackDays       int
	DisplayFactorLimit int
	Scoring            ScoringConfig
}

// DefaultConfig returns a 20-day lookback, 8-name display factor and default scoring
func DefaultConfig() Config {
	return Config{
		LookbackDays:       20,
		DisplayFactorLimit: 8,
		Scoring:            DefaultScoring(),
	}
}

// Evaluator implements the detail evaluation stage
// ⭐ SSOT: B1 plus/minus 태그 평가 + 점수 산출은 여기서만
type Evaluator struct {
	market   MarketSource
	registry *Registry
	config   Config
	logger   *logger.Logger
}

// NewEvaluator creates a new detail evaluator
func NewEvaluator(market MarketSource, registry *Registry, config Config, log *logger.Logger) *Evaluator {
	return &Evaluator{
		market:   market,
		registry: registry,
		config:   config,
		logger:   log.Component("detail"),
	}
}

// LoadSnapshots fetches the joined quote + factor rows of codes on date
func (e *Evaluator) LoadSnapshots(ctx context.Context, date time.Time, codes []string) ([]contracts.StockSnapshot, error) {
	rows, err := e.market.Snapshots(ctx, date, codes)
	if err != nil {
		return nil, fmt.Errorf("load detail rows: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"requested": len(codes),
		"found":     len(rows),
	}).Info("Detail rows loaded")

	return rows, nil
}

// LoadHistory fetches the trailing history window of codes
func (e *Evaluator) LoadHistory(ctx context.Context, date time.Time, codes []string) (map[string][]contracts.Bar, error) {
	history, err := e.market.History(ctx, date, e.config.LookbackDays, codes)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"stocks":   len(history),
		"lookback": e.config.LookbackDays,
	}).Info("History loaded")

	return history, nil
}

// Evaluate scores every row against the plus/minus rules of cfg.
// Moving averages are fetched once for all rows and only when a loaded rule reads them;
// a failed lookup makes those rules not match.
func (e *Evaluator) Evaluate(ctx context.Context, rows []contracts.StockSnapshot, history map[string][]contracts.Bar, cfg contracts.TagConfig) []contracts.SignalResult {
	var mas map[string]contracts.MovingAverages
	if e.registry.NeedsMovingAverages(cfg.Plus, cfg.Minus) && len(rows) > 0 {
		codes := make([]string, len(rows))
		for i, r := range rows {
			codes[i] = r.TsCode
		}

		var err error
		mas, err = e.market.LatestMovingAverages(ctx, codes)
		if err != nil {
			e.logger.WithError(err).WithField("stocks", len(codes)).
				Warn("Moving average lookup failed, MA rules will not match")
			mas = nil
		}
	}

	results := make([]contracts.SignalResult, 0, len(rows))
	counts := map[contracts.SignalStrength]int{}
	for _, row := range rows {
		in := RuleInput{Current: row, History: history[row.TsCode]}
		if ma, ok := mas[row.TsCode]; ok {
			in.MA = &ma
		}

		res := e.EvaluateOne(in, cfg)
		counts[res.Strength]++
		results = append(results, res)
	}

	e.logger.WithFields(map[string]interface{}{
		"evaluated": len(results),
		"strong":    counts[contracts.SignalStrong],
		"medium":    counts[contracts.SignalMedium],
		"weak":      counts[contracts.SignalWeak],
	}).Info("Tag evaluation completed")

	return results
}

// EvaluateOne builds the result of one stock. Filter rules always count as matched.
func (e *Evaluator) EvaluateOne(in RuleInput, cfg contracts.TagConfig) contracts.SignalResult {
	matched := make([]contracts.TagRule, 0, cfg.Count())
	plus, minus := 0, 0

	for _, t := range cfg.Filter {
		matched = append(matched, t)
		plus++
	}
	for _, t := range cfg.Plus {
		if e.registry.Lookup(t.Code)(in, t.Threshold) {
			matched = append(matched, t)
			plus++
		}
	}
	for _, t := range cfg.Minus {
		if e.registry.Lookup(t.Code)(in, t.Threshold) {
			matched = append(matched, t)
			minus++
		}
	}

	score := plus - minus
	res := contracts.SignalResult{
		TsCode:          in.Current.TsCode,
		StockName:       in.Current.Name,
		TradeDate:       in.Current.TradeDate,
		Strength:        e.config.Scoring.Classify(score, in.Current.VolRatio),
		ResultSnapshot:  contracts.SnapshotOf(in.Current),
		DisplayFactor:   DisplayFactor(matched, e.config.DisplayFactorLimit),
		MatchedTagIDs:   make([]int64, len(matched)),
		MatchedTagNames: make([]string, len(matched)),
		MatchedTagCodes: make([]string, len(matched)),
		PlusCount:       plus,
		MinusCount:      minus,
		TagScore:        score,
	}
	for i, t := range matched {
		res.MatchedTagIDs[i] = t.ID
		res.MatchedTagNames[i] = t.Name
		res.MatchedTagCodes[i] = t.Code
	}

	return res
}
