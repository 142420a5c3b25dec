package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// UniverseSource yields the active stock codes (s1_universe.Cache)
type UniverseSource interface {
	GetActiveCodes(ctx context.Context, forceRefresh bool) ([]string, error)
}

// FactorSource bulk-loads the quick-filter factor view
type FactorSource interface {
	FactorSnapshots(ctx context.Context, date time.Time, codes []string) ([]contracts.FactorSnapshot, error)
}

// Screener implements the quick filter and the detail re-verification
// ⭐ SSOT: B1 필터 태그 평가 로직은 여기서만
type Screener struct {
	universe UniverseSource
	factors  FactorSource
	defaults Defaults
	logger   *logger.Logger
}

// NewScreener creates a new screener
func NewScreener(universe UniverseSource, factors FactorSource, defaults Defaults, log *logger.Logger) *Screener {
	return &Screener{
		universe: universe,
		factors:  factors,
		defaults: defaults,
		logger:   log.Component("quick_filter"),
	}
}

// QuickFilter returns the active codes whose factors on date pass every filter rule.
// An empty universe or no factor rows yields an empty list, not an error.
func (s *Screener) QuickFilter(ctx context.Context, date time.Time, filterTags []contracts.TagRule, ov Overrides, forceRefresh bool) ([]string, error) {
	codes, err := s.universe.GetActiveCodes(ctx, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("quick filter: %w", err)
	}
	if len(codes) == 0 {
		s.logger.Warn("No active stocks in universe")
		return []string{}, nil
	}

	snapshots, err := s.factors.FactorSnapshots(ctx, date, codes)
	if err != nil {
		return nil, fmt.Errorf("quick filter: %w", err)
	}
	if len(snapshots) == 0 {
		s.logger.WithField("trade_date", contracts.FormatTradeDate(date)).Warn("No factor data for trade date")
		return []string{}, nil
	}

	filters := bindFilters(filterTags, ov, s.defaults)

	passed := make([]string, 0, len(snapshots))
	for _, f := range snapshots {
		if passesAll(f, filters) {
			passed = append(passed, f.TsCode)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"trade_date": contracts.FormatTradeDate(date),
		"universe":   len(codes),
		"factors":    len(snapshots),
		"passed":     len(passed),
		"filters":    describe(filters),
	}).Info("Quick filter completed")

	return passed, nil
}

// Verify re-applies the filter rules to detail rows; failing rows are dropped silently
func (s *Screener) Verify(rows []contracts.StockSnapshot, filterTags []contracts.TagRule, ov Overrides) []contracts.StockSnapshot {
	filters := bindFilters(filterTags, ov, s.defaults)

	verified := make([]contracts.StockSnapshot, 0, len(rows))
	for _, row := range rows {
		if passesAll(row.Factors(), filters) {
			verified = append(verified, row)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"input":   len(rows),
		"passed":  len(verified),
		"dropped": len(rows) - len(verified),
	}).Info("Filter verification completed")

	return verified
}

func describe(filters []boundFilter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = f.desc
	}
	return out
}
