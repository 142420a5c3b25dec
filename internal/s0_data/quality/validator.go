package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/b1signal/backend/pkg/logger"
)

// Coverage counts, among active stocks, the rows the B1 run needs on one trade date
type Coverage struct {
	Date           time.Time `json:"date"`
	ActiveStocks   int       `json:"active_stocks"`
	Quotes         int       `json:"quotes"`
	Factors        int       `json:"factors"`
	MovingAverages int       `json:"moving_averages"`
	FullHistory    int       `json:"full_history"`
}

// CoverageSource counts coverage rows (Repository)
type CoverageSource interface {
	Coverage(ctx context.Context, date time.Time, lookbackDays int) (Coverage, error)
}

// Config holds readiness thresholds
type Config struct {
	MinQuoteCoverage  float64 `yaml:"min_quote_coverage"`  // 0.9
	MinFactorCoverage float64 `yaml:"min_factor_coverage"` // 0.9
	LookbackDays      int     `yaml:"lookback_days"`       // 20
}

// DefaultConfig returns 90% quote and factor coverage over a 20-day lookback
func DefaultConfig() Config {
	return Config{
		MinQuoteCoverage:  0.9,
		MinFactorCoverage: 0.9,
		LookbackDays:      20,
	}
}

// Report is the readiness verdict for one trade date
type Report struct {
	Coverage
	Ratios map[string]float64 `json:"ratios"`
	Score  float64            `json:"score"`
	Ready  bool               `json:"ready"`
	Issues []string           `json:"issues,omitempty"`
}

// 가중치 (합계 = 1.0)
var weights = map[string]float64{
	"quotes":          0.40, // 시세 필수
	"factors":         0.40, // J / DIF 필수
	"moving_averages": 0.10,
	"full_history":    0.10,
}

// Gate checks that the external ETL has loaded enough data for a run
// ⭐ SSOT: S0 → B1 데이터 준비 상태 검증
type Gate struct {
	source CoverageSource
	config Config
	logger *logger.Logger
}

// NewGate creates a new Gate
func NewGate(source CoverageSource, config Config, log *logger.Logger) *Gate {
	return &Gate{
		source: source,
		config: config,
		logger: log.Component("quality_gate"),
	}
}

// Check counts coverage for date and evaluates it
func (g *Gate) Check(ctx context.Context, date time.Time) (*Report, error) {
	cov, err := g.source.Coverage(ctx, date, g.config.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("count coverage: %w", err)
	}

	report := Evaluate(cov, g.config)

	entry := g.logger.WithFields(map[string]interface{}{
		"trade_date": date.Format("2006-01-02"),
		"active":     cov.ActiveStocks,
		"score":      report.Score,
		"ready":      report.Ready,
	})
	if report.Ready {
		entry.Info("Data readiness check passed")
	} else {
		entry.WithField("issues", report.Issues).Warn("Data readiness check failed")
	}

	return &report, nil
}

// Evaluate computes ratios, the weighted score and the verdict
func Evaluate(cov Coverage, cfg Config) Report {
	report := Report{
		Coverage: cov,
		Ratios: map[string]float64{
			"quotes":          ratio(cov.Quotes, cov.ActiveStocks),
			"factors":         ratio(cov.Factors, cov.ActiveStocks),
			"moving_averages": ratio(cov.MovingAverages, cov.ActiveStocks),
			"full_history":    ratio(cov.FullHistory, cov.ActiveStocks),
		},
	}

	for key, weight := range weights {
		report.Score += report.Ratios[key] * weight
	}

	if cov.ActiveStocks == 0 {
		report.Issues = append(report.Issues, "no active stocks")
	}
	if r := report.Ratios["quotes"]; r < cfg.MinQuoteCoverage {
		report.Issues = append(report.Issues, fmt.Sprintf("quote coverage %.2f%% < %.2f%%", r*100, cfg.MinQuoteCoverage*100))
	}
	if r := report.Ratios["factors"]; r < cfg.MinFactorCoverage {
		report.Issues = append(report.Issues, fmt.Sprintf("factor coverage %.2f%% < %.2f%%", r*100, cfg.MinFactorCoverage*100))
	}

	report.Ready = len(report.Issues) == 0
	return report
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
