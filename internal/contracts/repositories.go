package contracts

import (
	"context"
	"errors"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// TagRuleRepository reads the Tag Configuration Store
type TagRuleRepository interface {
	// LoadRules returns rules of one strategy ordered is-filter desc, sort order asc.
	// codes == nil: enabled rules only. codes != nil: those codes, enabled or not.
	LoadRules(ctx context.Context, strategy string, codes []string, userID *int64) ([]TagRule, error)
	// ListAll returns every rule of the strategy regardless of the enabled flag
	ListAll(ctx context.Context, strategy string, userID *int64) ([]TagRule, error)
}

// ActiveCodeSource lists stock codes currently marked active
type ActiveCodeSource interface {
	ActiveCodes(ctx context.Context) ([]string, error)
}

// MarketDataRepository reads the Market Data Store
type MarketDataRepository interface {
	ActiveCodeSource

	// FactorSnapshots returns J / MACD-DIF for the given codes on date
	FactorSnapshots(ctx context.Context, date time.Time, codes []string) ([]FactorSnapshot, error)
	// Snapshots returns the joined quote + factor rows for codes on date
	Snapshots(ctx context.Context, date time.Time, codes []string) ([]StockSnapshot, error)
	// History returns up to days bars per code with trade_date <= date, oldest first
	History(ctx context.Context, date time.Time, days int, codes []string) (map[string][]Bar, error)
	// LatestMovingAverages returns the most recent MA row on record per code
	LatestMovingAverages(ctx context.Context, codes []string) (map[string]MovingAverages, error)
	// LatestTradeDate returns MAX(trade_date) of the daily quotes
	LatestTradeDate(ctx context.Context) (time.Time, error)
}

// SignalResultRepository persists and reads B1 results
type SignalResultRepository interface {
	// Save replaces every row of date with results in one transaction.
	// On failure nothing changes and (0, err) is returned.
	Save(ctx context.Context, date time.Time, results []SignalResult) (int, error)
	GetByDate(ctx context.Context, date time.Time, strength SignalStrength, limit int) ([]SignalResult, error)
}

// RunLogRepository records one row per orchestrated run
type RunLogRepository interface {
	Insert(ctx context.Context, entry *RunLog) error
	Recent(ctx context.Context, limit int) ([]RunLog, error)
}

// ErrNoAdmin is returned when no admin user exists
var ErrNoAdmin = errors.New("no admin user")

// UserDirectory resolves the bootstrap owner of the canonical rule set
type UserDirectory interface {
	AdminUserID(ctx context.Context) (int64, error)
}

// RunStatus is the outcome recorded in the run log
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusEmpty   RunStatus = "empty"
	RunStatusFailed  RunStatus = "failed"
)

// RunLog is one row of signals.b1_run_log
type RunLog struct {
	RunID          string    `json:"run_id"`
	TradeDate      time.Time `json:"trade_date"`
	StrategyType   string    `json:"strategy_type"`
	UserID         *int64    `json:"user_id,omitempty"`
	Status         RunStatus `json:"status"`
	CandidateCount int       `json:"candidate_count"`
	EvaluatedCount int       `json:"evaluated_count"`
	SavedCount     int       `json:"saved_count"`
	Message        string    `json:"message"`
	ConfigHash     string    `json:"config_hash"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
