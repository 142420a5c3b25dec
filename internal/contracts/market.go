package contracts

import (
	"math"
	"time"
)

// NULL numeric columns are carried as NaN, so every rule comparison
// against a missing value evaluates to false.

// DailyQuote is one row of data.daily_quotes
type DailyQuote struct {
	TsCode    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`
	Name      string    `json:"name"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PreClose  float64   `json:"pre_close"`
	PctChange float64   `json:"pct_change"`
	Change    float64   `json:"change"`
	Vol       float64   `json:"vol"`
	Amount    float64   `json:"amount"`
	VolRatio  float64   `json:"vol_ratio"`
	TurnOver  float64   `json:"turn_over"`
	Swing     float64   `json:"swing"`   // 振幅 (%)
	TotalMV   float64   `json:"total_mv"` // 万元
	FloatMV   float64   `json:"float_mv"`
	Industry  string    `json:"industry"`
	Area      string    `json:"area"`
}

// TechnicalFactor is the factor part of data.technical_factors
type TechnicalFactor struct {
	KdjK    float64 `json:"kdj_k"`
	KdjD    float64 `json:"kdj_d"`
	KdjJ    float64 `json:"kdj_j"`
	MacdDif float64 `json:"macd_dif"`
	MacdDea float64 `json:"macd_dea"`
	Macd    float64 `json:"macd"`
}

// FactorSnapshot is the quick-filter projection: J and MACD-DIF for one code
type FactorSnapshot struct {
	TsCode  string
	KdjJ    float64
	MacdDif float64
}

// StockSnapshot is the joined quote + factor row of one stock on the trade date
type StockSnapshot struct {
	DailyQuote
	TechnicalFactor
}

// Factors projects the snapshot onto the quick-filter view
func (s StockSnapshot) Factors() FactorSnapshot {
	return FactorSnapshot{TsCode: s.TsCode, KdjJ: s.KdjJ, MacdDif: s.MacdDif}
}

// Bar is one trailing-history day. Histories are ordered oldest → newest;
// the last bar is the trade date itself.
type Bar struct {
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PctChange float64
	Vol       float64
	Amount    float64
}

// MovingAverages is the most recent moving-average row on record for a stock
type MovingAverages struct {
	TsCode    string
	TradeDate time.Time
	MA5       float64
	MA10      float64
	MA20      float64
	MA30      float64
}

// FloatOrNaN converts a nullable column value into the NaN convention
func FloatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// NullIfNaN converts back to a nullable value for persistence/JSON
func NullIfNaN(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
