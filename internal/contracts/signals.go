package contracts

import "time"

// SignalStrength is the coarse classification of a tagged stock
type SignalStrength string

const (
	SignalStrong SignalStrength = "strong"
	SignalMedium SignalStrength = "medium"
	SignalWeak   SignalStrength = "weak"
)

// IsValid checks if s is one of the three strengths
func (s SignalStrength) IsValid() bool {
	switch s {
	case SignalStrong, SignalMedium, SignalWeak:
		return true
	}
	return false
}

// ResultSnapshot is the denormalized quote/factor copy stored with each result.
// nil means the source column was NULL.
type ResultSnapshot struct {
	OpenPrice    *float64 `json:"open_price"`
	HighPrice    *float64 `json:"high_price"`
	LowPrice     *float64 `json:"low_price"`
	ClosePrice   *float64 `json:"close_price"`
	PriceChange  *float64 `json:"price_change"`
	PctChange    *float64 `json:"pct_change"`
	Volume       *float64 `json:"volume"`
	Amount       *float64 `json:"amount"`
	VolumeRatio  *float64 `json:"volume_ratio"`
	TurnoverRate *float64 `json:"turnover_rate"`
	JValue       *float64 `json:"j_value"`
	KValue       *float64 `json:"k_value"`
	DValue       *float64 `json:"d_value"`
	MacdDif      *float64 `json:"macd_dif"`
	MacdDea      *float64 `json:"macd_dea"`
	MacdValue    *float64 `json:"macd_value"`
	TotalMV      *float64 `json:"total_mv"`
	CircMV       *float64 `json:"circ_mv"`
	Industry     string   `json:"industry"`
	Area         string   `json:"area"`
}

// SnapshotOf copies the persisted fields out of a stock snapshot
func SnapshotOf(s StockSnapshot) ResultSnapshot {
	return ResultSnapshot{
		OpenPrice:    NullIfNaN(s.Open),
		HighPrice:    NullIfNaN(s.High),
		LowPrice:     NullIfNaN(s.Low),
		ClosePrice:   NullIfNaN(s.Close),
		PriceChange:  NullIfNaN(s.Change),
		PctChange:    NullIfNaN(s.PctChange),
		Volume:       NullIfNaN(s.Vol),
		Amount:       NullIfNaN(s.Amount),
		VolumeRatio:  NullIfNaN(s.VolRatio),
		TurnoverRate: NullIfNaN(s.TurnOver),
		JValue:       NullIfNaN(s.KdjJ),
		KValue:       NullIfNaN(s.KdjK),
		DValue:       NullIfNaN(s.KdjD),
		MacdDif:      NullIfNaN(s.MacdDif),
		MacdDea:      NullIfNaN(s.MacdDea),
		MacdValue:    NullIfNaN(s.Macd),
		TotalMV:      NullIfNaN(s.TotalMV),
		CircMV:       NullIfNaN(s.FloatMV),
		Industry:     s.Industry,
		Area:         s.Area,
	}
}

// SignalResult is one row of signals.b1_signal_results
// ⭐ SSOT: (ts_code, trade_date) 당 정확히 1 row
type SignalResult struct {
	TsCode    string         `json:"ts_code"`
	StockName string         `json:"stock_name"`
	TradeDate time.Time      `json:"trade_date"`
	Strength  SignalStrength `json:"signal_strength"`

	ResultSnapshot

	DisplayFactor   string   `json:"display_factor"`
	MatchedTagIDs   []int64  `json:"matched_tag_ids"`
	MatchedTagNames []string `json:"matched_tag_names"`
	MatchedTagCodes []string `json:"matched_tag_codes"`
	PlusCount       int      `json:"plus_tags_count"`
	MinusCount      int      `json:"minus_tags_count"`
	TagScore        int      `json:"tag_score"`
}

// FilterRequest is the input of one orchestration run
type FilterRequest struct {
	TradeDate string // YYYYMMDD, required

	// TagCodes selects rules by code; nil means "all enabled rules"
	TagCodes []string
	// StockCodes bypasses the quick filter when non-nil
	StockCodes []string

	Persist      bool
	ForceRefresh bool

	// Per-run overrides for the two named filter rules
	JThreshold       *float64
	MacdDifThreshold *float64

	// UserID restricts the rule set to one owner; nil reads every owner's rows
	UserID *int64
}

// FilterResponse is the output of one orchestration run
type FilterResponse struct {
	RunID     string `json:"run_id"`
	TradeDate string `json:"trade_date"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Total     int    `json:"total"`
	Saved     int    `json:"saved"`

	// FilteredCodes echoes the candidate list when no explicit rule subset was given
	FilteredCodes []string       `json:"filtered_codes,omitempty"`
	Data          []SignalResult `json:"data"`

	PersistError string        `json:"persist_error,omitempty"`
	Stages       []StageResult `json:"stages,omitempty"`
}

// Empty-result messages
const (
	MsgNoTagRules       = "no tag rules configured"
	MsgNoCandidates     = "no stocks matched the filter rules"
	MsgNoStockData      = "no stock data found for the trade date"
	MsgNoVerifiedStocks = "no stocks left after filter verification"
)
