package s2_signals

import (
	"sort"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// RuleInput is what a rule evaluator sees for one stock on the trade date
type RuleInput struct {
	Current contracts.StockSnapshot
	History []contracts.Bar
	// MA is the latest moving-average row on record; nil when absent or the lookup failed
	MA *contracts.MovingAverages
}

// RuleFunc evaluates one plus/minus rule. threshold is the row's threshold_value (may be nil).
type RuleFunc func(in RuleInput, threshold *float64) bool

// noopRule never matches; returned for unknown codes
func noopRule(RuleInput, *float64) bool { return false }

// Rule codes
const (
	CodeRedFatGreenThin = "up1"
	CodeShrinkAfterDiv  = "up2"
	CodeSmallCandle     = "up3"
	CodeRecentAbnormal  = "up4"
	CodeDoubleVolumeRed = "up5"
	CodeAmplitudeOK     = "up6"
	CodeMarketCapOK     = "up7"
	CodeVolStable       = "vol_stable"
	CodeVolBottom       = "vol_bottom"
	CodeVolBreakout     = "vol_breakout"
	CodeMABull          = "ma_bull"
	CodeHighVolume      = "high_vol"
	CodeBreakMA         = "break_ma"
	CodeDownWithVolume1 = "down1"
	CodeDownWithVolume2 = "down2"
)

type registration struct {
	fn      RuleFunc
	needsMA bool
}

// Registry maps rule code → evaluator
// ⭐ SSOT: 태그 코드 → 평가 함수 매핑은 여기서만
type Registry struct {
	rules map[string]registration
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]registration)}
}

// DefaultRegistry returns the registry populated with every B1 plus/minus rule
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// plus
	r.Register(CodeRedFatGreenThin, func(in RuleInput, _ *float64) bool { return redFatGreenThin(in.History) })
	r.Register(CodeShrinkAfterDiv, func(in RuleInput, _ *float64) bool { return shrinkAfterDivergence(in.History) })
	r.Register(CodeSmallCandle, func(in RuleInput, _ *float64) bool { return smallCandle(in.Current.PctChange) })
	r.Register(CodeRecentAbnormal, func(in RuleInput, _ *float64) bool { return recentAbnormalMove(in.History) })
	r.Register(CodeDoubleVolumeRed, func(in RuleInput, _ *float64) bool { return doubleVolumeRed(in.History) })
	r.Register(CodeAmplitudeOK, func(in RuleInput, _ *float64) bool {
		return amplitudeAppropriate(in.Current.TsCode, in.Current.Swing)
	})
	r.Register(CodeMarketCapOK, func(in RuleInput, _ *float64) bool { return marketCapAppropriate(in.Current.TotalMV) })
	r.Register(CodeVolStable, func(in RuleInput, _ *float64) bool { return volStable(in.History) })
	r.Register(CodeVolBottom, func(in RuleInput, _ *float64) bool { return volBottom(in.Current.Amount, in.History) })
	r.Register(CodeVolBreakout, func(in RuleInput, _ *float64) bool {
		return volBreakout(in.Current.Amount, in.Current.PctChange, in.History)
	})
	r.RegisterWithMA(CodeMABull, func(in RuleInput, _ *float64) bool { return maBull(in.MA) })

	// minus
	r.Register(CodeHighVolume, func(in RuleInput, _ *float64) bool { return highVolume(in.Current.Amount, in.History) })
	r.RegisterWithMA(CodeBreakMA, func(in RuleInput, _ *float64) bool { return breakMA(in.Current.Close, in.MA) })
	r.Register(CodeDownWithVolume1, func(in RuleInput, _ *float64) bool { return downWithVolume1(in.History) })
	r.Register(CodeDownWithVolume2, func(in RuleInput, _ *float64) bool { return downWithVolume2(in.History) })

	return r
}

// Register adds or replaces the evaluator for code
func (r *Registry) Register(code string, fn RuleFunc) {
	r.rules[code] = registration{fn: fn}
}

// RegisterWithMA registers an evaluator that reads RuleInput.MA
func (r *Registry) RegisterWithMA(code string, fn RuleFunc) {
	r.rules[code] = registration{fn: fn, needsMA: true}
}

// Lookup returns the evaluator for code; unknown codes get a never-matching evaluator
func (r *Registry) Lookup(code string) RuleFunc {
	if reg, ok := r.rules[code]; ok {
		return reg.fn
	}
	return noopRule
}

// Has reports whether code is registered
func (r *Registry) Has(code string) bool {
	_, ok := r.rules[code]
	return ok
}

// NeedsMovingAverages reports whether any of rules reads the moving-average lookup
func (r *Registry) NeedsMovingAverages(rules ...[]contracts.TagRule) bool {
	for _, list := range rules {
		for _, t := range list {
			if reg, ok := r.rules[t.Code]; ok && reg.needsMA {
				return true
			}
		}
	}
	return false
}

// Codes returns every registered code, sorted
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.rules))
	for c := range r.rules {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
