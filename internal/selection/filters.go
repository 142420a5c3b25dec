package selection

import (
	"fmt"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// Filter rule codes
const (
	CodeJBelow       = "j_lt_13_qfq"       // KDJ J <= threshold
	CodeMacdDifAbove = "macd_dif_gt_0_qfq" // MACD DIF > threshold
)

// Overrides are per-run thresholds for the two named filter rules.
// A non-nil override wins over the configuration row.
type Overrides struct {
	JThreshold       *float64
	MacdDifThreshold *float64
}

// Defaults are used when neither an override nor a row threshold exists
type Defaults struct {
	JThreshold       float64
	MacdDifThreshold float64
}

// filterRule is one registered filter evaluator
type filterRule struct {
	op       string
	match    func(f contracts.FactorSnapshot, threshold float64) bool
	override func(Overrides) *float64
	fallback func(Defaults) float64
}

var filterRegistry = map[string]filterRule{
	CodeJBelow: {
		op:       "J <=",
		match:    func(f contracts.FactorSnapshot, thr float64) bool { return f.KdjJ <= thr },
		override: func(o Overrides) *float64 { return o.JThreshold },
		fallback: func(d Defaults) float64 { return d.JThreshold },
	},
	CodeMacdDifAbove: {
		op:       "MACD-DIF >",
		match:    func(f contracts.FactorSnapshot, thr float64) bool { return f.MacdDif > thr },
		override: func(o Overrides) *float64 { return o.MacdDifThreshold },
		fallback: func(d Defaults) float64 { return d.MacdDifThreshold },
	},
}

// IsKnownFilter reports whether code has a filter evaluator
func IsKnownFilter(code string) bool {
	_, ok := filterRegistry[code]
	return ok
}

// Threshold resolves the effective threshold: override, then row value, then default.
// A per-run override of 0 is honored; a stored 0 counts as unset.
// ok is false for unknown codes.
func Threshold(tag contracts.TagRule, ov Overrides, def Defaults) (float64, bool) {
	rule, ok := filterRegistry[tag.Code]
	if !ok {
		return 0, false
	}
	if v := rule.override(ov); v != nil {
		return *v, true
	}
	if tag.Threshold != nil && *tag.Threshold != 0 {
		return *tag.Threshold, true
	}
	return rule.fallback(def), true
}

// boundFilter is a filter rule with its threshold resolved for one run
type boundFilter struct {
	code      string
	desc      string
	threshold float64
	match     func(f contracts.FactorSnapshot, threshold float64) bool
}

// bindFilters resolves thresholds once per run; unknown codes are dropped (no-op)
func bindFilters(tags []contracts.TagRule, ov Overrides, def Defaults) []boundFilter {
	bound := make([]boundFilter, 0, len(tags))
	for _, tag := range tags {
		thr, ok := Threshold(tag, ov, def)
		if !ok {
			continue
		}
		rule := filterRegistry[tag.Code]
		bound = append(bound, boundFilter{
			code:      tag.Code,
			desc:      fmt.Sprintf("%s %g", rule.op, thr),
			threshold: thr,
			match:     rule.match,
		})
	}
	return bound
}

// passesAll is the logical AND of every bound filter
func passesAll(f contracts.FactorSnapshot, filters []boundFilter) bool {
	for _, bf := range filters {
		if !bf.match(f, bf.threshold) {
			return false
		}
	}
	return true
}
