package contracts

import "sort"

// TagCategory classifies a tag rule
type TagCategory string

const (
	TagCategoryFilter TagCategory = "filter"
	TagCategoryPlus   TagCategory = "plus"
	TagCategoryMinus  TagCategory = "minus"
)

// StrategyB1 is the strategy identifier of the canonical B1 rule set
const StrategyB1 = "B1"

// TagRule is one configurable rule row
// ⭐ SSOT: config.strategy_config_tags 한 row
type TagRule struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	Name         string      `json:"tag_name"`
	Code         string      `json:"tag_code"`
	StrategyType string      `json:"strategy_type"`
	Category     TagCategory `json:"category"`
	Meaning      string      `json:"meaning,omitempty"`
	Enabled      bool        `json:"is_enabled"`
	IsFilter     bool        `json:"is_filter"`
	Threshold    *float64    `json:"threshold_value,omitempty"` // nil = 설정 없음
	SortOrder    int         `json:"sort_order"`
}

// TagConfig is a loaded rule set split into three disjoint lists
type TagConfig struct {
	Filter []TagRule `json:"filter_tags"`
	Plus   []TagRule `json:"plus_tags"`
	Minus  []TagRule `json:"minus_tags"`
}

// Count returns the number of rules across all lists
func (c TagConfig) Count() int {
	return len(c.Filter) + len(c.Plus) + len(c.Minus)
}

// IsEmpty reports whether no rule was loaded
func (c TagConfig) IsEmpty() bool {
	return c.Count() == 0
}

// SplitTagRules partitions rules: is-filter rules regardless of category,
// non-filter plus rules, and minus rules. A minus rule flagged as filter
// lands in both Filter and Minus, as the configuration table allows it.
func SplitTagRules(rules []TagRule) TagConfig {
	var cfg TagConfig
	for _, r := range rules {
		if r.IsFilter {
			cfg.Filter = append(cfg.Filter, r)
		}
		if r.Category == TagCategoryPlus && !r.IsFilter {
			cfg.Plus = append(cfg.Plus, r)
		}
		if r.Category == TagCategoryMinus {
			cfg.Minus = append(cfg.Minus, r)
		}
	}
	return cfg
}

// SortTagRules orders rules is-filter first, then by ascending sort order
func SortTagRules(rules []TagRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].IsFilter != rules[j].IsFilter {
			return rules[i].IsFilter
		}
		return rules[i].SortOrder < rules[j].SortOrder
	})
}
