package s2_signals

import (
	"strings"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// ScoringConfig holds the classification gates
type ScoringConfig struct {
	StrongMinScore       int
	StrongMinVolumeRatio float64
	MediumMinScore       int
}

// DefaultScoring returns strong >= 5 with volume ratio >= 2.0, medium >= 3
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		StrongMinScore:       5,
		StrongMinVolumeRatio: 2.0,
		MediumMinScore:       3,
	}
}

// Classify maps a tag score and volume ratio to a strength; first match wins
func (c ScoringConfig) Classify(tagScore int, volumeRatio float64) contracts.SignalStrength {
	switch {
	case tagScore >= c.StrongMinScore && volumeRatio >= c.StrongMinVolumeRatio:
		return contracts.SignalStrong
	case tagScore >= c.MediumMinScore:
		return contracts.SignalMedium
	default:
		return contracts.SignalWeak
	}
}

// DisplayFactor joins the names of the first limit matched rules,
// filter rules first then ascending sort order
func DisplayFactor(matched []contracts.TagRule, limit int) string {
	sorted := make([]contracts.TagRule, len(matched))
	copy(sorted, matched)
	contracts.SortTagRules(sorted)

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	names := make([]string, len(sorted))
	for i, t := range sorted {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
