package tagconfig

import (
	"context"
	"fmt"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// Loader turns configuration rows into a split TagConfig
type Loader struct {
	repo     contracts.TagRuleRepository
	strategy string
	logger   *logger.Logger
}

// NewLoader creates a loader for one strategy (e.g. "B1")
func NewLoader(repo contracts.TagRuleRepository, strategy string, log *logger.Logger) *Loader {
	return &Loader{
		repo:     repo,
		strategy: strategy,
		logger:   log.Component("tagconfig"),
	}
}

// Load returns filter/plus/minus rule lists.
// An empty codes slice is treated like nil: all enabled rules.
func (l *Loader) Load(ctx context.Context, codes []string, userID *int64) (contracts.TagConfig, error) {
	rules, err := l.repo.LoadRules(ctx, l.strategy, codes, userID)
	if err != nil {
		return contracts.TagConfig{}, fmt.Errorf("load tag config: %w", err)
	}

	contracts.SortTagRules(rules)
	cfg := contracts.SplitTagRules(rules)

	l.logger.WithFields(map[string]interface{}{
		"strategy": l.strategy,
		"filter":   len(cfg.Filter),
		"plus":     len(cfg.Plus),
		"minus":    len(cfg.Minus),
		"subset":   len(codes) > 0,
	}).Info("Tag config loaded")

	return cfg, nil
}

// ListAll returns every rule for display, ordered like Load
func (l *Loader) ListAll(ctx context.Context, userID *int64) ([]contracts.TagRule, error) {
	rules, err := l.repo.ListAll(ctx, l.strategy, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	contracts.SortTagRules(rules)
	return rules, nil
}
