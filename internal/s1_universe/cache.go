package s1_universe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// DefaultTTL is how long a fetched universe stays valid
const DefaultTTL = 30 * time.Minute

// Cache holds the last-fetched list of active stock codes plus its expiry.
// One instance is constructed at startup and shared by every pipeline run.
// ⭐ SSOT: 활성 종목 유니버스 캐싱은 이 구조체에서만
type Cache struct {
	mu        sync.Mutex
	source    contracts.ActiveCodeSource
	codes     []string
	expiresAt time.Time
	loaded    bool

	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a universe cache backed by source
func NewCache(source contracts.ActiveCodeSource, ttl time.Duration, log *logger.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: log.Component("universe"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetActiveCodes returns the cached list while it is valid, otherwise refetches.
// forceRefresh always refetches. The returned slice is a copy.
func (c *Cache) GetActiveCodes(ctx context.Context, forceRefresh bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !forceRefresh && c.loaded && now.Before(c.expiresAt) {
		c.logger.WithFields(map[string]interface{}{
			"count":      len(c.codes),
			"expires_at": c.expiresAt.Format(time.RFC3339),
		}).Debug("Universe cache hit")
		return copyCodes(c.codes), nil
	}

	codes, err := c.source.ActiveCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active codes: %w", err)
	}

	c.codes = copyCodes(codes)
	c.expiresAt = now.Add(c.ttl)
	c.loaded = true

	c.logger.WithFields(map[string]interface{}{
		"count":         len(codes),
		"expires_at":    c.expiresAt.Format(time.RFC3339),
		"force_refresh": forceRefresh,
	}).Info("Universe cache refreshed")

	return copyCodes(codes), nil
}

// Clear drops the cached list so the next call refetches regardless of forceRefresh
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.codes = nil
	c.expiresAt = time.Time{}
	c.loaded = false

	c.logger.Info("Universe cache cleared")
}

// ExpiresAt returns the current expiry, zero when nothing is cached
func (c *Cache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

func copyCodes(codes []string) []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}
