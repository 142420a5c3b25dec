package strategyconfig

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := "../../config/b1_signal.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.StrategyType != "B1" {
		t.Errorf("expected strategy_type=B1, got %s", cfg.Meta.StrategyType)
	}
	if cfg.Universe.CacheTTL != 30*time.Minute {
		t.Errorf("expected cache_ttl=30m, got %s", cfg.Universe.CacheTTL)
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 파일 값 = 기본값 → 동일 해시
	defHash, _ := Hash(Default())
	if hash != defHash {
		t.Error("shipped config should hash like Default()")
	}

	t.Logf("config hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("quick_filter:\n  j_threshold: 20\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.QuickFilter.JThreshold != 20 {
		t.Errorf("expected j_threshold=20, got %v", cfg.QuickFilter.JThreshold)
	}
	if cfg.Detail.LookbackDays != 20 {
		t.Errorf("expected default lookback 20, got %d", cfg.Detail.LookbackDays)
	}
	if cfg.Persistence.BatchSize != 1000 {
		t.Errorf("expected default batch size 1000, got %d", cfg.Persistence.BatchSize)
	}
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("quick_filter:\n  j_treshold: 20\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty strategy", func(c *Config) { c.Meta.StrategyType = "" }, "meta.strategy_type"},
		{"zero ttl", func(c *Config) { c.Universe.CacheTTL = 0 }, "universe.cache_ttl"},
		{"zero bootstrap user", func(c *Config) { c.Meta.BootstrapUserID = 0 }, "meta.bootstrap_user_id"},
		{"zero display limit", func(c *Config) { c.Detail.DisplayFactorLimit = 0 }, "detail.display_factor_limit"},
		{"empty batch", func(c *Config) { c.Persistence.BatchSize = 0 }, "persistence.batch_size"},
		{"nan j threshold", func(c *Config) { c.QuickFilter.JThreshold = math.NaN() }, "quick_filter.j_threshold"},
		{"short lookback", func(c *Config) { c.Detail.LookbackDays = 5 }, "detail.lookback_days"},
		{"scoring order", func(c *Config) { c.Scoring.MediumMinScore = 9 }, "scoring"},
		{"batch too big", func(c *Config) { c.Persistence.BatchSize = 5000 }, "persistence.batch_size"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "35 20 * * *" }, "schedule.cron"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestValidate_Message(t *testing.T) {
	cfg := Default()
	cfg.Detail.LookbackDays = 5

	err := Validate(cfg)
	if err == nil || err.Error() != "detail.lookback_days: must be >= 10" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Scoring.StrongMinScore != 5 {
		t.Errorf("expected strong_min_score=5, got %d", cfg.Scoring.StrongMinScore)
	}
}
