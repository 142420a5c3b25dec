package strategyconfig

import "time"

// Config는 B1 태그 평가 파이프라인의 전체 설정
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	QuickFilter QuickFilter `yaml:"quick_filter" json:"quick_filter"`
	Detail      Detail      `yaml:"detail" json:"detail"`
	Scoring     Scoring     `yaml:"scoring" json:"scoring"`
	Persistence Persistence `yaml:"persistence" json:"persistence"`
	Schedule    Schedule    `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	StrategyType    string `yaml:"strategy_type" json:"strategy_type" validate:"required"`
	Version         string `yaml:"version" json:"version"`
	BootstrapUserID int64  `yaml:"bootstrap_user_id" json:"bootstrap_user_id" validate:"gt=0"` // admin 조회 실패 시 사용
}

// Universe 활성 종목 캐시
type Universe struct {
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gt=0"`
}

// QuickFilter 설정 row에 threshold_value가 없을 때의 기본값
type QuickFilter struct {
	JThreshold       float64 `yaml:"j_threshold" json:"j_threshold"`
	MacdDifThreshold float64 `yaml:"macd_dif_threshold" json:"macd_dif_threshold"`
}

// Detail 상세 평가
type Detail struct {
	LookbackDays       int `yaml:"lookback_days" json:"lookback_days" validate:"gte=10"` // down1/high_vol 규칙은 최소 10일 필요
	DisplayFactorLimit int `yaml:"display_factor_limit" json:"display_factor_limit" validate:"gt=0"`
}

// Scoring 신호 강도 분류 (strong → medium → weak 순서)
type Scoring struct {
	StrongMinScore       int     `yaml:"strong_min_score" json:"strong_min_score"`
	StrongMinVolumeRatio float64 `yaml:"strong_min_volume_ratio" json:"strong_min_volume_ratio" validate:"gte=0"`
	MediumMinScore       int     `yaml:"medium_min_score" json:"medium_min_score"`
}

// Persistence 결과 저장
type Persistence struct {
	BatchSize int `yaml:"batch_size" json:"batch_size" validate:"gte=1,lte=1900"` // bind 파라미터 상한 65535 / 컬럼 32개
}

// Schedule 일일 작업 (cron, 초 필드 포함)
type Schedule struct {
	Cron     string `yaml:"cron" json:"cron" validate:"required"`
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`
}

// Default returns the settings used when no YAML file is configured
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyType:    "B1",
			Version:         "1",
			BootstrapUserID: 1,
		},
		Universe: Universe{CacheTTL: 30 * time.Minute},
		QuickFilter: QuickFilter{
			JThreshold:       13,
			MacdDifThreshold: 0,
		},
		Detail: Detail{
			LookbackDays:       20,
			DisplayFactorLimit: 8,
		},
		Scoring: Scoring{
			StrongMinScore:       5,
			StrongMinVolumeRatio: 2.0,
			MediumMinScore:       3,
		},
		Persistence: Persistence{BatchSize: 1000},
		Schedule: Schedule{
			Cron:     "0 35 20 * * *",
			Timezone: "Asia/Shanghai",
		},
	}
}
