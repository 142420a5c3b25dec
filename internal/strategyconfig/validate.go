package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validate reports field paths by their yaml names (meta.strategy_type)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks all required constraints.
// Range checks are struct tags; cross-field, cron and timezone checks follow.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{yamlPath(fe.Namespace()), rule(fe)}
		}
		return fmt.Errorf("validate config: %w", err)
	}

	// === QuickFilter ===
	if !isFinite(cfg.QuickFilter.JThreshold) {
		return ValidationError{"quick_filter.j_threshold", "must be finite"}
	}
	if !isFinite(cfg.QuickFilter.MacdDifThreshold) {
		return ValidationError{"quick_filter.macd_dif_threshold", "must be finite"}
	}

	// === Scoring ===
	if cfg.Scoring.StrongMinScore < cfg.Scoring.MediumMinScore {
		return ValidationError{"scoring", "strong_min_score must be >= medium_min_score"}
	}
	if !isFinite(cfg.Scoring.StrongMinVolumeRatio) {
		return ValidationError{"scoring.strong_min_volume_ratio", "must be finite"}
	}

	// === Schedule ===
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cfg.Schedule.Cron); err != nil {
		return ValidationError{"schedule.cron", err.Error()}
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return ValidationError{"schedule.timezone", err.Error()}
	}

	return nil
}

// yamlPath drops the root struct name: Config.meta.strategy_type → meta.strategy_type
func yamlPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
