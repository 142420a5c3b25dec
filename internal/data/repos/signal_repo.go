package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/database"
	"github.com/wonny/b1signal/backend/pkg/logger"
	"github.com/wonny/b1signal/backend/pkg/redis"
)

// DefaultBatchSize is the number of rows per multi-row INSERT
const DefaultBatchSize = 1000

// resultColumns is the insert/select column order of signals.b1_signal_results
var resultColumns = []string{
	"ts_code", "stock_name", "trade_date", "signal_strength",
	"open_price", "high_price", "low_price", "close_price",
	"price_change", "pct_change", "volume", "amount",
	"volume_ratio", "turnover_rate",
	"j_value", "k_value", "d_value",
	"macd_dif", "macd_dea", "macd_value",
	"total_mv", "circ_mv", "industry", "area",
	"display_factor", "matched_tag_ids", "matched_tag_names", "matched_tag_codes",
	"plus_tags_count", "minus_tags_count", "tag_score",
}

// SignalRepository implements contracts.SignalResultRepository
// ⭐ SSOT: B1 결과 저장/조회는 여기서만
type SignalRepository struct {
	db        *database.DB
	cache     *redis.Cache
	batchSize int
	logger    *logger.Logger
}

// NewSignalRepository creates a new signal result repository. cache may be nil.
func NewSignalRepository(db *database.DB, cache *redis.Cache, batchSize int, log *logger.Logger) *SignalRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SignalRepository{
		db:        db,
		cache:     cache,
		batchSize: batchSize,
		logger:    log.Component("signal_repo"),
	}
}

// Save replaces every result of date with results inside one transaction.
// Any failure rolls back, leaving the previous rows intact.
func (r *SignalRepository) Save(ctx context.Context, date time.Time, results []contracts.SignalResult) (int, error) {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM signals.b1_signal_results WHERE trade_date = $1`, date); err != nil {
			return fmt.Errorf("failed to delete previous results: %w", err)
		}

		for start := 0; start < len(results); start += r.batchSize {
			end := start + r.batchSize
			if end > len(results) {
				end = len(results)
			}

			query, args := buildInsert(results[start:end])
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert results [%d:%d]: %w", start, end, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("trade_date", contracts.FormatTradeDate(date)).Error("Save failed, rolled back")
		return 0, err
	}

	r.invalidate(ctx, date)

	r.logger.WithFields(map[string]interface{}{
		"trade_date": contracts.FormatTradeDate(date),
		"saved":      len(results),
	}).Info("Signal results saved")

	return len(results), nil
}

// buildInsert renders one multi-row INSERT for rows
func buildInsert(rows []contracts.SignalResult) (string, []interface{}) {
	cols := len(resultColumns)
	args := make([]interface{}, 0, len(rows)*cols)
	tuples := make([]string, len(rows))

	for i, res := range rows {
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		tuples[i] = "(" + strings.Join(ph, ", ") + ")"
		args = append(args, resultArgs(res)...)
	}

	query := fmt.Sprintf(
		"INSERT INTO signals.b1_signal_results (%s) VALUES %s",
		strings.Join(resultColumns, ", "),
		strings.Join(tuples, ", "),
	)
	return query, args
}

func resultArgs(res contracts.SignalResult) []interface{} {
	ids := res.MatchedTagIDs
	if ids == nil {
		ids = []int64{}
	}
	names := res.MatchedTagNames
	if names == nil {
		names = []string{}
	}
	codes := res.MatchedTagCodes
	if codes == nil {
		codes = []string{}
	}

	return []interface{}{
		res.TsCode, res.StockName, res.TradeDate, string(res.Strength),
		res.OpenPrice, res.HighPrice, res.LowPrice, res.ClosePrice,
		res.PriceChange, res.PctChange, res.Volume, res.Amount,
		res.VolumeRatio, res.TurnoverRate,
		res.JValue, res.KValue, res.DValue,
		res.MacdDif, res.MacdDea, res.MacdValue,
		res.TotalMV, res.CircMV, res.Industry, res.Area,
		res.DisplayFactor, ids, names, codes,
		res.PlusCount, res.MinusCount, res.TagScore,
	}
}

// GetByDate returns the persisted results of date ordered by tag score desc, ts_code asc.
// strength == "" returns every strength; limit <= 0 means no limit.
// The full day is cached once; strength and limit are applied on the cached list.
func (r *SignalRepository) GetByDate(ctx context.Context, date time.Time, strength contracts.SignalStrength, limit int) ([]contracts.SignalResult, error) {
	var all []contracts.SignalResult

	load := func() (interface{}, error) {
		return r.queryByDate(ctx, date)
	}

	if r.cache != nil {
		key := redis.SignalResultsKey(contracts.FormatTradeDate(date))
		if err := r.cache.GetOrSet(ctx, key, &all, redis.TTLDaily, load); err != nil {
			return nil, err
		}
	} else {
		rows, err := r.queryByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		all = rows
	}

	return filterResults(all, strength, limit), nil
}

func filterResults(all []contracts.SignalResult, strength contracts.SignalStrength, limit int) []contracts.SignalResult {
	out := make([]contracts.SignalResult, 0, len(all))
	for _, res := range all {
		if strength != "" && res.Strength != strength {
			continue
		}
		out = append(out, res)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r *SignalRepository) queryByDate(ctx context.Context, date time.Time) ([]contracts.SignalResult, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM signals.b1_signal_results
		WHERE trade_date = $1
		ORDER BY tag_score DESC, ts_code ASC
	`, strings.Join(resultColumns, ", "))

	rows, err := r.db.Pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal results: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.SignalResult, 0)
	for rows.Next() {
		var res contracts.SignalResult
		var strength string

		err := rows.Scan(
			&res.TsCode, &res.StockName, &res.TradeDate, &strength,
			&res.OpenPrice, &res.HighPrice, &res.LowPrice, &res.ClosePrice,
			&res.PriceChange, &res.PctChange, &res.Volume, &res.Amount,
			&res.VolumeRatio, &res.TurnoverRate,
			&res.JValue, &res.KValue, &res.DValue,
			&res.MacdDif, &res.MacdDea, &res.MacdValue,
			&res.TotalMV, &res.CircMV, &res.Industry, &res.Area,
			&res.DisplayFactor, &res.MatchedTagIDs, &res.MatchedTagNames, &res.MatchedTagCodes,
			&res.PlusCount, &res.MinusCount, &res.TagScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal result: %w", err)
		}
		res.Strength = contracts.SignalStrength(strength)
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// invalidate drops the cached read of date; a failure only costs staleness until TTL
func (r *SignalRepository) invalidate(ctx context.Context, date time.Time) {
	if r.cache == nil {
		return
	}
	key := redis.SignalResultsKey(contracts.FormatTradeDate(date))
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.WithError(err).WithField("key", r.cache.FullKey(key)).Warn("Cache invalidation failed")
	}
}
