package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository counts Market Data Store coverage
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Coverage counts active stocks with quotes, J/DIF factors, all four MAs
// and at least lookbackDays bars up to date
func (r *Repository) Coverage(ctx context.Context, date time.Time, lookbackDays int) (Coverage, error) {
	query := `
		WITH active AS (
			SELECT ts_code FROM data.stock_list WHERE is_active
		)
		SELECT
			(SELECT COUNT(*) FROM active),
			(SELECT COUNT(*) FROM data.daily_quotes q
				JOIN active a ON a.ts_code = q.ts_code
				WHERE q.trade_date = $1),
			(SELECT COUNT(*) FROM data.technical_factors f
				JOIN active a ON a.ts_code = f.ts_code
				WHERE f.trade_date = $1
					AND f.kdj_j IS NOT NULL AND f.macd_dif IS NOT NULL),
			(SELECT COUNT(*) FROM data.technical_factors f
				JOIN active a ON a.ts_code = f.ts_code
				WHERE f.trade_date = $1
					AND f.ma5 IS NOT NULL AND f.ma10 IS NOT NULL
					AND f.ma20 IS NOT NULL AND f.ma30 IS NOT NULL),
			(SELECT COUNT(*) FROM (
				SELECT q.ts_code
				FROM data.daily_quotes q
				JOIN active a ON a.ts_code = q.ts_code
				WHERE q.trade_date <= $1
				GROUP BY q.ts_code
				HAVING COUNT(*) >= $2
			) h)
	`

	cov := Coverage{Date: date}
	err := r.pool.QueryRow(ctx, query, date, lookbackDays).Scan(
		&cov.ActiveStocks,
		&cov.Quotes,
		&cov.Factors,
		&cov.MovingAverages,
		&cov.FullHistory,
	)
	if err != nil {
		return Coverage{}, fmt.Errorf("query coverage: %w", err)
	}

	return cov, nil
}
