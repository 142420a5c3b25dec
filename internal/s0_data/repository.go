package s0_data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// ErrNoTradeDate is returned when the daily quote table is empty
var ErrNoTradeDate = errors.New("no trade date in daily quotes")

// Repository reads the Market Data Store (written by the external ETL)
// ⭐ SSOT: 시세/팩터 조회는 여기서만
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ActiveCodes returns every ts_code currently marked active
func (r *Repository) ActiveCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ts_code
		FROM data.stock_list
		WHERE is_active
		ORDER BY ts_code
	`)
	if err != nil {
		return nil, fmt.Errorf("query active stocks: %w", err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return codes, nil
}

// FactorSnapshots returns J and MACD-DIF of codes on date in one query
func (r *Repository) FactorSnapshots(ctx context.Context, date time.Time, codes []string) ([]contracts.FactorSnapshot, error) {
	if len(codes) == 0 {
		return []contracts.FactorSnapshot{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT ts_code, kdj_j, macd_dif
		FROM data.technical_factors
		WHERE trade_date = $1 AND ts_code = ANY($2)
		ORDER BY ts_code
	`, date, codes)
	if err != nil {
		return nil, fmt.Errorf("query factor snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.FactorSnapshot, 0, len(codes))
	for rows.Next() {
		var (
			f         contracts.FactorSnapshot
			kdjJ, dif *float64
		)
		if err := rows.Scan(&f.TsCode, &kdjJ, &dif); err != nil {
			return nil, fmt.Errorf("scan factor snapshot: %w", err)
		}
		f.KdjJ = contracts.FloatOrNaN(kdjJ)
		f.MacdDif = contracts.FloatOrNaN(dif)
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// Snapshots returns the quote row joined with its factor row (LEFT JOIN) for codes on date
func (r *Repository) Snapshots(ctx context.Context, date time.Time, codes []string) ([]contracts.StockSnapshot, error) {
	if len(codes) == 0 {
		return []contracts.StockSnapshot{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT
			q.ts_code, q.trade_date, COALESCE(q.name, ''),
			q.open, q.high, q.low, q.close, q.pre_close,
			q.pct_change, q.change, q.vol, q.amount,
			q.vol_ratio, q.turn_over, q.swing,
			q.total_mv, q.float_mv, COALESCE(q.industry, ''), COALESCE(q.area, ''),
			f.kdj_k, f.kdj_d, f.kdj_j,
			f.macd_dif, f.macd_dea, f.macd
		FROM data.daily_quotes q
		LEFT JOIN data.technical_factors f
			ON f.ts_code = q.ts_code AND f.trade_date = q.trade_date
		WHERE q.trade_date = $1 AND q.ts_code = ANY($2)
		ORDER BY q.ts_code
	`, date, codes)
	if err != nil {
		return nil, fmt.Errorf("query stock snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.StockSnapshot, 0, len(codes))
	for rows.Next() {
		var (
			s contracts.StockSnapshot
			v [20]*float64
		)
		if err := rows.Scan(
			&s.TsCode, &s.TradeDate, &s.Name,
			&v[0], &v[1], &v[2], &v[3], &v[4],
			&v[5], &v[6], &v[7], &v[8],
			&v[9], &v[10], &v[11],
			&v[12], &v[13], &s.Industry, &s.Area,
			&v[14], &v[15], &v[16],
			&v[17], &v[18], &v[19],
		); err != nil {
			return nil, fmt.Errorf("scan stock snapshot: %w", err)
		}

		n := contracts.FloatOrNaN
		s.Open, s.High, s.Low, s.Close, s.PreClose = n(v[0]), n(v[1]), n(v[2]), n(v[3]), n(v[4])
		s.PctChange, s.Change, s.Vol, s.Amount = n(v[5]), n(v[6]), n(v[7]), n(v[8])
		s.VolRatio, s.TurnOver, s.Swing = n(v[9]), n(v[10]), n(v[11])
		s.TotalMV, s.FloatMV = n(v[12]), n(v[13])
		s.KdjK, s.KdjD, s.KdjJ = n(v[14]), n(v[15]), n(v[16])
		s.MacdDif, s.MacdDea, s.Macd = n(v[17]), n(v[18]), n(v[19])

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// History returns the trailing days bars (trade_date <= date) per code, oldest first.
// Codes with fewer rows get a shorter slice; codes with none are absent.
func (r *Repository) History(ctx context.Context, date time.Time, days int, codes []string) (map[string][]contracts.Bar, error) {
	out := make(map[string][]contracts.Bar, len(codes))
	if len(codes) == 0 || days <= 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT ts_code, trade_date, open, high, low, close, pct_change, vol, amount
		FROM (
			SELECT
				ts_code, trade_date, open, high, low, close, pct_change, vol, amount,
				ROW_NUMBER() OVER (PARTITION BY ts_code ORDER BY trade_date DESC) AS rn
			FROM data.daily_quotes
			WHERE trade_date <= $1 AND ts_code = ANY($2)
		) h
		WHERE rn <= $3
		ORDER BY ts_code, trade_date ASC
	`, date, codes, days)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code string
			b    contracts.Bar
			v    [7]*float64
		)
		if err := rows.Scan(&code, &b.TradeDate, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6]); err != nil {
			return nil, fmt.Errorf("scan history bar: %w", err)
		}

		n := contracts.FloatOrNaN
		b.Open, b.High, b.Low, b.Close = n(v[0]), n(v[1]), n(v[2]), n(v[3])
		b.PctChange, b.Vol, b.Amount = n(v[4]), n(v[5]), n(v[6])

		out[code] = append(out[code], b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// LatestMovingAverages returns the most recent factor row on record per code.
// One query for the whole candidate set.
func (r *Repository) LatestMovingAverages(ctx context.Context, codes []string) (map[string]contracts.MovingAverages, error) {
	out := make(map[string]contracts.MovingAverages, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (ts_code) ts_code, trade_date, ma5, ma10, ma20, ma30
		FROM data.technical_factors
		WHERE ts_code = ANY($1)
		ORDER BY ts_code, trade_date DESC
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("query moving averages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ma contracts.MovingAverages
			v  [4]*float64
		)
		if err := rows.Scan(&ma.TsCode, &ma.TradeDate, &v[0], &v[1], &v[2], &v[3]); err != nil {
			return nil, fmt.Errorf("scan moving averages: %w", err)
		}

		n := contracts.FloatOrNaN
		ma.MA5, ma.MA10, ma.MA20, ma.MA30 = n(v[0]), n(v[1]), n(v[2]), n(v[3])
		out[ma.TsCode] = ma
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// LatestTradeDate returns MAX(trade_date) of data.daily_quotes
func (r *Repository) LatestTradeDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	if err := r.db.QueryRow(ctx, `SELECT MAX(trade_date) FROM data.daily_quotes`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("query latest trade date: %w", err)
	}
	if latest == nil {
		return time.Time{}, ErrNoTradeDate
	}
	return *latest, nil
}
