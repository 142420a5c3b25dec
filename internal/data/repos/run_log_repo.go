package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// RunLogRepository implements contracts.RunLogRepository
type RunLogRepository struct {
	pool *pgxpool.Pool
}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository(pool *pgxpool.Pool) *RunLogRepository {
	return &RunLogRepository{pool: pool}
}

// Insert writes one run log row
func (r *RunLogRepository) Insert(ctx context.Context, entry *contracts.RunLog) error {
	query := `
		INSERT INTO signals.b1_run_log (
			run_id, trade_date, strategy_type, user_id, status,
			candidate_count, evaluated_count, saved_count,
			message, config_hash, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.RunID,
		entry.TradeDate,
		entry.StrategyType,
		entry.UserID,
		string(entry.Status),
		entry.CandidateCount,
		entry.EvaluatedCount,
		entry.SavedCount,
		entry.Message,
		entry.ConfigHash,
		entry.StartedAt,
		entry.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	return nil
}

// Recent returns the latest limit runs, newest first
func (r *RunLogRepository) Recent(ctx context.Context, limit int) ([]contracts.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			run_id::text, trade_date, strategy_type, user_id, status,
			candidate_count, evaluated_count, saved_count,
			message, config_hash, started_at, finished_at
		FROM signals.b1_run_log
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	defer rows.Close()

	logs := make([]contracts.RunLog, 0, limit)
	for rows.Next() {
		var l contracts.RunLog
		var status string

		err := rows.Scan(
			&l.RunID, &l.TradeDate, &l.StrategyType, &l.UserID, &status,
			&l.CandidateCount, &l.EvaluatedCount, &l.SavedCount,
			&l.Message, &l.ConfigHash, &l.StartedAt, &l.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		l.Status = contracts.RunStatus(status)
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return logs, nil
}
