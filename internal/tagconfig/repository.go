package tagconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b1signal/backend/internal/contracts"
)

// Repository reads config.strategy_config_tags
// ⭐ SSOT: 태그 설정 조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tag configuration repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectTags = `
	SELECT
		id, user_id, tag_name, tag_code, strategy_type, category,
		COALESCE(meaning, ''), is_enabled, is_filter, threshold_value, sort_order
	FROM config.strategy_config_tags
	WHERE strategy_type = $1
	  AND ($2::bigint IS NULL OR user_id = $2)
`

const orderTags = ` ORDER BY is_filter DESC, sort_order ASC, id ASC`

// LoadRules returns enabled rules, or the rules named by codes regardless of the enabled flag
func (r *Repository) LoadRules(ctx context.Context, strategy string, codes []string, userID *int64) ([]contracts.TagRule, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if len(codes) > 0 {
		rows, err = r.pool.Query(ctx, selectTags+` AND tag_code = ANY($3)`+orderTags, strategy, userID, codes)
	} else {
		rows, err = r.pool.Query(ctx, selectTags+` AND is_enabled`+orderTags, strategy, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tag config: %w", err)
	}

	return scanRules(rows)
}

// ListAll returns every rule of the strategy, enabled or not
func (r *Repository) ListAll(ctx context.Context, strategy string, userID *int64) ([]contracts.TagRule, error) {
	rows, err := r.pool.Query(ctx, selectTags+orderTags, strategy, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag config: %w", err)
	}

	return scanRules(rows)
}

// AdminUserID returns the lowest id among admin users (owner of the canonical rule set)
func (r *Repository) AdminUserID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM auth.users
		WHERE role = 'admin'
		ORDER BY id
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, contracts.ErrNoAdmin
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query admin user: %w", err)
	}
	return id, nil
}

func scanRules(rows pgx.Rows) ([]contracts.TagRule, error) {
	defer rows.Close()

	rules := make([]contracts.TagRule, 0)
	for rows.Next() {
		var (
			t        contracts.TagRule
			category string
		)
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Name, &t.Code, &t.StrategyType, &category,
			&t.Meaning, &t.Enabled, &t.IsFilter, &t.Threshold, &t.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		t.Category = contracts.TagCategory(category)
		rules = append(rules, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}

	return rules, nil
}
