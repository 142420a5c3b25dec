package repos

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/config"
	"github.com/wonny/b1signal/backend/pkg/database"
	"github.com/wonny/b1signal/backend/pkg/logger"
	"github.com/wonny/b1signal/backend/pkg/redis"
)

func result(code string, score int, strength contracts.SignalStrength) contracts.SignalResult {
	price := 10.5
	return contracts.SignalResult{
		TsCode:          code,
		StockName:       "name-" + code,
		TradeDate:       time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC),
		Strength:        strength,
		ResultSnapshot:  contracts.ResultSnapshot{ClosePrice: &price, Industry: "银行"},
		DisplayFactor:   "J值<13, MACD-DIF>0",
		MatchedTagIDs:   []int64{1, 2},
		MatchedTagNames: []string{"J值<13", "MACD-DIF>0"},
		MatchedTagCodes: []string{"j_lt_13_qfq", "macd_dif_gt_0_qfq"},
		PlusCount:       score,
		TagScore:        score,
	}
}

func TestBuildInsert_Placeholders(t *testing.T) {
	rows := []contracts.SignalResult{result("600000.SH", 3, contracts.SignalMedium), result("000001.SZ", 1, contracts.SignalWeak)}

	query, args := buildInsert(rows)

	cols := len(resultColumns)
	assert.Len(t, args, 2*cols)
	assert.Contains(t, query, "INSERT INTO signals.b1_signal_results (ts_code, stock_name")
	assert.Contains(t, query, "($1, $2,")
	assert.Contains(t, query, fmt.Sprintf("$%d)", 2*cols))
	assert.Equal(t, 2, strings.Count(query, "($"))

	// second row starts after the first row's arguments
	assert.Equal(t, "000001.SZ", args[cols])
	assert.Equal(t, "weak", args[cols+3])
}

func TestResultArgs_NilSlicesBecomeEmptyArrays(t *testing.T) {
	res := result("600000.SH", 0, contracts.SignalWeak)
	res.MatchedTagIDs = nil
	res.MatchedTagNames = nil
	res.MatchedTagCodes = nil

	args := resultArgs(res)
	require.Len(t, args, len(resultColumns))
	assert.Equal(t, []int64{}, args[25])
	assert.Equal(t, []string{}, args[26])
	assert.Equal(t, []string{}, args[27])
}

func TestFilterResults(t *testing.T) {
	all := []contracts.SignalResult{
		result("A", 6, contracts.SignalStrong),
		result("B", 4, contracts.SignalMedium),
		result("C", 3, contracts.SignalMedium),
		result("D", 1, contracts.SignalWeak),
	}

	assert.Len(t, filterResults(all, "", 0), 4)
	assert.Len(t, filterResults(all, "", 2), 2)

	medium := filterResults(all, contracts.SignalMedium, 0)
	require.Len(t, medium, 2)
	assert.Equal(t, "B", medium[0].TsCode)
	assert.Equal(t, "C", medium[1].TsCode)

	assert.Len(t, filterResults(all, contracts.SignalMedium, 1), 1)
	assert.Empty(t, filterResults(nil, contracts.SignalStrong, 5))
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	status, err := db.HealthCheck(context.Background())
	require.NoError(t, err)
	if len(status.Relations) > 0 {
		t.Skipf("schema not migrated, missing %v", status.Relations)
	}
	return db
}

func TestSignalRepository_SaveReplacesDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	repo := NewSignalRepository(db, redis.NewCache(redis.Disabled(), "b1test"), 1, logger.NewNop())
	date := time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM signals.b1_signal_results WHERE trade_date = $1`, date)
	})

	first := []contracts.SignalResult{
		result("600000.SH", 3, contracts.SignalMedium),
		result("000001.SZ", 1, contracts.SignalWeak),
		result("300750.SZ", 6, contracts.SignalStrong),
	}
	saved, err := repo.Save(ctx, date, first)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	got, err := repo.GetByDate(ctx, date, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "300750.SZ", got[0].TsCode, "ordered by tag score desc")
	assert.Equal(t, []string{"j_lt_13_qfq", "macd_dif_gt_0_qfq"}, got[0].MatchedTagCodes)
	require.NotNil(t, got[0].ClosePrice)
	assert.Nil(t, got[0].OpenPrice, "NULL column round-trips as nil")

	// second run replaces the date wholesale
	saved, err = repo.Save(ctx, date, first[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	got, err = repo.GetByDate(ctx, date, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "600000.SH", got[0].TsCode)
}

func TestSignalRepository_SaveFailureKeepsPreviousRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	repo := NewSignalRepository(db, nil, 10, logger.NewNop())
	date := time.Date(2031, 1, 16, 0, 0, 0, 0, time.UTC)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM signals.b1_signal_results WHERE trade_date = $1`, date)
	})

	kept := result("600000.SH", 2, contracts.SignalWeak)
	kept.TradeDate = date
	_, err := repo.Save(ctx, date, []contracts.SignalResult{kept})
	require.NoError(t, err)

	// duplicate (ts_code, trade_date) violates the unique key mid-transaction
	dup := result("000001.SZ", 1, contracts.SignalWeak)
	dup.TradeDate = date
	saved, err := repo.Save(ctx, date, []contracts.SignalResult{dup, dup})
	assert.Error(t, err)
	assert.Equal(t, 0, saved)

	got, err := repo.GetByDate(ctx, date, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "600000.SH", got[0].TsCode)
}
