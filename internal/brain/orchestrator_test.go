package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/internal/s2_signals"
	"github.com/wonny/b1signal/backend/internal/selection"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

// ---- fakes ----

type fakeLoader struct {
	cfg   contracts.TagConfig
	err   error
	codes [][]string
}

func (l *fakeLoader) Load(_ context.Context, codes []string, _ *int64) (contracts.TagConfig, error) {
	l.codes = append(l.codes, codes)
	return l.cfg, l.err
}

type fakeUniverse struct {
	codes []string
	calls int
}

func (u *fakeUniverse) GetActiveCodes(_ context.Context, _ bool) ([]string, error) {
	u.calls++
	return u.codes, nil
}

// fakeMarket answers both the quick-filter and the detail queries from one table
type fakeMarket struct {
	factors   map[string]contracts.FactorSnapshot
	snapshots map[string]contracts.StockSnapshot
	history   map[string][]contracts.Bar
	detailErr error
}

func (m *fakeMarket) FactorSnapshots(_ context.Context, _ time.Time, codes []string) ([]contracts.FactorSnapshot, error) {
	var out []contracts.FactorSnapshot
	for _, c := range codes {
		if f, ok := m.factors[c]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *fakeMarket) Snapshots(_ context.Context, _ time.Time, codes []string) ([]contracts.StockSnapshot, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	var out []contracts.StockSnapshot
	for _, c := range codes {
		if s, ok := m.snapshots[c]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *fakeMarket) History(_ context.Context, _ time.Time, _ int, codes []string) (map[string][]contracts.Bar, error) {
	out := make(map[string][]contracts.Bar)
	for _, c := range codes {
		if h, ok := m.history[c]; ok {
			out[c] = h
		}
	}
	return out, nil
}

func (m *fakeMarket) LatestMovingAverages(_ context.Context, _ []string) (map[string]contracts.MovingAverages, error) {
	return map[string]contracts.MovingAverages{}, nil
}

// replaceStore mimics delete-then-insert per trade date
type replaceStore struct {
	rows  map[string][]contracts.SignalResult
	err   error
	saves int
}

func newReplaceStore() *replaceStore {
	return &replaceStore{rows: make(map[string][]contracts.SignalResult)}
}

func (s *replaceStore) Save(_ context.Context, date time.Time, results []contracts.SignalResult) (int, error) {
	s.saves++
	if s.err != nil {
		return 0, s.err
	}
	key := contracts.FormatTradeDate(date)
	s.rows[key] = append([]contracts.SignalResult{}, results...)
	return len(results), nil
}

func (s *replaceStore) GetByDate(_ context.Context, date time.Time, _ contracts.SignalStrength, _ int) ([]contracts.SignalResult, error) {
	return s.rows[contracts.FormatTradeDate(date)], nil
}

type fakeRunLog struct {
	entries []contracts.RunLog
}

func (l *fakeRunLog) Insert(_ context.Context, e *contracts.RunLog) error {
	l.entries = append(l.entries, *e)
	return nil
}

func (l *fakeRunLog) Recent(_ context.Context, _ int) ([]contracts.RunLog, error) {
	return l.entries, nil
}

// ---- fixtures ----

var (
	fixedNow = time.Date(2024, 1, 15, 20, 35, 0, 0, time.UTC)

	jTag     = contracts.TagRule{ID: 1, Name: "J值<13", Code: selection.CodeJBelow, Category: contracts.TagCategoryFilter, IsFilter: true, SortOrder: 1}
	macdTag  = contracts.TagRule{ID: 2, Name: "MACD-DIF>0", Code: selection.CodeMacdDifAbove, Category: contracts.TagCategoryFilter, IsFilter: true, SortOrder: 2}
	up3Tag   = contracts.TagRule{ID: 3, Name: "小阴小阳", Code: s2_signals.CodeSmallCandle, Category: contracts.TagCategoryPlus, SortOrder: 3}
	up7Tag   = contracts.TagRule{ID: 4, Name: "市值适当", Code: s2_signals.CodeMarketCapOK, Category: contracts.TagCategoryPlus, SortOrder: 4}
	down2Tag = contracts.TagRule{ID: 5, Name: "涨停缩量", Code: s2_signals.CodeDownWithVolume2, Category: contracts.TagCategoryMinus, SortOrder: 5}

	fullConfig = contracts.TagConfig{
		Filter: []contracts.TagRule{jTag, macdTag},
		Plus:   []contracts.TagRule{up3Tag, up7Tag},
		Minus:  []contracts.TagRule{down2Tag},
	}
)

func stock(code string, j, dif, pct, mv float64) contracts.StockSnapshot {
	s := contracts.StockSnapshot{}
	s.TsCode = code
	s.Name = "name-" + code
	s.TradeDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	s.KdjJ = j
	s.MacdDif = dif
	s.PctChange = pct
	s.TotalMV = mv
	s.VolRatio = 1.2
	s.Close = 12.3
	return s
}

func history(limitUp bool) []contracts.Bar {
	start := time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	h := make([]contracts.Bar, 20)
	for i := range h {
		h[i] = contracts.Bar{TradeDate: start.AddDate(0, 0, i), PctChange: 0.5, Vol: 1000, Amount: 1000}
	}
	if limitUp {
		h[15].PctChange = 10
		h[15].Vol = 400
	}
	return h
}

// market: A passes everything, B fails the quick filter,
// C passes the quick filter but its detail row fails verification.
func newMarket() *fakeMarket {
	return &fakeMarket{
		factors: map[string]contracts.FactorSnapshot{
			"600000.SH": {TsCode: "600000.SH", KdjJ: 5, MacdDif: 0.1},
			"000001.SZ": {TsCode: "000001.SZ", KdjJ: 20, MacdDif: 0.1},
			"300750.SZ": {TsCode: "300750.SZ", KdjJ: 5, MacdDif: 0.2},
			"688981.SH": {TsCode: "688981.SH", KdjJ: -3, MacdDif: 0.4},
		},
		snapshots: map[string]contracts.StockSnapshot{
			"600000.SH": stock("600000.SH", 5, 0.1, 0.5, 900000),
			"000001.SZ": stock("000001.SZ", 20, 0.1, 0.5, 900000),
			"300750.SZ": stock("300750.SZ", 5, -0.1, 0.5, 900000),
			"688981.SH": stock("688981.SH", -3, 0.4, 3.0, 100000),
		},
		history: map[string][]contracts.Bar{
			"600000.SH": history(false),
			"688981.SH": history(true),
		},
	}
}

type harness struct {
	orch     *Orchestrator
	loader   *fakeLoader
	universe *fakeUniverse
	market   *fakeMarket
	store    *replaceStore
	runLog   *fakeRunLog
}

func newHarness(cfg contracts.TagConfig, universe []string) *harness {
	return newHarnessWithClock(cfg, universe, func() time.Time { return fixedNow })
}

func newHarnessWithClock(cfg contracts.TagConfig, universe []string, now func() time.Time) *harness {
	h := &harness{
		loader:   &fakeLoader{cfg: cfg},
		universe: &fakeUniverse{codes: universe},
		market:   newMarket(),
		store:    newReplaceStore(),
		runLog:   &fakeRunLog{},
	}

	log := logger.NewNop()
	screener := selection.NewScreener(h.universe, h.market, selection.Defaults{JThreshold: 13, MacdDifThreshold: 0}, log)
	evaluator := s2_signals.NewEvaluator(h.market, s2_signals.DefaultRegistry(), s2_signals.DefaultConfig(), log)

	n := 0
	h.orch = NewOrchestrator(h.loader, screener, evaluator, h.store, log,
		WithClock(now),
		WithRunIDs(func() string { n++; return fmt.Sprintf("run-%d", n) }),
		WithRunLog(h.runLog, contracts.StrategyB1, "hash-1"),
	)
	return h
}

var allCodes = []string{"600000.SH", "000001.SZ", "300750.SZ", "688981.SH"}

func codesOf(results []contracts.SignalResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.TsCode
	}
	sort.Strings(out)
	return out
}

// ---- tests ----

func TestFilterAndTag_EndToEnd(t *testing.T) {
	h := newHarness(fullConfig, allCodes)

	resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 0, resp.Saved, "persist flag off")
	assert.Equal(t, 0, h.store.saves)
	assert.Equal(t, []string{"600000.SH", "300750.SZ", "688981.SH"}, resp.FilteredCodes)
	assert.Equal(t, []string{"600000.SH", "688981.SH"}, codesOf(resp.Data))

	byCode := map[string]contracts.SignalResult{}
	for _, r := range resp.Data {
		byCode[r.TsCode] = r
	}

	a := byCode["600000.SH"]
	assert.Equal(t, 4, a.PlusCount, "2 filters + up3 + up7")
	assert.Equal(t, 0, a.MinusCount)
	assert.Equal(t, contracts.SignalMedium, a.Strength)
	assert.Equal(t, "J值<13, MACD-DIF>0, 小阴小阳, 市值适当", a.DisplayFactor)

	d := byCode["688981.SH"]
	assert.Equal(t, 2, d.PlusCount, "pct 3.0 and small cap miss both plus rules")
	assert.Equal(t, 1, d.MinusCount)
	assert.Equal(t, contracts.SignalWeak, d.Strength)

	for _, r := range resp.Data {
		assert.Equal(t, r.PlusCount-r.MinusCount, r.TagScore)
		assert.GreaterOrEqual(t, r.PlusCount, len(fullConfig.Filter))
	}

	stages := make([]contracts.Stage, len(resp.Stages))
	for i, s := range resp.Stages {
		stages[i] = s.Stage
	}
	assert.Equal(t, []contracts.Stage{
		contracts.StageTagConfig, contracts.StageQuickFilter, contracts.StageDetail,
		contracts.StageVerify, contracts.StageHistory, contracts.StageEvaluate,
	}, stages)

	assert.Empty(t, h.runLog.entries, "run log only for persisted runs")
}

func TestFilterAndTag_IdempotentPersist(t *testing.T) {
	// 실행마다 시계가 움직여도 저장 행은 동일해야 한다
	now := fixedNow
	h := newHarnessWithClock(fullConfig, allCodes, func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	req := contracts.FilterRequest{TradeDate: "20240115", Persist: true, ForceRefresh: true}

	first, err := h.orch.FilterAndTag(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Saved)
	firstRows, err := json.Marshal(h.store.rows["20240115"])
	require.NoError(t, err)

	second, err := h.orch.FilterAndTag(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Saved)
	secondRows, err := json.Marshal(h.store.rows["20240115"])
	require.NoError(t, err)

	assert.Len(t, h.store.rows["20240115"], 2, "no accumulation")
	assert.Equal(t, string(firstRows), string(secondRows))

	require.Len(t, h.runLog.entries, 2)
	entry := h.runLog.entries[1]
	assert.Equal(t, "run-2", entry.RunID)
	assert.Equal(t, contracts.RunStatusSuccess, entry.Status)
	assert.Equal(t, 3, entry.CandidateCount)
	assert.Equal(t, 2, entry.EvaluatedCount)
	assert.Equal(t, 2, entry.SavedCount)
	assert.Equal(t, "hash-1", entry.ConfigHash)
	assert.Equal(t, contracts.StrategyB1, entry.StrategyType)
	assert.True(t, entry.StartedAt.After(h.runLog.entries[0].StartedAt), "run log keeps the wall time")
}

func TestFilterAndTag_PersistFailure(t *testing.T) {
	h := newHarness(fullConfig, allCodes)
	h.store.err = errors.New("unique violation")

	resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115", Persist: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, h.store.err)

	require.NotNil(t, resp)
	assert.Equal(t, 0, resp.Saved)
	assert.Equal(t, "unique violation", resp.PersistError)
	assert.Len(t, resp.Data, 2, "evaluated rows still returned")

	require.Len(t, h.runLog.entries, 1)
	assert.Equal(t, contracts.RunStatusFailed, h.runLog.entries[0].Status)
}

func TestFilterAndTag_EarlyExits(t *testing.T) {
	t.Run("no rules", func(t *testing.T) {
		h := newHarness(contracts.TagConfig{}, allCodes)
		resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, contracts.MsgNoTagRules, resp.Message)
		assert.Equal(t, 0, h.universe.calls)
	})

	t.Run("empty universe", func(t *testing.T) {
		h := newHarness(fullConfig, nil)
		resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, contracts.MsgNoCandidates, resp.Message)
		assert.Empty(t, resp.Data)
		assert.NotNil(t, resp.Data)
	})

	t.Run("no detail rows", func(t *testing.T) {
		h := newHarness(fullConfig, allCodes)
		h.market.snapshots = nil
		resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, contracts.MsgNoStockData, resp.Message)
	})

	t.Run("nothing survives verification", func(t *testing.T) {
		h := newHarness(fullConfig, []string{"300750.SZ"})
		resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115", Persist: true})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, contracts.MsgNoVerifiedStocks, resp.Message)
		assert.Equal(t, 0, h.store.saves, "previous rows of the date stay untouched")

		require.Len(t, h.runLog.entries, 1)
		assert.Equal(t, contracts.RunStatusEmpty, h.runLog.entries[0].Status)
	})
}

func TestFilterAndTag_ExplicitStockList(t *testing.T) {
	h := newHarness(fullConfig, allCodes)

	resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{
		TradeDate:  "20240115",
		StockCodes: []string{"000001.SZ", "600000.SH"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, h.universe.calls, "quick filter skipped")
	// 000001.SZ still fails re-verification (J 20)
	assert.Equal(t, []string{"600000.SH"}, codesOf(resp.Data))
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, resp.FilteredCodes)
}

func TestFilterAndTag_TagSubsetAndOverrides(t *testing.T) {
	h := newHarness(contracts.TagConfig{Filter: []contracts.TagRule{jTag}}, allCodes)
	j := 25.0

	resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{
		TradeDate:  "20240115",
		TagCodes:   []string{selection.CodeJBelow},
		JThreshold: &j,
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{selection.CodeJBelow}}, h.loader.codes)
	assert.Nil(t, resp.FilteredCodes, "not echoed for an explicit rule subset")
	// J override 25 lets 000001.SZ (J 20) through; no MACD filter so 300750.SZ passes too
	assert.ElementsMatch(t, allCodes, codesOf(resp.Data))
}

func TestFilterAndTag_Errors(t *testing.T) {
	t.Run("bad trade date", func(t *testing.T) {
		h := newHarness(fullConfig, allCodes)
		resp, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "2024-01-15"})
		assert.ErrorIs(t, err, contracts.ErrInvalidTradeDate)
		assert.Nil(t, resp)
	})

	t.Run("config load failure propagates", func(t *testing.T) {
		h := newHarness(fullConfig, allCodes)
		h.loader.err = errors.New("relation does not exist")
		_, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
		assert.ErrorIs(t, err, h.loader.err)
	})

	t.Run("detail failure propagates", func(t *testing.T) {
		h := newHarness(fullConfig, allCodes)
		h.market.detailErr = errors.New("timeout")
		_, err := h.orch.FilterAndTag(context.Background(), contracts.FilterRequest{TradeDate: "20240115"})
		assert.ErrorIs(t, err, h.market.detailErr)
	})
}
