package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b1signal/backend/internal/contracts"
	"github.com/wonny/b1signal/backend/pkg/logger"
)

type recordingRunner struct {
	reqs []contracts.FilterRequest
	err  error
}

func (r *recordingRunner) FilterAndTag(_ context.Context, req contracts.FilterRequest) (*contracts.FilterResponse, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &contracts.FilterResponse{RunID: "run", TradeDate: req.TradeDate, Success: true, Total: 3, Saved: 3}, nil
}

type clearCounter struct{ clears int }

func (c *clearCounter) Clear() { c.clears++ }

type fixedDate struct {
	date time.Time
	err  error
}

func (d fixedDate) LatestTradeDate(context.Context) (time.Time, error) { return d.date, d.err }

type admin struct {
	id  int64
	err error
}

func (a admin) AdminUserID(context.Context) (int64, error) { return a.id, a.err }

var latest = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestB1SignalJob_Run(t *testing.T) {
	runner := &recordingRunner{}
	cache := &clearCounter{}
	job := NewB1SignalJob(runner, cache, fixedDate{date: latest}, admin{id: 7}, "0 35 20 * * *", 1, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, "b1_signal", job.Name())
	assert.Equal(t, "0 35 20 * * *", job.Schedule())
	assert.Equal(t, 1, cache.clears)

	require.Len(t, runner.reqs, 1)
	req := runner.reqs[0]
	assert.Equal(t, "20240115", req.TradeDate)
	assert.True(t, req.Persist)
	assert.True(t, req.ForceRefresh)
	assert.Nil(t, req.TagCodes, "all enabled rules")
	require.NotNil(t, req.UserID)
	assert.Equal(t, int64(7), *req.UserID)
}

func TestB1SignalJob_FallsBackToBootstrapUser(t *testing.T) {
	for name, dir := range map[string]admin{
		"no admin":    {err: contracts.ErrNoAdmin},
		"query error": {err: errors.New("relation auth.users does not exist")},
	} {
		t.Run(name, func(t *testing.T) {
			runner := &recordingRunner{}
			job := NewB1SignalJob(runner, &clearCounter{}, fixedDate{date: latest}, dir, "0 35 20 * * *", 1, logger.NewNop())

			require.NoError(t, job.Run(context.Background()))
			require.Len(t, runner.reqs, 1)
			assert.Equal(t, int64(1), *runner.reqs[0].UserID)
		})
	}
}

func TestB1SignalJob_ForDate(t *testing.T) {
	runner := &recordingRunner{}
	job := NewB1SignalJob(runner, &clearCounter{}, fixedDate{err: errors.New("not consulted")}, admin{err: contracts.ErrNoAdmin}, "0 35 20 * * *", 1, logger.NewNop())

	pinned := job.ForDate("20240110")
	require.NoError(t, pinned.Run(context.Background()))
	require.Len(t, runner.reqs, 1)
	assert.Equal(t, "20240110", runner.reqs[0].TradeDate)
	assert.True(t, runner.reqs[0].Persist)
	assert.Equal(t, int64(1), *runner.reqs[0].UserID, "admin fallback still applies")

	// 원본 Job은 여전히 최신 거래일을 사용
	assert.Error(t, job.Run(context.Background()))
	assert.Len(t, runner.reqs, 1)

	bad := job.ForDate("2024-01-10")
	assert.ErrorIs(t, bad.Run(context.Background()), contracts.ErrInvalidTradeDate)
	assert.Len(t, runner.reqs, 1)
}

func TestB1SignalJob_Errors(t *testing.T) {
	t.Run("no trade date", func(t *testing.T) {
		runner := &recordingRunner{}
		boom := errors.New("no quotes")
		job := NewB1SignalJob(runner, &clearCounter{}, fixedDate{err: boom}, admin{id: 1}, "", 1, logger.NewNop())

		assert.ErrorIs(t, job.Run(context.Background()), boom)
		assert.Empty(t, runner.reqs)
	})

	t.Run("run failure is returned for retry", func(t *testing.T) {
		boom := errors.New("persist failed")
		runner := &recordingRunner{err: boom}
		job := NewB1SignalJob(runner, &clearCounter{}, fixedDate{date: latest}, admin{id: 1}, "", 1, logger.NewNop())

		assert.ErrorIs(t, job.Run(context.Background()), boom)
	})
}

type universeStub struct {
	codes []string
	err   error
	force []bool
}

func (u *universeStub) GetActiveCodes(_ context.Context, force bool) ([]string, error) {
	u.force = append(u.force, force)
	return u.codes, u.err
}

func TestUniverseWarmupJob(t *testing.T) {
	u := &universeStub{codes: []string{"600000.SH"}}
	job := NewUniverseWarmupJob(u, "", logger.NewNop())

	assert.Equal(t, DefaultUniverseWarmupSchedule, job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []bool{true}, u.force)

	u.err = errors.New("down")
	assert.Error(t, job.Run(context.Background()))
}
