package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/salonbot/core/session"
)

const period = time.Hour

func newSweeperFixture(t *testing.T) (*session.Store, *fakeClock, *session.Sweeper) {
	t.Helper()
	clock := newFakeClock()
	store := session.NewStore(session.WithClock(clock.Now))
	sw := session.NewSweeper(store, session.SweeperOptions{
		Period:      period,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	})
	return store, clock, sw
}

func addSession(t *testing.T, store *session.Store, id session.ID, lastActivity time.Time) {
	t.Helper()
	_, err := store.GetOrCreate(id)
	require.NoError(t, err)
	_, err = store.IssueMarker(id)
	require.NoError(t, err)
	session.SetActivity(store, id, lastActivity)
}

func TestSweeper_EvictsOnlyStaleSessions(t *testing.T) {
	store, clock, sw := newSweeperFixture(t)
	now := clock.Now()

	addSession(t, store, 1, now.Add(-period-time.Second)) // idle longer than the period
	addSession(t, store, 2, now.Add(-period+time.Second)) // still fresh
	addSession(t, store, 3, now.Add(-period))             // exactly one period idle
	addSession(t, store, 4, now)

	res, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []session.ID{1, 3}, res.Evicted)
	assert.Equal(t, 1, res.Attempts)

	for _, id := range []session.ID{1, 3} {
		_, ok := store.Get(id)
		assert.False(t, ok)
		_, ok = store.Marker(id)
		assert.False(t, ok)
		_, ok = store.LastActivity(id)
		assert.False(t, ok)
	}
	for _, id := range []session.ID{2, 4} {
		_, ok := store.Get(id)
		assert.True(t, ok)
	}
	assert.Equal(t, session.SweeperStats{Runs: 1, Evicted: 2}, sw.Stats())
}

func TestSweeper_RetriesTransientFault(t *testing.T) {
	store, clock, sw := newSweeperFixture(t)
	addSession(t, store, 1, clock.Now().Add(-2*period))

	var calls atomic.Int32
	session.SetBeforeRemove(store, func(part string) {
		if part == "record" && calls.Add(1) == 1 {
			panic("transient")
		}
	})

	res, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []session.ID{1}, res.Evicted)
	assert.Equal(t, 0, store.Len())
}

func TestSweeper_GivesUpAfterMaxAttempts(t *testing.T) {
	store, clock, sw := newSweeperFixture(t)
	addSession(t, store, 1, clock.Now().Add(-2*period))
	addSession(t, store, 2, clock.Now())

	session.SetBeforeRemove(store, func(part string) {
		if part == "record" {
			panic("persistent")
		}
	})

	res, err := sw.SweepOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInternal)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.Evicted)

	_, ok := store.Get(2)
	assert.True(t, ok, "unrelated sessions are untouched")
	assert.Equal(t, uint64(1), sw.Stats().Failures)
}

func TestSweeper_StartStop(t *testing.T) {
	store := session.NewStore()
	sw := session.NewSweeper(store, session.SweeperOptions{
		Period:     20 * time.Millisecond,
		RetryDelay: time.Millisecond,
	})
	_, err := store.GetOrCreate(1)
	require.NoError(t, err)

	require.NoError(t, sw.Start(context.Background()))
	require.NoError(t, sw.Start(context.Background()), "second start is a no-op")
	assert.True(t, sw.IsRunning())

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	sw.Stop()
	assert.False(t, sw.IsRunning())
	sw.Stop()
}

func TestSweeper_OnSweepHook(t *testing.T) {
	store := session.NewStore()
	var seen []session.SweepResult
	sw := session.NewSweeper(store, session.SweeperOptions{
		Period:  period,
		OnSweep: func(r session.SweepResult) { seen = append(seen, r) },
	})

	_, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Empty(t, seen[0].Evicted)
	assert.NoError(t, seen[0].Err)
}
