package jobs

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls   int
	removed int
}

func (c *countingSweeper) Sweep() int {
	c.calls++
	return c.removed
}

type fakeEvictor struct {
	maxIdle time.Duration
}

func (f *fakeEvictor) EvictIdle(maxIdle time.Duration) int {
	f.maxIdle = maxIdle
	return 1
}

func TestRunOnceSweepsEveryCache(t *testing.T) {
	a, b := &countingSweeper{removed: 2}, &countingSweeper{}
	ev := &fakeEvictor{}
	s := NewScheduler(Config{Schedule: "@every 1m", IdleTimeout: 30 * time.Minute}, ev, []Sweeper{a, b}, zerolog.Nop())

	s.RunOnce()

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 30*time.Minute, ev.maxIdle)
}

func TestRunOnceWithoutSessions(t *testing.T) {
	a := &countingSweeper{}
	s := NewScheduler(Config{Schedule: "@every 1m"}, nil, []Sweeper{a}, zerolog.Nop())
	require.NotPanics(t, s.RunOnce)
	assert.Equal(t, 1, a.calls)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(Config{Schedule: "every minute"}, nil, nil, zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(Config{Schedule: "@every 1h"}, nil, nil, zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()
}
