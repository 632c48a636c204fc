package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSettings(ttl time.Duration) (*Settings, *fakeClock) {
	clock := &fakeClock{now: time.Date(1525, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewSettings(Config{Enabled: true, TTL: ttl}, WithClock(clock.Now)), clock
}

func TestEntryValidityAroundTTL(t *testing.T) {
	ttls := []time.Duration{time.Second, DefaultTTL, time.Hour}
	for _, ttl := range ttls {
		settings, clock := newTestSettings(ttl)
		m := NewMap[string](settings)
		m.Set("k", "v")

		clock.now = clock.now.Add(ttl - time.Millisecond)
		_, ok := m.Get("k")
		assert.True(t, ok, "ttl %s: entry should be valid just before expiry", ttl)

		clock.now = clock.now.Add(2 * time.Millisecond)
		_, ok = m.Get("k")
		assert.False(t, ok, "ttl %s: entry should be invalid just after expiry", ttl)
	}
}

func TestIsValidNilEntry(t *testing.T) {
	settings, _ := newTestSettings(time.Minute)
	assert.False(t, IsValid[int](settings, nil))
}

func TestDisablingClearsEverything(t *testing.T) {
	settings, clock := newTestSettings(time.Minute)
	a := NewMap[int](settings)
	b := NewMap[string](settings)
	a.Set("1", 1)
	b.Set("x", "y")

	disabled := false
	cfg := settings.Configure(Options{Enabled: &disabled})
	require.False(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.TTL)

	assert.Zero(t, a.Len())
	assert.Zero(t, b.Len())
	assert.False(t, IsValid(settings, &Entry[int]{Data: 1, Timestamp: clock.now}))

	a.Set("2", 2)
	assert.Zero(t, a.Len(), "set must be a no-op while disabled")
}

func TestConfigureMergesTTL(t *testing.T) {
	settings, clock := newTestSettings(time.Minute)
	m := NewMap[int](settings)
	m.Set("k", 7)

	ttl := 10 * time.Second
	cfg := settings.Configure(Options{TTL: &ttl})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ttl, cfg.TTL)

	clock.now = clock.now.Add(11 * time.Second)
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestClearAndSweep(t *testing.T) {
	settings, clock := newTestSettings(time.Minute)
	m := NewMap[int](settings)
	m.Set("old", 1)
	clock.now = clock.now.Add(2 * time.Minute)
	m.Set("fresh", 2)

	assert.Equal(t, 1, settings.Sweep())
	v, ok := m.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	settings.Clear()
	assert.Zero(t, m.Len())
}

func TestSetIfCurrentSkipsAfterInvalidation(t *testing.T) {
	settings, _ := newTestSettings(time.Minute)
	m := NewMap[int](settings)

	gen := m.Generation()
	m.Delete("k")
	assert.False(t, m.SetIfCurrent("k", 1, gen), "a delete during the fetch wins")
	_, ok := m.Get("k")
	assert.False(t, ok)

	gen = m.Generation()
	settings.Clear()
	assert.False(t, m.SetIfCurrent("k", 2, gen))

	gen = m.Generation()
	assert.True(t, m.SetIfCurrent("k", 3, gen))
	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	disabled := false
	settings.Configure(Options{Enabled: &disabled})
	assert.False(t, m.SetIfCurrent("k", 4, m.Generation()))
}
