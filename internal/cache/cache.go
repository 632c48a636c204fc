// Package cache holds keyed, TTL-bounded copies of backend entities.
//
// A Settings value is owned by one service and shared by all of that service's maps,
// so configuring or clearing it affects every map registered against it.
package cache

import (
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Minute

type Config struct {
	Enabled bool
	TTL     time.Duration
}

// Options is a partial Config; nil fields keep their current value.
type Options struct {
	Enabled *bool
	TTL     *time.Duration
}

type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

type clearable interface {
	Clear()
	Sweep() int
}

type Settings struct {
	mu   sync.RWMutex
	cfg  Config
	now  func() time.Time
	maps []clearable
}

type Option func(*Settings)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		s.now = now
	}
}

func NewSettings(cfg Config, opts ...Option) *Settings {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	s := &Settings{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Settings) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Configure merges opts into the current config. Turning caching off empties every map
// immediately so nothing stale can be served afterwards.
func (s *Settings) Configure(opts Options) Config {
	s.mu.Lock()
	if opts.Enabled != nil {
		s.cfg.Enabled = *opts.Enabled
	}
	if opts.TTL != nil && *opts.TTL > 0 {
		s.cfg.TTL = *opts.TTL
	}
	cfg := s.cfg
	maps := append([]clearable(nil), s.maps...)
	s.mu.Unlock()

	if !cfg.Enabled {
		for _, m := range maps {
			m.Clear()
		}
	}
	return cfg
}

func (s *Settings) Clear() {
	s.mu.RLock()
	maps := append([]clearable(nil), s.maps...)
	s.mu.RUnlock()
	for _, m := range maps {
		m.Clear()
	}
}

// Sweep drops expired entries from every map and returns how many were removed.
func (s *Settings) Sweep() int {
	s.mu.RLock()
	maps := append([]clearable(nil), s.maps...)
	s.mu.RUnlock()
	removed := 0
	for _, m := range maps {
		removed += m.Sweep()
	}
	return removed
}

func (s *Settings) valid(ts time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.Enabled {
		return false
	}
	return s.now().Sub(ts) < s.cfg.TTL
}

func (s *Settings) enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

func (s *Settings) register(m clearable) {
	s.mu.Lock()
	s.maps = append(s.maps, m)
	s.mu.Unlock()
}

// IsValid reports whether entry may be served: caching is on, the entry exists and its
// age is below the TTL.
func IsValid[T any](s *Settings, entry *Entry[T]) bool {
	if entry == nil {
		return false
	}
	return s.valid(entry.Timestamp)
}

// Map is a keyed cache. Every Delete or Clear advances its generation, which lets a
// caller drop a fetch result that an invalidation overtook.
type Map[T any] struct {
	settings *Settings
	mu       sync.RWMutex
	entries  map[string]Entry[T]
	gen      uint64
}

func NewMap[T any](settings *Settings) *Map[T] {
	m := &Map[T]{settings: settings, entries: make(map[string]Entry[T])}
	settings.register(m)
	return m
}

func (m *Map[T]) Get(key string) (T, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !IsValid(m.settings, &entry) {
		var zero T
		return zero, false
	}
	return entry.Data, true
}

// Set stores data under key stamped with the current time. No-op while caching is off.
func (m *Map[T]) Set(key string, data T) {
	if !m.settings.enabled() {
		return
	}
	entry := Entry[T]{Data: data, Timestamp: m.settings.now()}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// Generation is read before a backend fetch and handed back to SetIfCurrent.
func (m *Map[T]) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// SetIfCurrent stores data unless the map was invalidated after gen was read.
func (m *Map[T]) SetIfCurrent(key string, data T, gen uint64) bool {
	if !m.settings.enabled() {
		return false
	}
	entry := Entry[T]{Data: data, Timestamp: m.settings.now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.entries[key] = entry
	return true
}

func (m *Map[T]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.gen++
	m.mu.Unlock()
}

func (m *Map[T]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry[T])
	m.gen++
	m.mu.Unlock()
}

func (m *Map[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Map[T]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if !IsValid(m.settings, &entry) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
