// Package jobs runs the gateway's periodic maintenance.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Sweeper interface {
	Sweep() int
}

type SessionEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

type Config struct {
	// Schedule is a cron expression such as "@every 1m".
	Schedule    string
	IdleTimeout time.Duration
}

// Scheduler sweeps expired cache entries and evicts idle negotiation sessions.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	caches   []Sweeper
	sessions SessionEvictor
	log      zerolog.Logger
}

func NewScheduler(cfg Config, sessions SessionEvictor, caches []Sweeper, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		cfg:      cfg,
		caches:   caches,
		sessions: sessions,
		log:      log.With().Str("component", "jobs").Logger(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.RunOnce); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("scheduler started")
	return nil
}

// RunOnce performs one maintenance pass.
func (s *Scheduler) RunOnce() {
	swept := 0
	for _, c := range s.caches {
		swept += c.Sweep()
	}
	evicted := 0
	if s.sessions != nil && s.cfg.IdleTimeout > 0 {
		evicted = s.sessions.EvictIdle(s.cfg.IdleTimeout)
	}
	if swept > 0 || evicted > 0 {
		s.log.Debug().Int("cache_entries", swept).Int("sessions", evicted).Msg("maintenance pass")
	}
}

// Stop waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}
