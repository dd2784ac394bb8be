// Package scheduler wires up the cron job that periodically re-matches the
// active deal corpus against the current signal set, so signals created after
// a deal was ingested still pick it up.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tripsignal/matcher-service/internal/orchestrator"
)

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron *cron.Cron
	orch *orchestrator.Orchestrator
	spec string // cron spec, e.g. "@every 6h"
	log  zerolog.Logger
}

// New creates a Scheduler that sweeps every intervalHours hours.
func New(orch *orchestrator.Orchestrator, intervalHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		orch: orch,
		spec: fmt.Sprintf("@every %dh", intervalHours),
		log:  log,
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so backlogged deals are matched without waiting for the first
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("sweep scheduler started")

	// Run immediately on startup (non-blocking)
	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("sweep scheduler stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	s.log.Info().Msg("re-match sweep started")

	stats, err := s.orch.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("re-match sweep aborted")
		return
	}

	s.log.Info().
		Int("deals", stats.Deals).
		Int("newMatches", stats.NewMatches).
		Int("failed", stats.Failed).
		Msg("re-match sweep complete")
}
