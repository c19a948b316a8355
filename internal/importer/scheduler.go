package importer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler fires the importer once at startup and then on a fixed period.
type Scheduler struct {
	Importer   *Importer
	Interval   time.Duration
	RunTimeout time.Duration
	Log        zerolog.Logger
}

// Run blocks until ctx is cancelled. A tick that lands while a run is still
// in flight is skipped, not queued; each run gets its own deadline so a stuck
// run cannot hold the slot forever.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	err := s.Importer.RunOnce(runCtx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.Log.Warn().Msg("previous import still running, skipping scheduled run")
	case errors.Is(err, context.Canceled):
	default:
		s.Log.Error().Err(err).Msg("scheduled import failed")
	}
}
