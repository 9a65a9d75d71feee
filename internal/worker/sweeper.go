package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes expired entries from a store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepWorker runs a Sweeper on a fixed interval until its context ends.
type SweepWorker struct {
	name     string
	target   Sweeper
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweepWorker(name string, target Sweeper, interval time.Duration, logger zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		name:     name,
		target:   target,
		interval: interval,
		logger:   logger.With().Str("worker", name).Logger(),
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) error {
	n, err := w.target.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep %s: %w", w.name, err)
	}
	if n > 0 {
		w.logger.Debug().Int("removed", n).Msg("swept expired entries")
	}
	return nil
}
