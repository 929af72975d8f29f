package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain/ports/repository"
	"github.com/ctroy978/edagent/internal/infra/metrics"
)

// StaleWorker periodically counts threads that started a grading run and
// then went quiet. It only reports; abandoned state is never deleted, a
// teacher can come back days later and resume where they left off.
type StaleWorker struct {
	interval   time.Duration
	staleAfter time.Duration
	states     repository.WorkflowStateRepository
	log        *zerolog.Logger
}

func NewStaleWorker(interval, staleAfter time.Duration, states repository.WorkflowStateRepository, logger *zerolog.Logger) *StaleWorker {
	staleLog := logger.With().Str("component", "StaleWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &StaleWorker{
		interval:   interval,
		staleAfter: staleAfter,
		states:     states,
		log:        &staleLog,
	}
}

func (w *StaleWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting stale-thread worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale-thread worker")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.staleAfter)
			n, err := w.states.CountStale(ctx, nil, cutoff)
			if err != nil {
				w.log.Error().Err(err).Msg("stale count error")
				continue
			}
			metrics.SetStaleThreads(n)
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale grading threads")
			}
		}
	}
}
