package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
)

// WorkerConfig tunes the claim loop pool.
type WorkerConfig struct {
	Count        int
	PollInterval time.Duration
	StaleAfter   time.Duration
}

// Worker runs a pool of claim loops against the job queue. Each loop claims
// one queued job at a time, processes it to a terminal state, and polls again.
// Jobs stuck in PROCESSING longer than StaleAfter are re-claimed, so a worker
// crash cannot strand work forever.
type Worker struct {
	orch   *Orchestrator
	jobs   domain.JobRepository
	cfg    WorkerConfig
	logger zerolog.Logger
}

func NewWorker(orch *Orchestrator, jobs domain.JobRepository, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	return &Worker{orch: orch, jobs: jobs, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs to finish.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Count; i++ {
		id := i
		g.Go(func() error {
			return w.loop(ctx, id)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	logger := w.logger.With().Int("worker", id).Logger()
	logger.Info().Msg("worker started")
	for {
		if err := ctx.Err(); err != nil {
			logger.Info().Msg("worker stopped")
			return err
		}
		job, err := w.jobs.Claim(ctx, w.cfg.StaleAfter)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if !sleepCtx(ctx, w.cfg.PollInterval) {
				logger.Info().Msg("worker stopped")
				return ctx.Err()
			}
			continue
		case err != nil:
			logger.Error().Err(err).Msg("claim failed")
			if !sleepCtx(ctx, w.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		w.orch.Process(ctx, job)
	}
}

// sleepCtx sleeps for d or until ctx is done; it reports whether the full
// interval elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
