// Package worker owns the daemon's processing loop: it claims queued jobs
// one at a time, hands them to the pipeline, and sweeps stale workspace
// directories on a timer.
package worker

import (
	"context"
	"log/slog"
	"time"

	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/storage"
)

// JobProcessor drives a claimed job to a terminal status.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *jobs.Job) error
}

// Worker polls the queue and processes jobs sequentially. One job runs at a
// time; the claim is atomic so multiple workers would never share a job, but
// the daemon starts exactly one.
type Worker struct {
	logger    *slog.Logger
	store     *jobs.Store
	processor JobProcessor

	pollInterval  time.Duration
	errorRetry    time.Duration
	sweepInterval time.Duration
	dataDir       string
	maxAge        time.Duration
}

// New creates a worker using the intervals from the configuration.
func New(logger *slog.Logger, cfg *config.Config, store *jobs.Store, processor JobProcessor) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		logger:        logging.NewComponentLogger(logger, "worker"),
		store:         store,
		processor:     processor,
		pollInterval:  time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetry:    time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sweepInterval: time.Duration(cfg.Workflow.SweepIntervalMins) * time.Minute,
		dataDir:       cfg.Paths.DataDir,
		maxAge:        time.Duration(cfg.Workflow.CleanupMaxAgeHours) * time.Hour,
	}
}

// Run blocks until the context is cancelled. Claim errors are logged and
// retried after the error interval; they never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Duration("sweep_interval", w.sweepInterval))

	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-sweep.C:
			storage.Sweep(w.logger, w.dataDir, w.maxAge)
		default:
		}

		job, err := w.store.ClaimNext(ctx)
		switch {
		case ctx.Err() != nil:
			w.logger.Info("worker stopped")
			return
		case err != nil:
			w.logger.Error("claiming next job failed", logging.Error(err))
			if !w.sleep(ctx, w.errorRetry) {
				return
			}
		case job == nil:
			if !w.sleep(ctx, w.pollInterval) {
				return
			}
		default:
			if err := w.processor.ProcessJob(ctx, job); err != nil {
				w.logger.Warn("job did not complete",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err))
			}
		}
	}
}

// sleep waits for the given duration, returning false when the context is
// cancelled first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
