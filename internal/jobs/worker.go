package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Worker runs periodic jobs and due reruns on every tick until its context is canceled.
type Worker struct {
	runner   *Runner
	periodic []Job
	interval time.Duration
}

// NewWorker registers periodic with runner so that their reruns can be found by name.
func NewWorker(runner *Runner, interval time.Duration, periodic ...Job) *Worker {
	runner.Register(periodic...)
	return &Worker{runner: runner, periodic: periodic, interval: interval}
}

// Start blocks until ctx is canceled. The first tick runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	logger := loggerFrom(ctx)
	logger.Info("Worker started", slog.Duration("interval", w.interval), slog.Int("jobs", len(w.periodic)))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.Tick(ctx)
		select {
		case <-ctx.Done():
			logger.Info("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs every periodic job once, then any due reruns.
func (w *Worker) Tick(ctx context.Context) {
	logger := loggerFrom(ctx)
	for _, job := range w.periodic {
		if ctx.Err() != nil {
			return
		}
		if err := w.runner.Run(ctx, job); err != nil {
			logger.Error("Job failed", slog.String("job", job.Name()), slog.String("error", err.Error()))
		}
	}
	if err := w.runner.RunDue(ctx); err != nil {
		logger.Error("Failed to run due jobs", slog.String("error", err.Error()))
	}
}
