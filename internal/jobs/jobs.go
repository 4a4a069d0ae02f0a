// Package jobs runs background work: periodic jobs on a ticker and one-off reruns a Scheduler
// hands back when they fall due. A job that declares an advisory lock never runs concurrently with
// another holder of the same lock, in this process or any other.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/advisorylock"
	"github.com/SscSPs/payment_ledger/internal/middleware"
)

// DefaultBackoff is how long a job waits before retrying after losing its lock.
const DefaultBackoff = time.Minute

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// LockConfig serializes a job. Key defaults to the job name. A nil Backoff drops the run on
// contention instead of rescheduling it; the next periodic tick runs it again.
type LockConfig struct {
	Key     string
	Backoff *time.Duration
}

// Lockable jobs run under an advisory lock.
type Lockable interface {
	AdvisoryLock() *LockConfig
}

// Backoff returns a pointer to d for LockConfig.Backoff.
func Backoff(d time.Duration) *time.Duration {
	return &d
}

// Scheduler stores delayed reruns by job name.
type Scheduler interface {
	ScheduleIn(ctx context.Context, name string, delay time.Duration) error
	// Due claims and returns the names of reruns whose time has come. A claimed name is not returned again.
	Due(ctx context.Context, now time.Time) ([]string, error)
}

// Runner runs registered jobs.
type Runner struct {
	locker    *advisorylock.Locker
	scheduler Scheduler
	jobs      map[string]Job
	now       func() time.Time
}

func NewRunner(locker *advisorylock.Locker, scheduler Scheduler) *Runner {
	return &Runner{locker: locker, scheduler: scheduler, jobs: map[string]Job{}, now: time.Now}
}

// Register makes jobs known to RunDue.
func (r *Runner) Register(jobs ...Job) {
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
}

// Run runs job once. A lockable job that finds its lock taken is rescheduled after its backoff, or
// dropped when it has none.
func (r *Runner) Run(ctx context.Context, job Job) error {
	logger := loggerFrom(ctx).With(slog.String("job", job.Name()))
	ctx = middleware.WithLogger(ctx, logger)

	lockable, ok := job.(Lockable)
	if !ok || lockable.AdvisoryLock() == nil {
		return r.run(ctx, job)
	}
	cfg := lockable.AdvisoryLock()
	key := cfg.Key
	if key == "" {
		key = job.Name()
	}

	acquired, err := r.locker.TryWithLock(ctx, key, func(ctx context.Context) error {
		return r.run(ctx, job)
	})
	if err != nil || acquired {
		return err
	}
	if cfg.Backoff == nil {
		logger.Debug("Lock held elsewhere, dropping run", slog.String("lock", key))
		return nil
	}
	logger.Info("Lock held elsewhere, rescheduling", slog.String("lock", key), slog.Duration("backoff", *cfg.Backoff))
	if err := r.scheduler.ScheduleIn(ctx, job.Name(), *cfg.Backoff); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", job.Name(), err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, job Job) error {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	loggerFrom(ctx).Debug("Job finished", slog.Duration("took", time.Since(start)))
	return nil
}

// RunDue runs every registered job whose rerun is due. Errors are logged, not returned, so one
// failing job does not hold up the rest.
func (r *Runner) RunDue(ctx context.Context) error {
	names, err := r.scheduler.Due(ctx, r.now())
	if err != nil {
		return fmt.Errorf("failed to read due jobs: %w", err)
	}
	for _, name := range names {
		job, ok := r.jobs[name]
		if !ok {
			loggerFrom(ctx).Warn("Due job is not registered", slog.String("job", name))
			continue
		}
		if err := r.Run(ctx, job); err != nil {
			loggerFrom(ctx).Error("Scheduled job failed", slog.String("job", name), slog.String("error", err.Error()))
		}
	}
	return nil
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l := middleware.GetLoggerFromCtx(ctx); l != nil {
		return l
	}
	return slog.Default()
}
