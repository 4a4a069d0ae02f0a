package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/payment_ledger/internal/advisorylock"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/core/services"
	"github.com/SscSPs/payment_ledger/internal/jobs"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/SscSPs/payment_ledger/pkg/database"
	"github.com/spf13/cobra"
)

// redisLockTTL bounds how long a crashed worker can hold a job lock.
const redisLockTTL = 10 * time.Minute

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the settlement worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return work(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workCmd)
}

func work(ctx context.Context) error {
	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := database.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var backend advisorylock.Backend
	switch cfg.LockBackend {
	case "redis":
		backend = advisorylock.NewRedis(rdb, redisLockTTL)
	case "postgres":
		sqlDB := database.SQLDB(pool)
		defer sqlDB.Close()
		backend = advisorylock.NewPostgres(sqlDB)
	default:
		return fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}

	runner := jobs.NewRunner(advisorylock.NewLocker(backend), jobs.NewRedisScheduler(rdb))
	worker := jobs.NewWorker(runner, cfg.WorkerPollInterval, workerJobs(buildServices(pool))...)

	// jobs act as the system and log with a worker scoped logger
	ctx = auditcontext.WithActor(ctx, domain.SystemActor)
	ctx = middleware.WithLogger(ctx, logger.With(slog.String("component", "worker"), slog.String("lock_backend", cfg.LockBackend)))
	return worker.Start(ctx)
}

func workerJobs(svcs *services.Services) []jobs.Job {
	settlement := jobs.Settlement{BatchSize: cfg.WorkerBatchSize, Backoff: jobs.Backoff(cfg.LockDefaultBackoff)}
	return jobs.SettlementJobs(settlement, svcs.Funding, svcs.Payout)
}
