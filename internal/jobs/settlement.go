package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
)

// FundingProcessor is the part of the funding service the funding jobs drive.
type FundingProcessor interface {
	ListProcessable(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error)
	Process(ctx context.Context, id string) error
}

// PayoutProcessor is the part of the payout service the payout job drives.
type PayoutProcessor interface {
	ListProcessable(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error)
	Process(ctx context.Context, id string) error
}

// Settlement is the batch size and lock backoff shared by the settlement jobs.
type Settlement struct {
	BatchSize int
	Backoff   *time.Duration
}

// SettlementJobs returns the jobs that drive funding and payout transactions to completion.
func SettlementJobs(settlement Settlement, funding FundingProcessor, payouts PayoutProcessor) []Job {
	return []Job{
		&ProcessFundingTransactions{Settlement: settlement, Funding: funding},
		&ReconcileClearedFunding{Settlement: settlement, Funding: funding},
		&ProcessPayoutTransactions{Settlement: settlement, Payouts: payouts},
	}
}

// processBatch advances each id by one step. A failure on one transaction is logged and the batch
// moves on; recoverable provider failures are retried on the next run.
func processBatch(ctx context.Context, kind string, ids []string, process func(context.Context, string) error) {
	logger := loggerFrom(ctx)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return
		}
		err := process(ctx, id)
		switch {
		case err == nil:
		case apperrors.IsRecoverable(err):
			logger.Warn("Recoverable provider failure, will retry", slog.String(kind, id), slog.String("error", err.Error()))
		default:
			logger.Error("Failed to process transaction", slog.String(kind, id), slog.String("error", err.Error()))
		}
	}
}

// ProcessFundingTransactions collects created funding and polls funding being collected.
type ProcessFundingTransactions struct {
	Settlement
	Funding FundingProcessor
}

func (j *ProcessFundingTransactions) Name() string { return "process_funding_transactions" }

func (j *ProcessFundingTransactions) AdvisoryLock() *LockConfig {
	return &LockConfig{Backoff: j.Backoff}
}

func (j *ProcessFundingTransactions) Run(ctx context.Context) error {
	ids, err := j.Funding.ListProcessable(ctx, []domain.FundingStatus{domain.FundingCreated, domain.FundingCollecting}, j.BatchSize)
	if err != nil {
		return err
	}
	processBatch(ctx, "funding_transaction_id", ids, j.Funding.Process)
	return nil
}

// ReconcileClearedFunding polls cleared funding for chargebacks.
type ReconcileClearedFunding struct {
	Settlement
	Funding FundingProcessor
}

func (j *ReconcileClearedFunding) Name() string { return "reconcile_cleared_funding" }

func (j *ReconcileClearedFunding) AdvisoryLock() *LockConfig {
	return &LockConfig{Backoff: j.Backoff}
}

func (j *ReconcileClearedFunding) Run(ctx context.Context) error {
	ids, err := j.Funding.ListProcessable(ctx, []domain.FundingStatus{domain.FundingCleared}, j.BatchSize)
	if err != nil {
		return err
	}
	processBatch(ctx, "funding_transaction_id", ids, j.Funding.Process)
	return nil
}

// ProcessPayoutTransactions sends created payouts and polls payouts being sent.
type ProcessPayoutTransactions struct {
	Settlement
	Payouts PayoutProcessor
}

func (j *ProcessPayoutTransactions) Name() string { return "process_payout_transactions" }

func (j *ProcessPayoutTransactions) AdvisoryLock() *LockConfig {
	return &LockConfig{Backoff: j.Backoff}
}

func (j *ProcessPayoutTransactions) Run(ctx context.Context) error {
	ids, err := j.Payouts.ListProcessable(ctx, []domain.PayoutStatus{domain.PayoutCreated, domain.PayoutSending}, j.BatchSize)
	if err != nil {
		return err
	}
	processBatch(ctx, "payout_transaction_id", ids, j.Payouts.Process)
	return nil
}
