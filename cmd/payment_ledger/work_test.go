package main

import (
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/services"
	"github.com/SscSPs/payment_ledger/internal/jobs"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerJobs_DriveFundingAndPayouts(t *testing.T) {
	cfg = &config.Config{WorkerBatchSize: 25, LockDefaultBackoff: 30 * time.Second}
	t.Cleanup(func() { cfg = nil })

	svcs := &services.Services{Funding: &services.FundingService{}, Payout: &services.PayoutService{}}
	got := workerJobs(svcs)
	require.Len(t, got, 3)

	funding, ok := got[0].(*jobs.ProcessFundingTransactions)
	require.True(t, ok)
	assert.Same(t, svcs.Funding, funding.Funding)
	assert.Equal(t, 25, funding.BatchSize)
	assert.Equal(t, 30*time.Second, *funding.Backoff)

	reconcile, ok := got[1].(*jobs.ReconcileClearedFunding)
	require.True(t, ok)
	assert.Same(t, svcs.Funding, reconcile.Funding)

	payouts, ok := got[2].(*jobs.ProcessPayoutTransactions)
	require.True(t, ok)
	assert.Same(t, svcs.Payout, payouts.Payouts)
}
