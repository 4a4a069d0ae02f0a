package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLedgers(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePaymentAccount(ctx, domain.PaymentAccount{AccountID: "acct", MemberID: "m1"}))
	require.NoError(t, s.SaveLedger(ctx, domain.Ledger{LedgerID: "a", AccountID: "acct", Name: "A", CurrencyCode: "USD"}))
	require.NoError(t, s.SaveLedger(ctx, domain.Ledger{LedgerID: "b", AccountID: "acct", Name: "B", CurrencyCode: "USD"}))
}

func bookTx(id string, amount int64) domain.BookTransaction {
	return domain.BookTransaction{
		BookTransactionID:   id,
		OriginatingLedgerID: "a",
		ReceivingLedgerID:   "b",
		Amount:              decimal.NewFromInt(amount),
		CurrencyCode:        "USD",
		ApplyAt:             time.Now(),
	}
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	s := memory.NewStore()
	seedLedgers(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx portsrepo.Store) error {
		return tx.BookTransactions().InsertBookTransaction(ctx, bookTx("bt1", 7))
	})
	require.NoError(t, err)

	balances, err := s.LedgerBalances(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, balances["a"].Equal(decimal.NewFromInt(-7)))
	assert.True(t, balances["b"].Equal(decimal.NewFromInt(7)))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := memory.NewStore()
	seedLedgers(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx portsrepo.Store) error {
		require.NoError(t, tx.BookTransactions().InsertBookTransaction(ctx, bookTx("bt1", 7)))
		return tx.InTx(ctx, func(inner portsrepo.Store) error {
			require.NoError(t, inner.Charges().InsertCharge(ctx, domain.Charge{ChargeID: "c1"}))
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, s.AllBookTransactions())
	_, err = s.FindChargeByID(ctx, "c1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInsertExternalEvent_Idempotent(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	ev := domain.ExternalEvent{EventID: "e1", Provider: "stripe", ProviderEventID: "evt_1", ObjectType: "charge", ObjectID: "ch_1", Status: "pending", OccurredAt: time.Unix(10, 0)}

	inserted, err := s.InsertExternalEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertExternalEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	newer := ev
	newer.EventID, newer.ProviderEventID, newer.Status, newer.OccurredAt = "e2", "evt_2", "succeeded", time.Unix(20, 0)
	_, err = s.InsertExternalEvent(ctx, newer)
	require.NoError(t, err)

	latest, err := s.LatestExternalEventForObject(ctx, "stripe", "charge", "ch_1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", latest.Status)
}

func TestInsertTriggerExecution_Duplicate(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	exec := domain.TriggerExecution{ExecutionID: "x1", TriggerID: "t1", ReceivingLedgerID: "l1", EventKey: "charge:1"}
	require.NoError(t, s.InsertTriggerExecution(ctx, exec))

	exec.ExecutionID = "x2"
	assert.ErrorIs(t, s.InsertTriggerExecution(ctx, exec), apperrors.ErrDuplicate)
}

func TestListFundingTransactionIDs_LeastRecentlyPolledFirst(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"ft-old", "ft-mid", "ft-new"} {
		require.NoError(t, s.InsertFundingTransaction(ctx, domain.FundingTransaction{
			FundingTransactionID: id,
			Status:               domain.FundingCollecting,
			AuditFields:          domain.AuditFields{CreatedAt: base.Add(time.Duration(i) * time.Hour)},
		}))
	}
	statuses := []domain.FundingStatus{domain.FundingCollecting}

	ids, err := s.ListFundingTransactionIDsByStatus(ctx, statuses, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ft-old", "ft-mid", "ft-new"}, ids)

	require.NoError(t, s.MarkFundingTransactionPolled(ctx, "ft-old", base.Add(3*time.Hour)))
	require.NoError(t, s.MarkFundingTransactionPolled(ctx, "ft-mid", base.Add(2*time.Hour)))

	ids, err = s.ListFundingTransactionIDsByStatus(ctx, statuses, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ft-new", "ft-mid"}, ids)
	assert.ErrorIs(t, s.MarkFundingTransactionPolled(ctx, "missing", base), apperrors.ErrNotFound)
}

func TestSumRefundsOfFunding_SkipsCanceledAndOtherFunding(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	funding, other := "ft-1", "ft-2"
	for _, pt := range []domain.PayoutTransaction{
		{PayoutTransactionID: "po-1", Amount: decimal.NewFromInt(10), Status: domain.PayoutSending, RefundedFundingTransactionID: &funding},
		{PayoutTransactionID: "po-2", Amount: decimal.NewFromInt(5), Status: domain.PayoutCanceled, RefundedFundingTransactionID: &funding},
		{PayoutTransactionID: "po-3", Amount: decimal.NewFromInt(3), Status: domain.PayoutSettled, RefundedFundingTransactionID: &funding},
		{PayoutTransactionID: "po-4", Amount: decimal.NewFromInt(7), Status: domain.PayoutCreated, RefundedFundingTransactionID: &other},
		{PayoutTransactionID: "po-5", Amount: decimal.NewFromInt(9), Status: domain.PayoutCreated},
	} {
		require.NoError(t, s.InsertPayoutTransaction(ctx, pt))
	}

	total, err := s.SumRefundsOfFunding(ctx, funding)

	require.NoError(t, err)
	assert.Equal(t, "13", total.String())
}
