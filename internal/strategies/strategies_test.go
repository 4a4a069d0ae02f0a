package strategies_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/provider"
	"github.com/SscSPs/payment_ledger/internal/repositories/memory"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock Provider ---
type MockProvider struct {
	mock.Mock
}

var _ strategies.Provider = (*MockProvider)(nil)

func (m *MockProvider) CreateCharge(ctx context.Context, req provider.ChargeRequest, key string) (*provider.Charge, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Charge), args.Error(1)
}

func (m *MockProvider) GetCharge(ctx context.Context, id string) (*provider.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Charge), args.Error(1)
}

func (m *MockProvider) CreateTransfer(ctx context.Context, req provider.TransferRequest, key string) (*provider.Transfer, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Transfer), args.Error(1)
}

func (m *MockProvider) GetTransfer(ctx context.Context, id string) (*provider.Transfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Transfer), args.Error(1)
}

func (m *MockProvider) CreateRefund(ctx context.Context, req provider.RefundRequest, key string) (*provider.Refund, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Refund), args.Error(1)
}

func (m *MockProvider) GetRefund(ctx context.Context, id string) (*provider.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Refund), args.Error(1)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fundingTarget() strategies.Target {
	return strategies.Target{
		Owner:    domain.StrategyOwnerFunding,
		ID:       "ft-1",
		MemberID: "m1",
		Amount:   decimal.RequireFromString("5.00"),
		Currency: "USD",
	}
}

func seedInstrument(t *testing.T, store *memory.Store, inst domain.Instrument) {
	t.Helper()
	require.NoError(t, store.SaveInstrument(context.Background(), inst))
}

func details(t *testing.T, params strategies.StartParams) json.RawMessage {
	t.Helper()
	d, err := strategies.InitialDetails(params)
	require.NoError(t, err)
	return d
}

func TestACHCollectFunds_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedInstrument(t, store, domain.Instrument{InstrumentID: "bank-1", MemberID: "m1", Kind: domain.InstrumentBankAccount, ExternalID: "ba_ext", Verified: true})
	p := new(MockProvider)
	p.On("CreateTransfer", mock.Anything, provider.TransferRequest{
		Direction:     provider.DirectionDebit,
		BankAccountID: "ba_ext",
		Amount:        500,
		Currency:      "USD",
	}, "funding_transaction:ft-1:collect_funds").Return(&provider.Transfer{ID: "xfer-1", Status: provider.TransferPending}, nil).Once()

	reg := strategies.NewRegistry(p)
	s, err := reg.Funding(domain.StrategyACH, fundingTarget(), details(t, strategies.StartParams{InstrumentID: "bank-1"}))
	require.NoError(t, err)
	reasons, err := s.CheckValidity(ctx, store, now)
	require.NoError(t, err)
	require.Empty(t, reasons)

	outcome, err := s.CollectFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategies.Performed, outcome)
	persisted, err := s.Details()
	require.NoError(t, err)

	// A fresh strategy built from the persisted row must not call the provider again.
	again, err := reg.Funding(domain.StrategyACH, fundingTarget(), persisted)
	require.NoError(t, err)
	outcome, err = again.CollectFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategies.NoOp, outcome)

	after, err := again.Details()
	require.NoError(t, err)
	assert.JSONEq(t, string(persisted), string(after))
	assert.Contains(t, string(after), `"transfer_id":"xfer-1"`)
	p.AssertNumberOfCalls(t, "CreateTransfer", 1)
}

func TestCheckValidity_ReportsInstrumentReasons(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	expired := now.Add(-time.Hour)
	seedInstrument(t, store, domain.Instrument{InstrumentID: "card-1", MemberID: "m1", Kind: domain.InstrumentCard, ExternalID: "card_ext", ExpiresAt: &expired})

	s, err := strategies.NewRegistry(new(MockProvider)).Funding(domain.StrategyCard, fundingTarget(), details(t, strategies.StartParams{InstrumentID: "card-1"}))
	require.NoError(t, err)

	reasons, err := s.CheckValidity(ctx, store, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"instrument not verified", "instrument has expired"}, reasons)
	assert.False(t, s.ReadyToCollectFunds())
}

func TestCheckValidity_WrongKind(t *testing.T) {
	store := memory.NewStore()
	seedInstrument(t, store, domain.Instrument{InstrumentID: "card-1", MemberID: "m1", Kind: domain.InstrumentCard, ExternalID: "card_ext", Verified: true})

	s, err := strategies.NewRegistry(new(MockProvider)).Funding(domain.StrategyACH, fundingTarget(), details(t, strategies.StartParams{InstrumentID: "card-1"}))
	require.NoError(t, err)

	reasons, err := s.CheckValidity(context.Background(), store, now)

	require.NoError(t, err)
	assert.Equal(t, []string{"instrument is not a bank account"}, reasons)
}

func TestCardCollectFunds_TerminalErrorIsCollectionFailed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedInstrument(t, store, domain.Instrument{InstrumentID: "card-1", MemberID: "m1", Kind: domain.InstrumentCard, ExternalID: "card_ext", Verified: true})
	p := new(MockProvider)
	p.On("CreateCharge", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &apperrors.ProviderError{StatusCode: 402, Code: "card_declined"}).Once()

	s, err := strategies.NewRegistry(p).Funding(domain.StrategyCard, fundingTarget(), details(t, strategies.StartParams{InstrumentID: "card-1"}))
	require.NoError(t, err)
	_, err = s.CheckValidity(ctx, store, now)
	require.NoError(t, err)

	_, err = s.CollectFunds(ctx)

	assert.ErrorIs(t, err, apperrors.ErrCollectionFailed)
	assert.True(t, apperrors.IsTerminal(err))
}

func TestCardCollectFunds_RecoverableErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedInstrument(t, store, domain.Instrument{InstrumentID: "card-1", MemberID: "m1", Kind: domain.InstrumentCard, ExternalID: "card_ext", Verified: true})
	p := new(MockProvider)
	p.On("CreateCharge", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &apperrors.ProviderError{Recoverable: true, StatusCode: 503}).Once()

	s, err := strategies.NewRegistry(p).Funding(domain.StrategyCard, fundingTarget(), details(t, strategies.StartParams{InstrumentID: "card-1"}))
	require.NoError(t, err)
	_, err = s.CheckValidity(ctx, store, now)
	require.NoError(t, err)

	_, err = s.CollectFunds(ctx)

	assert.True(t, apperrors.IsRecoverable(err))
	assert.NotErrorIs(t, err, apperrors.ErrCollectionFailed)
}

func TestCardFundsCleared_PrefersExternalEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.InsertExternalEvent(ctx, domain.ExternalEvent{
		EventID: "ev-1", Provider: strategies.ProviderProcessor, ProviderEventID: "pe-1",
		ObjectType: "charge", ObjectID: "ch_1", Status: provider.ChargeSucceeded, OccurredAt: now,
	})
	require.NoError(t, err)
	p := new(MockProvider)

	s, err := strategies.NewRegistry(p).Funding(domain.StrategyCard, fundingTarget(), json.RawMessage(`{"instrument_id":"card-1","source_id":"card_ext","provider_charge_id":"ch_1"}`))
	require.NoError(t, err)

	cleared, err := s.FundsCleared(ctx, store)
	require.NoError(t, err)
	canceled, err := s.FundsCanceled(ctx, store)
	require.NoError(t, err)

	assert.True(t, cleared)
	assert.False(t, canceled)
	p.AssertNotCalled(t, "GetCharge", mock.Anything, mock.Anything)
}

func TestCardFundsCanceled_PollsProviderForChargeback(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("GetCharge", mock.Anything, "ch_1").Return(&provider.Charge{ID: "ch_1", Status: provider.ChargeChargedBack}, nil).Once()

	s, err := strategies.NewRegistry(p).Funding(domain.StrategyCard, fundingTarget(), json.RawMessage(`{"provider_charge_id":"ch_1"}`))
	require.NoError(t, err)

	canceled, err := s.FundsCanceled(ctx, memory.NewStore())

	require.NoError(t, err)
	assert.True(t, canceled)
	p.AssertExpectations(t)
}

func TestResetRetriesUnderNewKey(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("CreateRefund", mock.Anything, provider.RefundRequest{ChargeID: "ch_1", Amount: 500}, "payout_transaction:pt-1:send_funds:retry-1").
		Return(&provider.Refund{ID: "re_2", Status: provider.RefundPending}, nil).Once()
	target := fundingTarget()
	target.Owner = domain.StrategyOwnerPayout
	target.ID = "pt-1"

	s, err := strategies.NewRegistry(p).Payout(domain.StrategyRefund, target, json.RawMessage(`{"provider_charge_id":"ch_1","refund_id":"re_1"}`))
	require.NoError(t, err)
	s.Reset()

	outcome, err := s.SendFunds(ctx)

	require.NoError(t, err)
	assert.Equal(t, strategies.Performed, outcome)
	p.AssertExpectations(t)
}

func TestOffPlatform_ClearedByManualEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := strategies.NewRegistry(nil)

	s, err := reg.Funding(domain.StrategyOffPlatform, fundingTarget(), nil)
	require.NoError(t, err)
	outcome, err := s.CollectFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategies.Performed, outcome)
	outcome, err = s.CollectFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategies.NoOp, outcome)

	cleared, err := s.FundsCleared(ctx, store)
	require.NoError(t, err)
	assert.False(t, cleared)

	_, err = store.InsertExternalEvent(ctx, domain.ExternalEvent{
		EventID: "ev-1", Provider: strategies.ProviderManual, ProviderEventID: "check-77",
		ObjectType: strategies.OffPlatformObjectType, ObjectID: "ft-1", Status: strategies.ManualCleared, OccurredAt: now,
	})
	require.NoError(t, err)
	persisted, err := s.Details()
	require.NoError(t, err)
	fresh, err := reg.Funding(domain.StrategyOffPlatform, fundingTarget(), persisted)
	require.NoError(t, err)

	cleared, err = fresh.FundsCleared(ctx, store)
	require.NoError(t, err)
	assert.True(t, cleared)
}

func TestRegistry_RejectsUnsupportedKinds(t *testing.T) {
	reg := strategies.NewRegistry(nil)

	_, err := reg.Funding(domain.StrategyRefund, fundingTarget(), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = reg.Payout(domain.StrategyCard, fundingTarget(), nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "funding_transaction:ft-1:collect_funds", strategies.IdempotencyKey("funding_transaction", "ft-1", "collect_funds"))
	assert.Equal(t, "payout_transaction:pt-1:send_funds:retry-2", strategies.IdempotencyKey("payout_transaction", "pt-1", "send_funds", "retry-2"))
}
