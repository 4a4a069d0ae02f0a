package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/core/services"
	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/SscSPs/payment_ledger/internal/provider"
	"github.com/SscSPs/payment_ledger/internal/repositories/memory"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/shopspring/decimal"
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

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fixture wires every service over one memory store with a clock that only moves through advance.
type fixture struct {
	ctx      context.Context
	store    *memory.Store
	provider *MockProvider
	svcs     *services.Services
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	p := new(MockProvider)
	f := &fixture{
		ctx:      auditcontext.WithActor(context.Background(), domain.Actor{ID: "admin-1", Kind: domain.ActorAdmin}),
		store:    store,
		provider: p,
		now:      testNow,
	}
	f.svcs = services.NewServices(&config.Config{SettlementCurrency: "USD"}, services.Dependencies{
		Store:    store,
		Oracle:   eligibility.AllowAll{},
		Provider: p,
		Clock:    func() time.Time { return f.now },
	})
	for _, c := range []domain.VendorServiceCategory{
		{Slug: domain.CashCategorySlug, Name: "Cash"},
		{Slug: "food", Name: "Food"},
		{Slug: "groceries", Name: "Groceries", ParentSlug: "food"},
		{Slug: "transport", Name: "Transport"},
	} {
		require.NoError(t, store.SaveCategory(f.ctx, c))
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// ledger finds or creates the member's ledger for category and credits it with amount from the
// platform. Cash ledgers are credited from platform cash, others from the category subsidy ledger.
func (f *fixture) ledger(t *testing.T, memberID, name, category, amount string) domain.Ledger {
	t.Helper()
	var out *domain.Ledger
	err := f.store.InTx(f.ctx, func(tx portsrepo.Store) error {
		acct, err := f.svcs.Ledger.EnsurePaymentAccount(f.ctx, tx, memberID)
		if err != nil {
			return err
		}
		var source *domain.Ledger
		if category == domain.CashCategorySlug {
			if out, err = f.svcs.Ledger.EnsureCashLedger(f.ctx, tx, acct.AccountID); err != nil {
				return err
			}
			source, err = f.svcs.Ledger.EnsurePlatformCashLedger(f.ctx, tx)
		} else {
			if out, err = f.svcs.Ledger.EnsureLedger(f.ctx, tx, acct.AccountID, name, []string{category}, domain.NewTranslatedText(name)); err != nil {
				return err
			}
			source, err = f.svcs.Ledger.EnsurePlatformLedger(f.ctx, tx, category)
		}
		if err != nil {
			return err
		}
		if amt := dec(amount); amt.IsPositive() {
			_, err = f.svcs.Ledger.AddBookTransaction(f.ctx, tx, services.AddBookTransactionParams{
				OriginatingLedgerID: source.LedgerID,
				ReceivingLedgerID:   out.LedgerID,
				Amount:              amt,
				ApplyAt:             testNow,
				Memo:                domain.NewTranslatedText("seed"),
			})
		}
		return err
	})
	require.NoError(t, err)
	return *out
}

func (f *fixture) cashLedger(t *testing.T, memberID string) domain.Ledger {
	return f.ledger(t, memberID, services.CashLedgerName, domain.CashCategorySlug, "0")
}

func (f *fixture) platformLedger(t *testing.T, category string) domain.Ledger {
	t.Helper()
	var out *domain.Ledger
	require.NoError(t, f.store.InTx(f.ctx, func(tx portsrepo.Store) error {
		var err error
		if category == domain.CashCategorySlug {
			out, err = f.svcs.Ledger.EnsurePlatformCashLedger(f.ctx, tx)
		} else {
			out, err = f.svcs.Ledger.EnsurePlatformLedger(f.ctx, tx, category)
		}
		return err
	}))
	return *out
}

func (f *fixture) balance(t *testing.T, ledgerID string) decimal.Decimal {
	t.Helper()
	_, bal, err := f.svcs.Ledger.LedgerBalance(f.ctx, ledgerID)
	require.NoError(t, err)
	return bal
}

// totalBalance sums every ledger touched by a book transaction. Money only moves between ledgers,
// so this is always zero.
func (f *fixture) totalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, bt := range f.store.AllBookTransactions() {
		total = total.Add(bt.DeltaFor(bt.ReceivingLedgerID)).Add(bt.DeltaFor(bt.OriginatingLedgerID))
	}
	return total
}

func (f *fixture) card(t *testing.T, memberID, instrumentID string) domain.Instrument {
	t.Helper()
	inst := domain.Instrument{
		InstrumentID: instrumentID,
		MemberID:     memberID,
		Kind:         domain.InstrumentCard,
		ExternalID:   "src_" + instrumentID,
		Verified:     true,
		IsDefault:    true,
	}
	require.NoError(t, f.store.SaveInstrument(f.ctx, inst))
	return inst
}

func (f *fixture) bankAccount(t *testing.T, memberID, instrumentID string) domain.Instrument {
	t.Helper()
	inst := domain.Instrument{
		InstrumentID: instrumentID,
		MemberID:     memberID,
		Kind:         domain.InstrumentBankAccount,
		ExternalID:   "ba_" + instrumentID,
		Verified:     true,
		IsDefault:    true,
	}
	require.NoError(t, f.store.SaveInstrument(f.ctx, inst))
	return inst
}

// matchTrigger matches member money one to one from the platform subsidy ledger of category.
func (f *fixture) matchTrigger(t *testing.T, id, receivingName, category string, limit string) domain.Trigger {
	t.Helper()
	source := f.platformLedger(t, category)
	trig := domain.Trigger{
		TriggerID:             id,
		Label:                 "Match " + receivingName,
		ActiveFrom:            testNow.Add(-24 * time.Hour),
		MatchMultiplier:       decimal.NewFromInt(1),
		Memo:                  domain.NewTranslatedText("Match"),
		OriginatingLedgerID:   source.LedgerID,
		ReceivingLedgerName:   receivingName,
		ReceivingCategorySlug: category,
	}
	if limit != "" {
		trig.MaximumCumulativeSubsidy = decimal.NewNullDecimal(dec(limit))
	}
	require.NoError(t, f.store.SaveTrigger(f.ctx, trig))
	return trig
}

func (f *fixture) auditEvents(t *testing.T, subjectType domain.StrategyOwner, id string) []string {
	t.Helper()
	logs, err := f.store.ListAuditLogs(f.ctx, string(subjectType), id)
	require.NoError(t, err)
	events := make([]string, 0, len(logs))
	for _, l := range logs {
		events = append(events, l.Event)
	}
	return events
}
