package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// CashLedgerName names every member's cash ledger.
	CashLedgerName = "Cash"
	// PlatformCashLedgerName names the boundary ledger funding and payout transactions move money through.
	PlatformCashLedgerName = "Platform Cash"
	platformSubsidyPrefix  = "Subsidy: "
)

// AddBookTransactionParams describes one movement between two ledgers.
type AddBookTransactionParams struct {
	OriginatingLedgerID string                `validate:"required"`
	ReceivingLedgerID   string                `validate:"required,nefield=OriginatingLedgerID"`
	Amount              decimal.Decimal       `validate:"-"`
	ApplyAt             time.Time             `validate:"required"`
	Memo                domain.TranslatedText `validate:"-"`
	CategorySlug        string
}

// LedgerService owns payment accounts, ledgers and the book transactions between them.
type LedgerService struct {
	BaseService
	store    portsrepo.Store
	currency string
	validate *validator.Validate
}

// NewLedgerService creates a ledger service settling in currency.
func NewLedgerService(store portsrepo.Store, currency string) *LedgerService {
	return &LedgerService{store: store, currency: currency, validate: validator.New()}
}

// Currency is the settlement currency of every ledger this service creates.
func (s *LedgerService) Currency() string {
	return s.currency
}

// AddBookTransaction persists one immutable movement inside the caller's transaction. It does not
// recompute balances.
func (s *LedgerService) AddBookTransaction(ctx context.Context, tx portsrepo.Store, p AddBookTransactionParams) (*domain.BookTransaction, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, apperrors.Validationf("book transaction: %v", err)
	}
	if !p.Amount.Equal(domain.RoundMoney(p.Amount)) {
		return nil, apperrors.Validationf("amount %s has sub-cent precision", p.Amount)
	}

	from, err := tx.Ledgers().FindLedgerByID(ctx, p.OriginatingLedgerID)
	if err != nil {
		return nil, fmt.Errorf("originating ledger: %w", err)
	}
	to, err := tx.Ledgers().FindLedgerByID(ctx, p.ReceivingLedgerID)
	if err != nil {
		return nil, fmt.Errorf("receiving ledger: %w", err)
	}
	if from.CurrencyCode != to.CurrencyCode {
		return nil, apperrors.Validationf("currency mismatch: %s is %s, %s is %s", from.Name, from.CurrencyCode, to.Name, to.CurrencyCode)
	}
	for _, accountID := range []string{from.AccountID, to.AccountID} {
		acct, err := tx.PaymentAccounts().FindPaymentAccountByID(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("account of ledger: %w", err)
		}
		if p.ApplyAt.Before(acct.CreatedAt) {
			return nil, apperrors.Validationf("apply_at %s is before account %s was created", p.ApplyAt.Format(time.RFC3339), acct.AccountID)
		}
	}

	bt := domain.BookTransaction{
		BookTransactionID:      uuid.NewString(),
		OriginatingLedgerID:    from.LedgerID,
		ReceivingLedgerID:      to.LedgerID,
		Amount:                 p.Amount,
		CurrencyCode:           from.CurrencyCode,
		ApplyAt:                p.ApplyAt,
		Memo:                   p.Memo,
		AssociatedCategorySlug: p.CategorySlug,
		CreatedAt:              s.now(),
		CreatedBy:              auditcontext.ActorFromContext(ctx).ID,
	}
	if err := bt.Validate(); err != nil {
		return nil, err
	}
	if err := tx.BookTransactions().InsertBookTransaction(ctx, bt); err != nil {
		return nil, fmt.Errorf("failed to insert book transaction: %w", err)
	}
	s.LogDebug(ctx, "Book transaction added",
		slog.String("book_transaction_id", bt.BookTransactionID),
		slog.String("from", from.LedgerID),
		slog.String("to", to.LedgerID),
		slog.String("amount", bt.Amount.String()))
	return &bt, nil
}

// EnsurePaymentAccount finds the member's account, creating it on first need.
func (s *LedgerService) EnsurePaymentAccount(ctx context.Context, tx portsrepo.Store, memberID string) (*domain.PaymentAccount, error) {
	if memberID == "" {
		return nil, apperrors.Validationf("member id is required")
	}
	acct, err := tx.PaymentAccounts().FindPaymentAccountByMember(ctx, memberID)
	if err == nil || !errors.Is(err, apperrors.ErrNotFound) {
		return acct, err
	}
	if err := tx.PaymentAccounts().SavePaymentAccount(ctx, domain.PaymentAccount{
		AccountID: uuid.NewString(),
		MemberID:  memberID,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create payment account: %w", err)
	}
	return tx.PaymentAccounts().FindPaymentAccountByMember(ctx, memberID)
}

// EnsurePlatformAccount finds or creates the platform's own account.
func (s *LedgerService) EnsurePlatformAccount(ctx context.Context, tx portsrepo.Store) (*domain.PaymentAccount, error) {
	acct, err := tx.PaymentAccounts().FindPlatformAccount(ctx)
	if err == nil || !errors.Is(err, apperrors.ErrNotFound) {
		return acct, err
	}
	// CreatedAt stays zero: the platform predates every member, so backdated boundary transactions are allowed.
	if err := tx.PaymentAccounts().SavePaymentAccount(ctx, domain.PaymentAccount{
		AccountID:         uuid.NewString(),
		IsPlatformAccount: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to create platform account: %w", err)
	}
	return tx.PaymentAccounts().FindPlatformAccount(ctx)
}

// EnsureLedger finds the account's ledger called name, creating it with the given categories.
func (s *LedgerService) EnsureLedger(ctx context.Context, tx portsrepo.Store, accountID, name string, categorySlugs []string, text domain.TranslatedText) (*domain.Ledger, error) {
	l, err := tx.Ledgers().FindLedgerByName(ctx, accountID, name)
	if err == nil || !errors.Is(err, apperrors.ErrNotFound) {
		return l, err
	}
	if err := tx.Ledgers().SaveLedger(ctx, domain.Ledger{
		LedgerID:         uuid.NewString(),
		AccountID:        accountID,
		Name:             name,
		CurrencyCode:     s.currency,
		CategorySlugs:    categorySlugs,
		ContributionText: text,
		CreatedAt:        s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create ledger %q: %w", name, err)
	}
	s.LogInfo(ctx, "Ledger created", slog.String("account_id", accountID), slog.String("name", name))
	return tx.Ledgers().FindLedgerByName(ctx, accountID, name)
}

// EnsureCashLedger returns the account's cash ledger.
func (s *LedgerService) EnsureCashLedger(ctx context.Context, tx portsrepo.Store, accountID string) (*domain.Ledger, error) {
	return s.EnsureLedger(ctx, tx, accountID, CashLedgerName, []string{domain.CashCategorySlug}, domain.NewTranslatedText("Cash"))
}

// EnsurePlatformCashLedger returns the boundary ledger of the platform account.
func (s *LedgerService) EnsurePlatformCashLedger(ctx context.Context, tx portsrepo.Store) (*domain.Ledger, error) {
	platform, err := s.EnsurePlatformAccount(ctx, tx)
	if err != nil {
		return nil, err
	}
	return s.EnsureLedger(ctx, tx, platform.AccountID, PlatformCashLedgerName, []string{domain.CashCategorySlug}, domain.NewTranslatedText("Platform cash"))
}

// EnsurePlatformLedger returns the platform subsidy ledger for a category.
func (s *LedgerService) EnsurePlatformLedger(ctx context.Context, tx portsrepo.Store, categorySlug string) (*domain.Ledger, error) {
	platform, err := s.EnsurePlatformAccount(ctx, tx)
	if err != nil {
		return nil, err
	}
	return s.EnsureLedger(ctx, tx, platform.AccountID, platformSubsidyPrefix+categorySlug, []string{categorySlug}, domain.NewTranslatedText("Subsidy"))
}

// LedgerBalance reads the derived balance of one ledger.
func (s *LedgerService) LedgerBalance(ctx context.Context, ledgerID string) (*domain.Ledger, decimal.Decimal, error) {
	l, err := s.store.Ledgers().FindLedgerByID(ctx, ledgerID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	balances, err := s.store.Ledgers().LedgerBalances(ctx, []string{ledgerID})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return l, balances[ledgerID], nil
}

// LedgerBalances reads the balances of ledgers inside tx.
func (s *LedgerService) LedgerBalances(ctx context.Context, tx portsrepo.Store, ledgers []domain.Ledger) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(ledgers))
	for _, l := range ledgers {
		if l.Persisted() {
			ids = append(ids, l.LedgerID)
		}
	}
	return tx.Ledgers().LedgerBalances(ctx, ids)
}

// ListBookTransactions returns every movement touching the ledger.
func (s *LedgerService) ListBookTransactions(ctx context.Context, ledgerID string) ([]domain.BookTransaction, error) {
	if _, err := s.store.Ledgers().FindLedgerByID(ctx, ledgerID); err != nil {
		return nil, err
	}
	return s.store.BookTransactions().ListBookTransactionsByLedger(ctx, ledgerID)
}
