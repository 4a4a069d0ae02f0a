package repositories

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PaymentAccountReader defines read operations for payment accounts.
type PaymentAccountReader interface {
	FindPaymentAccountByID(ctx context.Context, accountID string) (*domain.PaymentAccount, error)

	// FindPaymentAccountByMember returns apperrors.ErrNotFound when the member has no account yet.
	FindPaymentAccountByMember(ctx context.Context, memberID string) (*domain.PaymentAccount, error)

	FindPlatformAccount(ctx context.Context) (*domain.PaymentAccount, error)
}

// PaymentAccountWriter defines write operations for payment accounts.
type PaymentAccountWriter interface {
	// SavePaymentAccount inserts the account unless one already exists for the member.
	SavePaymentAccount(ctx context.Context, account domain.PaymentAccount) error
}

// PaymentAccountRepositoryFacade combines all payment account operations.
type PaymentAccountRepositoryFacade interface {
	PaymentAccountReader
	PaymentAccountWriter

	// LockPaymentAccount selects the account row FOR UPDATE. Only meaningful inside Store.InTx.
	LockPaymentAccount(ctx context.Context, accountID string) (*domain.PaymentAccount, error)
}

// LedgerReader defines read operations for ledgers and their derived balances.
type LedgerReader interface {
	FindLedgerByID(ctx context.Context, ledgerID string) (*domain.Ledger, error)
	FindLedgerByName(ctx context.Context, accountID, name string) (*domain.Ledger, error)
	ListLedgersByAccount(ctx context.Context, accountID string) ([]domain.Ledger, error)

	// LedgerBalances reads the balance view. Ledgers without book transactions map to zero.
	LedgerBalances(ctx context.Context, ledgerIDs []string) (map[string]decimal.Decimal, error)
}

// LedgerWriter defines write operations for ledgers. Ledgers are never deleted.
type LedgerWriter interface {
	// SaveLedger inserts the ledger unless the account already has one with the same name.
	SaveLedger(ctx context.Context, ledger domain.Ledger) error
}

// LedgerRepositoryFacade combines all ledger operations.
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter

	// LockLedgers selects the ledger rows FOR UPDATE in id order.
	LockLedgers(ctx context.Context, ledgerIDs []string) error
}

// BookTransactionRepositoryFacade is append only: there is no update or delete.
type BookTransactionRepositoryFacade interface {
	InsertBookTransaction(ctx context.Context, bt domain.BookTransaction) error
	FindBookTransactionByID(ctx context.Context, bookTransactionID string) (*domain.BookTransaction, error)
	ListBookTransactionsByLedger(ctx context.Context, ledgerID string) ([]domain.BookTransaction, error)
}

// CategoryRepositoryFacade stores the vendor service category tree.
type CategoryRepositoryFacade interface {
	ListCategories(ctx context.Context) ([]domain.VendorServiceCategory, error)
	SaveCategory(ctx context.Context, category domain.VendorServiceCategory) error
}
