package pgsql

import (
	"context"
	"slices"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PgxPaymentAccountRepository struct {
	BaseRepository
}

var _ portsrepo.PaymentAccountRepositoryFacade = (*PgxPaymentAccountRepository)(nil)

const selectPaymentAccountFields = `account_id, member_id, is_platform_account, read_only, created_at`

func scanPaymentAccount(row pgx.Row) (*domain.PaymentAccount, error) {
	var a domain.PaymentAccount
	var memberID *string
	if err := row.Scan(&a.AccountID, &memberID, &a.IsPlatformAccount, &a.ReadOnly, &a.CreatedAt); err != nil {
		return nil, err
	}
	if memberID != nil {
		a.MemberID = *memberID
	}
	return &a, nil
}

func (r *PgxPaymentAccountRepository) FindPaymentAccountByID(ctx context.Context, accountID string) (*domain.PaymentAccount, error) {
	a, err := scanPaymentAccount(r.queryRow(ctx, `SELECT `+selectPaymentAccountFields+` FROM payment_accounts WHERE account_id = $1`, accountID))
	return a, mapError(err, "payment account "+accountID)
}

func (r *PgxPaymentAccountRepository) FindPaymentAccountByMember(ctx context.Context, memberID string) (*domain.PaymentAccount, error) {
	a, err := scanPaymentAccount(r.queryRow(ctx, `
		SELECT `+selectPaymentAccountFields+` FROM payment_accounts
		WHERE member_id = $1 AND NOT is_platform_account`, memberID))
	return a, mapError(err, "payment account for member "+memberID)
}

func (r *PgxPaymentAccountRepository) FindPlatformAccount(ctx context.Context) (*domain.PaymentAccount, error) {
	a, err := scanPaymentAccount(r.queryRow(ctx, `SELECT `+selectPaymentAccountFields+` FROM payment_accounts WHERE is_platform_account`))
	return a, mapError(err, "platform account")
}

// SavePaymentAccount relies on the partial unique indexes on member_id and is_platform_account.
func (r *PgxPaymentAccountRepository) SavePaymentAccount(ctx context.Context, account domain.PaymentAccount) error {
	var memberID *string
	if account.MemberID != "" {
		memberID = &account.MemberID
	}
	_, err := r.exec(ctx, `
		INSERT INTO payment_accounts (account_id, member_id, is_platform_account, read_only, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		account.AccountID, memberID, account.IsPlatformAccount, account.ReadOnly, account.CreatedAt)
	return mapError(err, "payment account "+account.AccountID)
}

func (r *PgxPaymentAccountRepository) LockPaymentAccount(ctx context.Context, accountID string) (*domain.PaymentAccount, error) {
	a, err := scanPaymentAccount(r.queryRow(ctx, `
		SELECT `+selectPaymentAccountFields+` FROM payment_accounts
		WHERE account_id = $1
		FOR UPDATE`, accountID))
	return a, mapError(err, "payment account "+accountID)
}

type PgxLedgerRepository struct {
	BaseRepository
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const selectLedgerFields = `ledger_id, account_id, name, currency_code, category_slugs, contribution_text, created_at`

func scanLedger(row pgx.Row) (*domain.Ledger, error) {
	var l domain.Ledger
	if err := row.Scan(&l.LedgerID, &l.AccountID, &l.Name, &l.CurrencyCode, &l.CategorySlugs, &l.ContributionText, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PgxLedgerRepository) FindLedgerByID(ctx context.Context, ledgerID string) (*domain.Ledger, error) {
	l, err := scanLedger(r.queryRow(ctx, `SELECT `+selectLedgerFields+` FROM ledgers WHERE ledger_id = $1`, ledgerID))
	return l, mapError(err, "ledger "+ledgerID)
}

func (r *PgxLedgerRepository) FindLedgerByName(ctx context.Context, accountID, name string) (*domain.Ledger, error) {
	l, err := scanLedger(r.queryRow(ctx, `SELECT `+selectLedgerFields+` FROM ledgers WHERE account_id = $1 AND name = $2`, accountID, name))
	return l, mapError(err, "ledger "+name)
}

func (r *PgxLedgerRepository) ListLedgersByAccount(ctx context.Context, accountID string) ([]domain.Ledger, error) {
	rows, err := r.query(ctx, `
		SELECT `+selectLedgerFields+` FROM ledgers
		WHERE account_id = $1
		ORDER BY created_at, ledger_id`, accountID)
	if err != nil {
		return nil, mapError(err, "ledgers of account "+accountID)
	}
	defer rows.Close()

	ledgers := []domain.Ledger{}
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, mapError(err, "ledger row")
		}
		ledgers = append(ledgers, *l)
	}
	return ledgers, mapError(rows.Err(), "ledgers of account "+accountID)
}

func (r *PgxLedgerRepository) LedgerBalances(ctx context.Context, ledgerIDs []string) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(ledgerIDs))
	for _, id := range ledgerIDs {
		balances[id] = decimal.Zero
	}
	if len(ledgerIDs) == 0 {
		return balances, nil
	}
	rows, err := r.query(ctx, `SELECT ledger_id, balance FROM ledger_balances WHERE ledger_id = ANY($1)`, ledgerIDs)
	if err != nil {
		return nil, mapError(err, "ledger balances")
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, mapError(err, "ledger balance row")
		}
		balances[id] = balance
	}
	return balances, mapError(rows.Err(), "ledger balances")
}

func (r *PgxLedgerRepository) SaveLedger(ctx context.Context, ledger domain.Ledger) error {
	_, err := r.exec(ctx, `
		INSERT INTO ledgers (ledger_id, account_id, name, currency_code, category_slugs, contribution_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, name) DO NOTHING`,
		ledger.LedgerID, ledger.AccountID, ledger.Name, ledger.CurrencyCode, ledger.CategorySlugs, ledger.ContributionText, ledger.CreatedAt)
	return mapError(err, "ledger "+ledger.Name)
}

// LockLedgers locks in id order so concurrent mutators of overlapping ledger sets cannot deadlock.
func (r *PgxLedgerRepository) LockLedgers(ctx context.Context, ledgerIDs []string) error {
	if len(ledgerIDs) == 0 {
		return nil
	}
	ids := slices.Clone(ledgerIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := r.query(ctx, `SELECT ledger_id FROM ledgers WHERE ledger_id = ANY($1) ORDER BY ledger_id FOR UPDATE`, ids)
	if err != nil {
		return mapError(err, "lock ledgers")
	}
	defer rows.Close()
	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return mapError(err, "lock ledgers")
	}
	if locked != len(ids) {
		return mapError(pgx.ErrNoRows, "ledger to lock")
	}
	return nil
}

type PgxBookTransactionRepository struct {
	BaseRepository
}

var _ portsrepo.BookTransactionRepositoryFacade = (*PgxBookTransactionRepository)(nil)

const selectBookTransactionFields = `
	book_transaction_id, originating_ledger_id, receiving_ledger_id, amount, currency_code,
	apply_at, memo, associated_category_slug, created_at, created_by`

func scanBookTransaction(row pgx.Row) (*domain.BookTransaction, error) {
	var bt domain.BookTransaction
	var category *string
	err := row.Scan(&bt.BookTransactionID, &bt.OriginatingLedgerID, &bt.ReceivingLedgerID, &bt.Amount, &bt.CurrencyCode,
		&bt.ApplyAt, &bt.Memo, &category, &bt.CreatedAt, &bt.CreatedBy)
	if err != nil {
		return nil, err
	}
	if category != nil {
		bt.AssociatedCategorySlug = *category
	}
	return &bt, nil
}

func (r *PgxBookTransactionRepository) InsertBookTransaction(ctx context.Context, bt domain.BookTransaction) error {
	var category *string
	if bt.AssociatedCategorySlug != "" {
		category = &bt.AssociatedCategorySlug
	}
	_, err := r.exec(ctx, `
		INSERT INTO book_transactions (`+selectBookTransactionFields+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		bt.BookTransactionID, bt.OriginatingLedgerID, bt.ReceivingLedgerID, bt.Amount, bt.CurrencyCode,
		bt.ApplyAt, bt.Memo, category, bt.CreatedAt, bt.CreatedBy)
	return mapError(err, "book transaction "+bt.BookTransactionID)
}

func (r *PgxBookTransactionRepository) FindBookTransactionByID(ctx context.Context, bookTransactionID string) (*domain.BookTransaction, error) {
	bt, err := scanBookTransaction(r.queryRow(ctx, `SELECT `+selectBookTransactionFields+` FROM book_transactions WHERE book_transaction_id = $1`, bookTransactionID))
	return bt, mapError(err, "book transaction "+bookTransactionID)
}

func (r *PgxBookTransactionRepository) ListBookTransactionsByLedger(ctx context.Context, ledgerID string) ([]domain.BookTransaction, error) {
	rows, err := r.query(ctx, `
		SELECT `+selectBookTransactionFields+` FROM book_transactions
		WHERE originating_ledger_id = $1 OR receiving_ledger_id = $1
		ORDER BY apply_at, created_at, book_transaction_id`, ledgerID)
	if err != nil {
		return nil, mapError(err, "book transactions of ledger "+ledgerID)
	}
	defer rows.Close()
	out := []domain.BookTransaction{}
	for rows.Next() {
		bt, err := scanBookTransaction(rows)
		if err != nil {
			return nil, mapError(err, "book transaction row")
		}
		out = append(out, *bt)
	}
	return out, mapError(rows.Err(), "book transactions of ledger "+ledgerID)
}

type PgxCategoryRepository struct {
	BaseRepository
}

var _ portsrepo.CategoryRepositoryFacade = (*PgxCategoryRepository)(nil)

func (r *PgxCategoryRepository) ListCategories(ctx context.Context) ([]domain.VendorServiceCategory, error) {
	rows, err := r.query(ctx, `SELECT slug, name, COALESCE(parent_slug, '') FROM vendor_service_categories ORDER BY slug`)
	if err != nil {
		return nil, mapError(err, "categories")
	}
	defer rows.Close()
	out := []domain.VendorServiceCategory{}
	for rows.Next() {
		var c domain.VendorServiceCategory
		if err := rows.Scan(&c.Slug, &c.Name, &c.ParentSlug); err != nil {
			return nil, mapError(err, "category row")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), "categories")
}

func (r *PgxCategoryRepository) SaveCategory(ctx context.Context, category domain.VendorServiceCategory) error {
	var parent *string
	if category.ParentSlug != "" {
		parent = &category.ParentSlug
	}
	_, err := r.exec(ctx, `
		INSERT INTO vendor_service_categories (slug, name, parent_slug) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, parent_slug = EXCLUDED.parent_slug`,
		category.Slug, category.Name, parent)
	return mapError(err, "category "+category.Slug)
}
