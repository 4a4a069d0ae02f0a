package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) FindPaymentAccountByID(_ context.Context, accountID string) (*domain.PaymentAccount, error) {
	var out *domain.PaymentAccount
	err := s.with(func(d *data) error {
		acct, ok := d.accounts[accountID]
		if !ok {
			return fmt.Errorf("payment account %s: %w", accountID, apperrors.ErrNotFound)
		}
		out = &acct
		return nil
	})
	return out, err
}

func (s *Store) FindPaymentAccountByMember(_ context.Context, memberID string) (*domain.PaymentAccount, error) {
	var out *domain.PaymentAccount
	err := s.with(func(d *data) error {
		for _, acct := range d.accounts {
			if !acct.IsPlatformAccount && acct.MemberID == memberID {
				out = &acct
				return nil
			}
		}
		return fmt.Errorf("payment account for member %s: %w", memberID, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) FindPlatformAccount(_ context.Context) (*domain.PaymentAccount, error) {
	var out *domain.PaymentAccount
	err := s.with(func(d *data) error {
		for _, acct := range d.accounts {
			if acct.IsPlatformAccount {
				out = &acct
				return nil
			}
		}
		return fmt.Errorf("platform account: %w", apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) SavePaymentAccount(_ context.Context, account domain.PaymentAccount) error {
	return s.with(func(d *data) error {
		for _, existing := range d.accounts {
			if existing.IsPlatformAccount == account.IsPlatformAccount && existing.MemberID == account.MemberID {
				return nil
			}
		}
		d.accounts[account.AccountID] = account
		return nil
	})
}

func (s *Store) LockPaymentAccount(ctx context.Context, accountID string) (*domain.PaymentAccount, error) {
	return s.FindPaymentAccountByID(ctx, accountID)
}

func (s *Store) FindLedgerByID(_ context.Context, ledgerID string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.with(func(d *data) error {
		l, ok := d.ledgers[ledgerID]
		if !ok {
			return fmt.Errorf("ledger %s: %w", ledgerID, apperrors.ErrNotFound)
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *Store) FindLedgerByName(_ context.Context, accountID, name string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.with(func(d *data) error {
		for _, l := range d.ledgers {
			if l.AccountID == accountID && l.Name == name {
				out = &l
				return nil
			}
		}
		return fmt.Errorf("ledger %q in account %s: %w", name, accountID, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) ListLedgersByAccount(_ context.Context, accountID string) ([]domain.Ledger, error) {
	var out []domain.Ledger
	err := s.with(func(d *data) error {
		for _, l := range d.ledgers {
			if l.AccountID == accountID {
				out = append(out, l)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Ledger) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.LedgerID, b.LedgerID)
	})
	return out, err
}

func (s *Store) LedgerBalances(_ context.Context, ledgerIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(ledgerIDs))
	for _, id := range ledgerIDs {
		out[id] = decimal.Zero
	}
	err := s.with(func(d *data) error {
		for _, bt := range d.bookTxs {
			if bal, ok := out[bt.ReceivingLedgerID]; ok {
				out[bt.ReceivingLedgerID] = bal.Add(bt.Amount)
			}
			if bal, ok := out[bt.OriginatingLedgerID]; ok {
				out[bt.OriginatingLedgerID] = bal.Sub(bt.Amount)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) SaveLedger(_ context.Context, ledger domain.Ledger) error {
	return s.with(func(d *data) error {
		for _, existing := range d.ledgers {
			if existing.AccountID == ledger.AccountID && existing.Name == ledger.Name {
				return nil
			}
		}
		d.ledgers[ledger.LedgerID] = ledger
		return nil
	})
}

func (s *Store) LockLedgers(_ context.Context, ledgerIDs []string) error {
	return s.with(func(d *data) error {
		for _, id := range ledgerIDs {
			if _, ok := d.ledgers[id]; !ok {
				return fmt.Errorf("ledger %s: %w", id, apperrors.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *Store) InsertBookTransaction(_ context.Context, bt domain.BookTransaction) error {
	return s.with(func(d *data) error {
		for _, id := range []string{bt.OriginatingLedgerID, bt.ReceivingLedgerID} {
			if _, ok := d.ledgers[id]; !ok {
				return fmt.Errorf("ledger %s: %w", id, apperrors.ErrNotFound)
			}
		}
		d.bookTxs = append(d.bookTxs, bt)
		return nil
	})
}

func (s *Store) FindBookTransactionByID(_ context.Context, bookTransactionID string) (*domain.BookTransaction, error) {
	var out *domain.BookTransaction
	err := s.with(func(d *data) error {
		for _, bt := range d.bookTxs {
			if bt.BookTransactionID == bookTransactionID {
				out = &bt
				return nil
			}
		}
		return fmt.Errorf("book transaction %s: %w", bookTransactionID, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) ListBookTransactionsByLedger(_ context.Context, ledgerID string) ([]domain.BookTransaction, error) {
	var out []domain.BookTransaction
	err := s.with(func(d *data) error {
		for _, bt := range d.bookTxs {
			if bt.OriginatingLedgerID == ledgerID || bt.ReceivingLedgerID == ledgerID {
				out = append(out, bt)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListCategories(_ context.Context) ([]domain.VendorServiceCategory, error) {
	var out []domain.VendorServiceCategory
	err := s.with(func(d *data) error {
		for _, c := range d.categories {
			out = append(out, c)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.VendorServiceCategory) int { return strings.Compare(a.Slug, b.Slug) })
	return out, err
}

func (s *Store) SaveCategory(_ context.Context, category domain.VendorServiceCategory) error {
	return s.with(func(d *data) error {
		d.categories[category.Slug] = category
		return nil
	})
}

// AllBookTransactions returns every book transaction in insertion order.
func (s *Store) AllBookTransactions() []domain.BookTransaction {
	var out []domain.BookTransaction
	_ = s.with(func(d *data) error {
		out = slices.Clone(d.bookTxs)
		return nil
	})
	return out
}
