package services

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerReaderSvc defines read operations for ledgers.
type LedgerReaderSvc interface {
	// LedgerBalance returns the ledger and its derived balance.
	LedgerBalance(ctx context.Context, ledgerID string) (*domain.Ledger, decimal.Decimal, error)

	ListBookTransactions(ctx context.Context, ledgerID string) ([]domain.BookTransaction, error)
}

// LedgerSvcFacade combines all ledger operations exposed outside the core.
type LedgerSvcFacade interface {
	LedgerReaderSvc
}
