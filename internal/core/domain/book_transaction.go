package domain

import (
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/shopspring/decimal"
)

// BookTransaction is an immutable movement of money from one ledger to another.
// Corrections are made with new offsetting transactions, never by editing a row.
type BookTransaction struct {
	BookTransactionID      string          `json:"bookTransactionID"`
	OriginatingLedgerID    string          `json:"originatingLedgerID"`
	ReceivingLedgerID      string          `json:"receivingLedgerID"`
	Amount                 decimal.Decimal `json:"amount"`
	CurrencyCode           string          `json:"currencyCode"`
	ApplyAt                time.Time       `json:"applyAt"`
	Memo                   TranslatedText  `json:"memo"`
	AssociatedCategorySlug string          `json:"associatedCategorySlug"`
	CreatedAt              time.Time       `json:"createdAt"`
	CreatedBy              string          `json:"createdBy"`
}

// Validate checks the row-local invariants of a book transaction.
func (b BookTransaction) Validate() error {
	if !b.Amount.IsPositive() {
		return apperrors.Validationf("book transaction amount must be positive, got %s", b.Amount)
	}
	if b.OriginatingLedgerID == "" || b.ReceivingLedgerID == "" {
		return apperrors.Validationf("book transaction requires both originating and receiving ledgers")
	}
	if b.OriginatingLedgerID == b.ReceivingLedgerID {
		return apperrors.Validationf("book transaction cannot originate and receive on ledger %s", b.OriginatingLedgerID)
	}
	if b.CurrencyCode == "" {
		return apperrors.Validationf("book transaction currency is required")
	}
	if b.ApplyAt.IsZero() {
		return apperrors.Validationf("book transaction apply_at is required")
	}
	return nil
}

// DeltaFor returns the balance change the transaction causes on ledgerID.
func (b BookTransaction) DeltaFor(ledgerID string) decimal.Decimal {
	switch ledgerID {
	case b.ReceivingLedgerID:
		return b.Amount
	case b.OriginatingLedgerID:
		return b.Amount.Neg()
	}
	return decimal.Zero
}
