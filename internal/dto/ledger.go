package dto

import (
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerBalanceResponse defines the data returned for a ledger balance query.
type LedgerBalanceResponse struct {
	LedgerID      string          `json:"ledgerID"`
	AccountID     string          `json:"accountID"`
	Name          string          `json:"name"`
	CurrencyCode  string          `json:"currencyCode"`
	CategorySlugs []string        `json:"categorySlugs"`
	Balance       decimal.Decimal `json:"balance"`
}

// BookTransactionResponse mirrors domain.BookTransaction.
type BookTransactionResponse struct {
	BookTransactionID      string                `json:"bookTransactionID"`
	OriginatingLedgerID    string                `json:"originatingLedgerID"`
	ReceivingLedgerID      string                `json:"receivingLedgerID"`
	Amount                 decimal.Decimal       `json:"amount"`
	CurrencyCode           string                `json:"currencyCode"`
	ApplyAt                time.Time             `json:"applyAt"`
	Memo                   domain.TranslatedText `json:"memo"`
	AssociatedCategorySlug string                `json:"associatedCategorySlug,omitempty"`
	CreatedAt              time.Time             `json:"createdAt"`
}

// ToLedgerBalanceResponse converts a ledger and its balance.
func ToLedgerBalanceResponse(l *domain.Ledger, balance decimal.Decimal) LedgerBalanceResponse {
	return LedgerBalanceResponse{
		LedgerID:      l.LedgerID,
		AccountID:     l.AccountID,
		Name:          l.Name,
		CurrencyCode:  l.CurrencyCode,
		CategorySlugs: l.CategorySlugs,
		Balance:       balance,
	}
}

// ToListBookTransactionResponse converts book transactions, keeping their order.
func ToListBookTransactionResponse(bts []domain.BookTransaction) []BookTransactionResponse {
	res := make([]BookTransactionResponse, len(bts))
	for i, bt := range bts {
		res[i] = BookTransactionResponse{
			BookTransactionID:      bt.BookTransactionID,
			OriginatingLedgerID:    bt.OriginatingLedgerID,
			ReceivingLedgerID:      bt.ReceivingLedgerID,
			Amount:                 bt.Amount,
			CurrencyCode:           bt.CurrencyCode,
			ApplyAt:                bt.ApplyAt,
			Memo:                   bt.Memo,
			AssociatedCategorySlug: bt.AssociatedCategorySlug,
			CreatedAt:              bt.CreatedAt,
		}
	}
	return res
}
