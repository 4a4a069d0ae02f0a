package domain

import (
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/shopspring/decimal"
)

// Charge is one purchase. Its cost is covered by debits of member ledgers (line items backed by book
// transactions) plus untracked amounts such as vendor discounts (self data line items).
type Charge struct {
	ChargeID             string           `json:"chargeID"`
	Kind                 string           `json:"kind"`
	MemberID             string           `json:"memberID"`
	AccountID            string           `json:"accountID"`
	UndiscountedSubtotal decimal.Decimal  `json:"undiscountedSubtotal"`
	CurrencyCode         string           `json:"currencyCode"`
	CategorySlug         string           `json:"categorySlug"`
	ApplyAt              time.Time        `json:"applyAt"`
	FundingTransactionID *string          `json:"fundingTransactionID"`
	LineItems            []ChargeLineItem `json:"lineItems"`
	CreatedAt            time.Time        `json:"createdAt"`
	CreatedBy            string           `json:"createdBy"`
}

// ChargeLineItemSelfData is an amount that never touched a ledger.
type ChargeLineItemSelfData struct {
	Amount decimal.Decimal `json:"amount"`
	Memo   TranslatedText  `json:"memo"`
}

// ChargeLineItem is backed by exactly one of a book transaction or self data.
type ChargeLineItem struct {
	LineItemID        string                  `json:"lineItemID"`
	ChargeID          string                  `json:"chargeID"`
	BookTransactionID *string                 `json:"bookTransactionID"`
	SelfData          *ChargeLineItemSelfData `json:"selfData"`
	Position          int                     `json:"position"`
}

// Validate enforces the one-of backing of a line item.
func (li ChargeLineItem) Validate() error {
	if (li.BookTransactionID == nil) == (li.SelfData == nil) {
		return apperrors.Validationf("line item %s must have exactly one of book transaction or self data", li.LineItemID)
	}
	if li.SelfData != nil && !li.SelfData.Amount.IsPositive() {
		return apperrors.Validationf("self data line item amount must be positive")
	}
	return nil
}
