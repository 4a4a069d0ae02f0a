package dto

import (
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DiscountRequest is an amount the vendor took off the subtotal.
type DiscountRequest struct {
	Amount decimal.Decimal       `json:"amount" binding:"required"`
	Memo   domain.TranslatedText `json:"memo"`
}

// CreateChargeRequest defines the data needed to charge a member for a purchase.
type CreateChargeRequest struct {
	Kind                 string                `json:"kind" binding:"required,oneof=checkout trip off_platform"`
	MemberID             string                `json:"memberID" binding:"required"`
	UndiscountedSubtotal decimal.Decimal       `json:"undiscountedSubtotal" binding:"required"`
	Discounts            []DiscountRequest     `json:"discounts"`
	CategorySlug         string                `json:"categorySlug" binding:"required"`
	ApplyAt              *time.Time            `json:"applyAt"`
	Memo                 domain.TranslatedText `json:"memo"`
	QuotedCashAmount     *decimal.Decimal      `json:"quotedCashAmount"` // Required for checkout
	InstrumentID         string                `json:"instrumentID"`
}

// ChargeLineItemResponse mirrors domain.ChargeLineItem.
type ChargeLineItemResponse struct {
	LineItemID        string                         `json:"lineItemID"`
	BookTransactionID *string                        `json:"bookTransactionID,omitempty"`
	SelfData          *domain.ChargeLineItemSelfData `json:"selfData,omitempty"`
	Position          int                            `json:"position"`
}

// ChargeResponse defines the data returned for a charge.
type ChargeResponse struct {
	ChargeID             string                   `json:"chargeID"`
	Kind                 string                   `json:"kind"`
	MemberID             string                   `json:"memberID"`
	UndiscountedSubtotal decimal.Decimal          `json:"undiscountedSubtotal"`
	CurrencyCode         string                   `json:"currencyCode"`
	CategorySlug         string                   `json:"categorySlug"`
	ApplyAt              time.Time                `json:"applyAt"`
	FundingTransactionID *string                  `json:"fundingTransactionID,omitempty"`
	LineItems            []ChargeLineItemResponse `json:"lineItems"`
	CreatedAt            time.Time                `json:"createdAt"`
	CreatedBy            string                   `json:"createdBy"`
}

// ToChargeResponse converts a domain.Charge to ChargeResponse DTO
func ToChargeResponse(c *domain.Charge) ChargeResponse {
	items := make([]ChargeLineItemResponse, len(c.LineItems))
	for i, li := range c.LineItems {
		items[i] = ChargeLineItemResponse{
			LineItemID:        li.LineItemID,
			BookTransactionID: li.BookTransactionID,
			SelfData:          li.SelfData,
			Position:          li.Position,
		}
	}
	return ChargeResponse{
		ChargeID:             c.ChargeID,
		Kind:                 c.Kind,
		MemberID:             c.MemberID,
		UndiscountedSubtotal: c.UndiscountedSubtotal,
		CurrencyCode:         c.CurrencyCode,
		CategorySlug:         c.CategorySlug,
		ApplyAt:              c.ApplyAt,
		FundingTransactionID: c.FundingTransactionID,
		LineItems:            items,
		CreatedAt:            c.CreatedAt,
		CreatedBy:            c.CreatedBy,
	}
}
