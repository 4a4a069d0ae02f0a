package dto

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ReviewActionRequest carries the operator's reason for canceling or resuming a transaction.
type ReviewActionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SettlementResponse is the shared shape of funding and payout transactions.
type SettlementResponse struct {
	ID                          string                `json:"id"`
	MemberID                    string                `json:"memberID"`
	Amount                      decimal.Decimal       `json:"amount"`
	CurrencyCode                string                `json:"currencyCode"`
	Memo                        domain.TranslatedText `json:"memo"`
	Status                      string                `json:"status"`
	StrategyKind                domain.StrategyKind   `json:"strategyKind"`
	OriginatedBookTransactionID *string               `json:"originatedBookTransactionID,omitempty"`
	ReversalBookTransactionID   *string               `json:"reversalBookTransactionID,omitempty"`
	ReviewReason                string                `json:"reviewReason,omitempty"`
	CreatedAt                   time.Time             `json:"createdAt"`
	LastUpdatedAt               time.Time             `json:"lastUpdatedAt"`
	LastUpdatedBy               string                `json:"lastUpdatedBy"`
}

func ToFundingResponse(ft *domain.FundingTransaction) SettlementResponse {
	return SettlementResponse{
		ID:                          ft.FundingTransactionID,
		MemberID:                    ft.MemberID,
		Amount:                      ft.Amount,
		CurrencyCode:                ft.CurrencyCode,
		Memo:                        ft.Memo,
		Status:                      string(ft.Status),
		StrategyKind:                ft.StrategyKind,
		OriginatedBookTransactionID: ft.OriginatedBookTransactionID,
		ReversalBookTransactionID:   ft.ReversalBookTransactionID,
		ReviewReason:                ft.ReviewReason,
		CreatedAt:                   ft.CreatedAt,
		LastUpdatedAt:               ft.LastUpdatedAt,
		LastUpdatedBy:               ft.LastUpdatedBy,
	}
}

func ToPayoutResponse(pt *domain.PayoutTransaction) SettlementResponse {
	return SettlementResponse{
		ID:                          pt.PayoutTransactionID,
		MemberID:                    pt.MemberID,
		Amount:                      pt.Amount,
		CurrencyCode:                pt.CurrencyCode,
		Memo:                        pt.Memo,
		Status:                      string(pt.Status),
		StrategyKind:                pt.StrategyKind,
		OriginatedBookTransactionID: pt.OriginatedBookTransactionID,
		ReversalBookTransactionID:   pt.ReversalBookTransactionID,
		ReviewReason:                pt.ReviewReason,
		CreatedAt:                   pt.CreatedAt,
		LastUpdatedAt:               pt.LastUpdatedAt,
		LastUpdatedBy:               pt.LastUpdatedBy,
	}
}

// WebhookEventRequest is the envelope every provider notification is normalized to.
type WebhookEventRequest struct {
	EventID    string          `json:"id" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	ObjectType string          `json:"objectType" binding:"required"`
	ObjectID   string          `json:"objectID" binding:"required"`
	Status     string          `json:"status" binding:"required"`
	OccurredAt time.Time       `json:"occurredAt" binding:"required"`
	Data       json.RawMessage `json:"data"`
}

// CreatePayoutRequest moves money out of a member's cash ledger.
type CreatePayoutRequest struct {
	MemberID     string                `json:"memberID" binding:"required"`
	Amount       decimal.Decimal       `json:"amount" binding:"required"`
	Kind         domain.StrategyKind   `json:"kind" binding:"required,oneof=ach off_platform"`
	InstrumentID string                `json:"instrumentID"`
	Reference    string                `json:"reference"`
	Memo         domain.TranslatedText `json:"memo"`
}

// RefundFundingRequest refunds part or all of a cleared card funding transaction.
type RefundFundingRequest struct {
	Amount decimal.Decimal       `json:"amount" binding:"required"`
	Memo   domain.TranslatedText `json:"memo"`
}
