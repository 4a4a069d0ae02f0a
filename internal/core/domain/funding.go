package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// FundingStatus is the state of money entering the platform.
type FundingStatus string

const (
	FundingCreated     FundingStatus = "created"
	FundingCollecting  FundingStatus = "collecting"
	FundingCleared     FundingStatus = "cleared"
	FundingNeedsReview FundingStatus = "needs_review"
	FundingCanceled    FundingStatus = "canceled"
)

// FundingEvent drives the funding state machine.
type FundingEvent string

const (
	FundingEventCollectFunds  FundingEvent = "collect_funds"
	FundingEventMarkCleared   FundingEvent = "mark_cleared"
	FundingEventPutIntoReview FundingEvent = "put_into_review"
	FundingEventCancel        FundingEvent = "cancel"
	FundingEventResume        FundingEvent = "resume"
)

// FundingStateMachine is the funding transition table.
var FundingStateMachine = NewStateMachine(
	Transition[FundingStatus, FundingEvent]{Event: FundingEventCollectFunds, From: []FundingStatus{FundingCreated}, To: FundingCollecting},
	Transition[FundingStatus, FundingEvent]{Event: FundingEventMarkCleared, From: []FundingStatus{FundingCollecting}, To: FundingCleared},
	Transition[FundingStatus, FundingEvent]{Event: FundingEventPutIntoReview, From: []FundingStatus{FundingCreated, FundingCollecting}, To: FundingNeedsReview},
	Transition[FundingStatus, FundingEvent]{Event: FundingEventCancel, From: []FundingStatus{FundingCreated, FundingCollecting, FundingCleared, FundingNeedsReview}, To: FundingCanceled},
	Transition[FundingStatus, FundingEvent]{Event: FundingEventResume, From: []FundingStatus{FundingNeedsReview}, To: FundingCreated},
)

// PayoutStatus is the state of money leaving the platform.
type PayoutStatus string

const (
	PayoutCreated     PayoutStatus = "created"
	PayoutSending     PayoutStatus = "sending"
	PayoutSettled     PayoutStatus = "settled"
	PayoutNeedsReview PayoutStatus = "needs_review"
	PayoutCanceled    PayoutStatus = "canceled"
)

// PayoutEvent drives the payout state machine.
type PayoutEvent string

const (
	PayoutEventSendFunds     PayoutEvent = "send_funds"
	PayoutEventMarkSettled   PayoutEvent = "mark_settled"
	PayoutEventPutIntoReview PayoutEvent = "put_into_review"
	PayoutEventCancel        PayoutEvent = "cancel"
	PayoutEventResume        PayoutEvent = "resume"
)

// PayoutStateMachine is the payout transition table. Settled payouts cannot be canceled.
var PayoutStateMachine = NewStateMachine(
	Transition[PayoutStatus, PayoutEvent]{Event: PayoutEventSendFunds, From: []PayoutStatus{PayoutCreated}, To: PayoutSending},
	Transition[PayoutStatus, PayoutEvent]{Event: PayoutEventMarkSettled, From: []PayoutStatus{PayoutSending}, To: PayoutSettled},
	Transition[PayoutStatus, PayoutEvent]{Event: PayoutEventPutIntoReview, From: []PayoutStatus{PayoutCreated, PayoutSending}, To: PayoutNeedsReview},
	Transition[PayoutStatus, PayoutEvent]{Event: PayoutEventCancel, From: []PayoutStatus{PayoutCreated, PayoutNeedsReview}, To: PayoutCanceled},
	Transition[PayoutStatus, PayoutEvent]{Event: PayoutEventResume, From: []PayoutStatus{PayoutNeedsReview}, To: PayoutCreated},
)

// StrategyKind is the closed set of money movement rails.
type StrategyKind string

const (
	StrategyCard        StrategyKind = "card"
	StrategyACH         StrategyKind = "ach"
	StrategyOffPlatform StrategyKind = "off_platform"
	StrategyRefund      StrategyKind = "refund"
)

// StrategyOwner tells which kind of transaction a strategy row belongs to.
type StrategyOwner string

const (
	StrategyOwnerFunding StrategyOwner = "funding_transaction"
	StrategyOwnerPayout  StrategyOwner = "payout_transaction"
)

// StrategyRecord is the persisted half of a strategy: its kind and the implementation specific fields
// (external identifiers) serialized as JSON.
type StrategyRecord struct {
	StrategyID string          `json:"strategyID"`
	OwnerType  StrategyOwner   `json:"ownerType"`
	OwnerID    string          `json:"ownerID"`
	Kind       StrategyKind    `json:"kind"`
	Details    json.RawMessage `json:"details"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// FundingTransaction is money entering the platform from an external source.
type FundingTransaction struct {
	FundingTransactionID        string          `json:"fundingTransactionID"`
	AccountID                   string          `json:"accountID"`
	MemberID                    string          `json:"memberID"`
	Amount                      decimal.Decimal `json:"amount"`
	CurrencyCode                string          `json:"currencyCode"`
	Memo                        TranslatedText  `json:"memo"`
	Status                      FundingStatus   `json:"status"`
	StrategyKind                StrategyKind    `json:"strategyKind"`
	OriginatedBookTransactionID *string         `json:"originatedBookTransactionID"`
	ReversalBookTransactionID   *string         `json:"reversalBookTransactionID"`
	ReviewReason                string          `json:"reviewReason"`
	LastPolledAt                *time.Time      `json:"lastPolledAt"`
	AuditFields
}

// PayoutTransaction is money leaving the platform, refunds included.
type PayoutTransaction struct {
	PayoutTransactionID         string          `json:"payoutTransactionID"`
	AccountID                   string          `json:"accountID"`
	MemberID                    string          `json:"memberID"`
	Amount                      decimal.Decimal `json:"amount"`
	CurrencyCode                string          `json:"currencyCode"`
	Memo                        TranslatedText  `json:"memo"`
	Status                      PayoutStatus    `json:"status"`
	StrategyKind                StrategyKind    `json:"strategyKind"`
	OriginatedBookTransactionID *string         `json:"originatedBookTransactionID"`
	ReversalBookTransactionID   *string         `json:"reversalBookTransactionID"`
	ReviewReason                string          `json:"reviewReason"`
	LastPolledAt                *time.Time      `json:"lastPolledAt"`

	// RefundedFundingTransactionID is set on refund payouts only.
	RefundedFundingTransactionID *string `json:"refundedFundingTransactionID"`
	AuditFields
}
