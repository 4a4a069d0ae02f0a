package services

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/dto"
)

// Processor advances a funding or payout transaction by one step.
type Processor interface {
	// Process returns recoverable errors unchanged so the caller can retry later.
	Process(ctx context.Context, id string) error
}

// ReviewSvc holds the operator actions on transactions in review.
type ReviewSvc interface {
	Cancel(ctx context.Context, id, reason string) error
	Resume(ctx context.Context, id, reason string) error
}

// FundingSvcFacade combines all funding transaction operations.
type FundingSvcFacade interface {
	Processor
	ReviewSvc
	GetFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error)
	ListProcessable(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error)
}

// PayoutSvcFacade combines all payout transaction operations.
type PayoutSvcFacade interface {
	Processor
	ReviewSvc
	GetPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error)
	CreatePayout(ctx context.Context, req dto.CreatePayoutRequest) (*domain.PayoutTransaction, error)

	// RequestRefund starts a refund payout of a cleared card funding transaction.
	RequestRefund(ctx context.Context, fundingID string, req dto.RefundFundingRequest) (*domain.PayoutTransaction, error)
	ListProcessable(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error)
}
