package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FundingTransactionRepositoryFacade persists funding transactions.
type FundingTransactionRepositoryFacade interface {
	InsertFundingTransaction(ctx context.Context, ft domain.FundingTransaction) error
	FindFundingTransactionByID(ctx context.Context, id string) (*domain.FundingTransaction, error)

	// LockFundingTransaction selects the row FOR UPDATE.
	LockFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error)

	// UpdateFundingTransaction writes the mutable fields: status, review reason, book transaction links.
	UpdateFundingTransaction(ctx context.Context, ft domain.FundingTransaction) error

	// MarkFundingTransactionPolled records that the worker looked at the transaction at.
	MarkFundingTransactionPolled(ctx context.Context, id string, at time.Time) error

	// ListFundingTransactionIDsByStatus returns never polled transactions first, then the least
	// recently polled, so long running collections cannot starve newer ones.
	ListFundingTransactionIDsByStatus(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error)
}

// PayoutTransactionRepositoryFacade persists payout transactions.
type PayoutTransactionRepositoryFacade interface {
	InsertPayoutTransaction(ctx context.Context, pt domain.PayoutTransaction) error
	FindPayoutTransactionByID(ctx context.Context, id string) (*domain.PayoutTransaction, error)
	LockPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error)
	UpdatePayoutTransaction(ctx context.Context, pt domain.PayoutTransaction) error
	MarkPayoutTransactionPolled(ctx context.Context, id string, at time.Time) error

	// ListPayoutTransactionIDsByStatus orders like ListFundingTransactionIDsByStatus.
	ListPayoutTransactionIDsByStatus(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error)

	// SumRefundsOfFunding totals the refund payouts of a funding transaction that were not canceled.
	SumRefundsOfFunding(ctx context.Context, fundingID string) (decimal.Decimal, error)
}

// StrategyRepositoryFacade persists the 1:1 strategy row of a funding or payout transaction.
type StrategyRepositoryFacade interface {
	InsertStrategy(ctx context.Context, record domain.StrategyRecord) error
	FindStrategyByOwner(ctx context.Context, ownerType domain.StrategyOwner, ownerID string) (*domain.StrategyRecord, error)
	UpdateStrategyDetails(ctx context.Context, strategyID string, details json.RawMessage, at time.Time) error
}

// AuditLogRepositoryFacade is append only.
type AuditLogRepositoryFacade interface {
	AppendAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, subjectType, subjectID string) ([]domain.AuditLog, error)
}

// ExternalEventRepositoryFacade stores provider webhook rows.
type ExternalEventRepositoryFacade interface {
	// InsertExternalEvent reports false when the (provider, provider event id) pair was already stored.
	InsertExternalEvent(ctx context.Context, event domain.ExternalEvent) (bool, error)

	// LatestExternalEventForObject returns apperrors.ErrNotFound when no event mentions the object.
	LatestExternalEventForObject(ctx context.Context, provider, objectType, objectID string) (*domain.ExternalEvent, error)
}
