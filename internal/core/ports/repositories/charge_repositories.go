package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ChargeRepositoryFacade persists charges and their line items.
type ChargeRepositoryFacade interface {
	// InsertCharge stores the charge row only; line items are inserted one by one.
	InsertCharge(ctx context.Context, charge domain.Charge) error
	InsertChargeLineItem(ctx context.Context, item domain.ChargeLineItem) error
	AttachFundingTransaction(ctx context.Context, chargeID, fundingTransactionID string) error

	// FindChargeByID returns the charge with its line items in position order.
	FindChargeByID(ctx context.Context, chargeID string) (*domain.Charge, error)
}

// TriggerRepositoryFacade persists triggers and their executions.
type TriggerRepositoryFacade interface {
	// ListActiveTriggers returns triggers active at at, ordered by priority then id.
	ListActiveTriggers(ctx context.Context, at time.Time) ([]domain.Trigger, error)
	SaveTrigger(ctx context.Context, trigger domain.Trigger) error

	// FindTriggerExecution returns apperrors.ErrNotFound when the trigger has not fired into the ledger for eventKey.
	FindTriggerExecution(ctx context.Context, triggerID, ledgerID, eventKey string) (*domain.TriggerExecution, error)

	// InsertTriggerExecution returns apperrors.ErrDuplicate when the (trigger, ledger, event key) row exists.
	InsertTriggerExecution(ctx context.Context, execution domain.TriggerExecution) error

	// SumSubsidyApplied totals every book transaction the trigger ever put into the ledger.
	SumSubsidyApplied(ctx context.Context, triggerID, ledgerID string) (decimal.Decimal, error)
}

// InstrumentRepositoryFacade reads member payment instruments.
type InstrumentRepositoryFacade interface {
	FindInstrumentByID(ctx context.Context, instrumentID string) (*domain.Instrument, error)

	// FindDefaultInstrument returns the member's default, non deleted instrument of kind.
	FindDefaultInstrument(ctx context.Context, memberID string, kind domain.InstrumentKind) (*domain.Instrument, error)
	SaveInstrument(ctx context.Context, instrument domain.Instrument) error
}
