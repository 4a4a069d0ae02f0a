// Package strategies holds the money movement rails a funding or payout transaction uses. Each
// strategy persists its external identifiers in the strategy row so that collect/send is idempotent.
package strategies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/provider"
	"github.com/shopspring/decimal"
)

// Provider names stored on external events.
const (
	ProviderProcessor = "processor"
	ProviderManual    = "manual"
)

// Provider is the subset of the processor API strategies call.
type Provider interface {
	CreateCharge(ctx context.Context, req provider.ChargeRequest, idempotencyKey string) (*provider.Charge, error)
	GetCharge(ctx context.Context, id string) (*provider.Charge, error)
	CreateTransfer(ctx context.Context, req provider.TransferRequest, idempotencyKey string) (*provider.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*provider.Transfer, error)
	CreateRefund(ctx context.Context, req provider.RefundRequest, idempotencyKey string) (*provider.Refund, error)
	GetRefund(ctx context.Context, id string) (*provider.Refund, error)
}

// Outcome tells whether collect/send performed the external side effect or found it already done.
type Outcome int

const (
	Performed Outcome = iota
	NoOp
)

func (o Outcome) String() string {
	if o == NoOp {
		return "no-op"
	}
	return "performed"
}

// Target is the transaction a strategy moves money for.
type Target struct {
	Owner    domain.StrategyOwner
	ID       string
	MemberID string
	Amount   decimal.Decimal
	Currency string
	Memo     string
}

// StartParams are the caller supplied inputs of a new strategy.
type StartParams struct {
	InstrumentID     string `json:"instrument_id,omitempty"`
	ProviderChargeID string `json:"provider_charge_id,omitempty"`
	Reference        string `json:"reference,omitempty"`
}

// Strategy is the capability set shared by every rail.
type Strategy interface {
	Kind() domain.StrategyKind

	// CheckValidity returns human readable reasons the strategy cannot move money at at. It pins the
	// instrument's provider identifier into the details when the instrument is usable.
	CheckValidity(ctx context.Context, tx portsrepo.Store, at time.Time) ([]string, error)

	// Reset forgets the external object so that a resumed transaction retries under a new idempotency key.
	Reset()

	Details() (json.RawMessage, error)
}

// FundingStrategy moves money into the platform.
type FundingStrategy interface {
	Strategy
	ReadyToCollectFunds() bool
	CollectFunds(ctx context.Context) (Outcome, error)
	FundsCleared(ctx context.Context, store portsrepo.Store) (bool, error)
	FundsCanceled(ctx context.Context, store portsrepo.Store) (bool, error)
}

// PayoutStrategy moves money out of the platform.
type PayoutStrategy interface {
	Strategy
	ReadyToSendFunds() bool
	SendFunds(ctx context.Context) (Outcome, error)
	FundsSettled(ctx context.Context, store portsrepo.Store) (bool, error)

	// FundsFailed reports that the provider gave up on a sent payout.
	FundsFailed(ctx context.Context, store portsrepo.Store) (bool, error)
}

// IdempotencyKey derives the provider idempotency key of an operation on an entity. Disambiguators
// separate retries that must not collapse into the original call.
func IdempotencyKey(entityType, id, operation string, disambiguators ...string) string {
	parts := append([]string{entityType, id, operation}, disambiguators...)
	return strings.Join(parts, ":")
}

func attemptKey(t Target, operation string, attempt int) string {
	if attempt == 0 {
		return IdempotencyKey(string(t.Owner), t.ID, operation)
	}
	return IdempotencyKey(string(t.Owner), t.ID, operation, fmt.Sprintf("retry-%d", attempt))
}

// classify maps a terminal provider failure onto the declared failure of the operation. Recoverable
// failures pass through untouched.
func classify(err error, declared error) error {
	if apperrors.IsTerminal(err) {
		return fmt.Errorf("%w: %w", declared, err)
	}
	return err
}

// externalStatus returns the newest webhook status for the object, or "" when no event arrived yet.
func externalStatus(ctx context.Context, store portsrepo.Store, providerName, objectType, objectID string) (string, error) {
	ev, err := store.ExternalEvents().LatestExternalEventForObject(ctx, providerName, objectType, objectID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read external events for %s %s: %w", objectType, objectID, err)
	}
	return ev.Status, nil
}

// instrumentReasons loads the instrument and lists why it cannot be used.
func instrumentReasons(ctx context.Context, tx portsrepo.Store, t Target, instrumentID string, kind domain.InstrumentKind, at time.Time) (*domain.Instrument, []string, error) {
	if instrumentID == "" {
		return nil, []string{"no payment instrument selected"}, nil
	}
	inst, err := tx.Instruments().FindInstrumentByID(ctx, instrumentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, []string{"payment instrument not found"}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load instrument %s: %w", instrumentID, err)
	}
	var reasons []string
	if inst.MemberID != t.MemberID {
		reasons = append(reasons, "instrument belongs to another member")
	}
	if inst.Kind != kind {
		reasons = append(reasons, fmt.Sprintf("instrument is not a %s", strings.ReplaceAll(string(kind), "_", " ")))
	}
	reasons = append(reasons, inst.BlockingReasons(at)...)
	return inst, reasons, nil
}

func decode(details json.RawMessage, into any) error {
	if len(details) == 0 {
		return nil
	}
	if err := json.Unmarshal(details, into); err != nil {
		return apperrors.Invariantf("undecodable strategy details: %v", err)
	}
	return nil
}
