package strategies

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
)

// Statuses an operator reports for off platform money through the manual provider.
const (
	ManualCleared  = "cleared"
	ManualSettled  = "settled"
	ManualCanceled = "canceled"
	ManualFailed   = "failed"
)

// OffPlatformObjectType is the external event object type of manual reconciliation rows.
const OffPlatformObjectType = "off_platform"

type offPlatformDetails struct {
	Reference   string     `json:"reference"`
	InitiatedAt *time.Time `json:"initiated_at,omitempty"`
}

// OffPlatform is money moved outside the processor, for example a check or a wire. Collect and send
// only record that the movement was initiated; an operator reconciles it with a manual event.
type OffPlatform struct {
	target Target
	d      offPlatformDetails
	now    func() time.Time
	status string
}

func newOffPlatform(t Target, details json.RawMessage, now func() time.Time) (*OffPlatform, error) {
	s := &OffPlatform{target: t, now: now}
	if err := decode(details, &s.d); err != nil {
		return nil, err
	}
	if s.d.Reference == "" {
		s.d.Reference = t.ID
	}
	return s, nil
}

func (s *OffPlatform) Kind() domain.StrategyKind { return domain.StrategyOffPlatform }

func (s *OffPlatform) CheckValidity(context.Context, portsrepo.Store, time.Time) ([]string, error) {
	return nil, nil
}

func (s *OffPlatform) ReadyToCollectFunds() bool { return true }
func (s *OffPlatform) ReadyToSendFunds() bool    { return true }

func (s *OffPlatform) initiate() Outcome {
	if s.d.InitiatedAt != nil {
		return NoOp
	}
	at := s.now().UTC()
	s.d.InitiatedAt = &at
	return Performed
}

func (s *OffPlatform) CollectFunds(context.Context) (Outcome, error) { return s.initiate(), nil }
func (s *OffPlatform) SendFunds(context.Context) (Outcome, error)    { return s.initiate(), nil }

func (s *OffPlatform) currentStatus(ctx context.Context, store portsrepo.Store) (string, error) {
	if s.status != "" {
		return s.status, nil
	}
	status, err := externalStatus(ctx, store, ProviderManual, OffPlatformObjectType, s.d.Reference)
	s.status = status
	return status, err
}

func (s *OffPlatform) FundsCleared(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == ManualCleared || status == ManualSettled, err
}

func (s *OffPlatform) FundsSettled(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.FundsCleared(ctx, store)
}

func (s *OffPlatform) FundsCanceled(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == ManualCanceled || status == ManualFailed, err
}

func (s *OffPlatform) FundsFailed(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.FundsCanceled(ctx, store)
}

func (s *OffPlatform) Reset() {
	s.d.InitiatedAt = nil
	s.status = ""
}

func (s *OffPlatform) Details() (json.RawMessage, error) {
	return json.Marshal(s.d)
}
