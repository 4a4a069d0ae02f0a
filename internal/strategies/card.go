package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/provider"
)

type cardDetails struct {
	InstrumentID     string          `json:"instrument_id"`
	SourceID         string          `json:"source_id,omitempty"`
	ProviderChargeID string          `json:"provider_charge_id,omitempty"`
	ChargeJSON       json.RawMessage `json:"charge_json,omitempty"`
	Attempt          int             `json:"attempt,omitempty"`
}

// CardFunding charges a member's card.
type CardFunding struct {
	provider Provider
	target   Target
	d        cardDetails
	status   string
}

func newCardFunding(p Provider, t Target, details json.RawMessage) (*CardFunding, error) {
	s := &CardFunding{provider: p, target: t}
	if err := decode(details, &s.d); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CardFunding) Kind() domain.StrategyKind { return domain.StrategyCard }

func (s *CardFunding) CheckValidity(ctx context.Context, tx portsrepo.Store, at time.Time) ([]string, error) {
	inst, reasons, err := instrumentReasons(ctx, tx, s.target, s.d.InstrumentID, domain.InstrumentCard, at)
	if err != nil || len(reasons) > 0 {
		return reasons, err
	}
	s.d.SourceID = inst.ExternalID
	return nil, nil
}

func (s *CardFunding) ReadyToCollectFunds() bool {
	return s.d.SourceID != ""
}

// CollectFunds creates the provider charge once. A persisted charge id makes every later call a no-op.
func (s *CardFunding) CollectFunds(ctx context.Context) (Outcome, error) {
	if s.d.ProviderChargeID != "" {
		return NoOp, nil
	}
	if !s.ReadyToCollectFunds() {
		return NoOp, apperrors.Invariantf("card funding %s collected before its source was pinned", s.target.ID)
	}
	charge, err := s.provider.CreateCharge(ctx, provider.ChargeRequest{
		Amount:      domain.MinorUnits(s.target.Amount),
		Currency:    s.target.Currency,
		SourceID:    s.d.SourceID,
		Description: s.target.Memo,
	}, attemptKey(s.target, "collect_funds", s.d.Attempt))
	if err != nil {
		return NoOp, classify(err, apperrors.ErrCollectionFailed)
	}
	s.remember(charge)
	return Performed, nil
}

func (s *CardFunding) remember(charge *provider.Charge) {
	s.d.ProviderChargeID = charge.ID
	s.d.ChargeJSON, _ = json.Marshal(charge)
	s.status = charge.Status
}

func (s *CardFunding) currentStatus(ctx context.Context, store portsrepo.Store) (string, error) {
	if s.status != "" || s.d.ProviderChargeID == "" {
		return s.status, nil
	}
	status, err := externalStatus(ctx, store, ProviderProcessor, "charge", s.d.ProviderChargeID)
	if err != nil || status != "" {
		s.status = status
		return status, err
	}
	charge, err := s.provider.GetCharge(ctx, s.d.ProviderChargeID)
	if err != nil {
		return "", fmt.Errorf("failed to poll charge %s: %w", s.d.ProviderChargeID, err)
	}
	s.remember(charge)
	return s.status, nil
}

func (s *CardFunding) FundsCleared(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == provider.ChargeSucceeded, err
}

// FundsCanceled is also true after a chargeback of a cleared charge.
func (s *CardFunding) FundsCanceled(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	switch status {
	case provider.ChargeFailed, provider.ChargeCanceled, provider.ChargeChargedBack:
		return true, err
	}
	return false, err
}

func (s *CardFunding) Reset() {
	s.d.ProviderChargeID = ""
	s.d.ChargeJSON = nil
	s.d.Attempt++
	s.status = ""
}

func (s *CardFunding) Details() (json.RawMessage, error) {
	return json.Marshal(s.d)
}
