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

type refundDetails struct {
	ProviderChargeID string          `json:"provider_charge_id"`
	RefundID         string          `json:"refund_id,omitempty"`
	RefundJSON       json.RawMessage `json:"refund_json,omitempty"`
	Attempt          int             `json:"attempt,omitempty"`
}

// Refund pays a member back onto the card charge that funded them.
type Refund struct {
	provider Provider
	target   Target
	d        refundDetails
	status   string
}

func newRefund(p Provider, t Target, details json.RawMessage) (*Refund, error) {
	s := &Refund{provider: p, target: t}
	if err := decode(details, &s.d); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Refund) Kind() domain.StrategyKind { return domain.StrategyRefund }

func (s *Refund) CheckValidity(context.Context, portsrepo.Store, time.Time) ([]string, error) {
	if s.d.ProviderChargeID == "" {
		return []string{"refund has no card charge to refund"}, nil
	}
	return nil, nil
}

func (s *Refund) ReadyToSendFunds() bool {
	return s.d.ProviderChargeID != ""
}

func (s *Refund) SendFunds(ctx context.Context) (Outcome, error) {
	if s.d.RefundID != "" {
		return NoOp, nil
	}
	if !s.ReadyToSendFunds() {
		return NoOp, apperrors.Invariantf("refund %s sent without a charge", s.target.ID)
	}
	refund, err := s.provider.CreateRefund(ctx, provider.RefundRequest{
		ChargeID: s.d.ProviderChargeID,
		Amount:   domain.MinorUnits(s.target.Amount),
	}, attemptKey(s.target, "send_funds", s.d.Attempt))
	if err != nil {
		return NoOp, classify(err, apperrors.ErrSendingFailed)
	}
	s.remember(refund)
	return Performed, nil
}

func (s *Refund) remember(refund *provider.Refund) {
	s.d.RefundID = refund.ID
	s.d.RefundJSON, _ = json.Marshal(refund)
	s.status = refund.Status
}

func (s *Refund) currentStatus(ctx context.Context, store portsrepo.Store) (string, error) {
	if s.status != "" || s.d.RefundID == "" {
		return s.status, nil
	}
	status, err := externalStatus(ctx, store, ProviderProcessor, "refund", s.d.RefundID)
	if err != nil || status != "" {
		s.status = status
		return status, err
	}
	refund, err := s.provider.GetRefund(ctx, s.d.RefundID)
	if err != nil {
		return "", fmt.Errorf("failed to poll refund %s: %w", s.d.RefundID, err)
	}
	s.remember(refund)
	return s.status, nil
}

func (s *Refund) FundsSettled(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == provider.RefundSucceeded, err
}

func (s *Refund) FundsFailed(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == provider.RefundFailed, err
}

func (s *Refund) Reset() {
	s.d.RefundID = ""
	s.d.RefundJSON = nil
	s.d.Attempt++
	s.status = ""
}

func (s *Refund) Details() (json.RawMessage, error) {
	return json.Marshal(s.d)
}
