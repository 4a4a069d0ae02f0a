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

type achDetails struct {
	InstrumentID  string          `json:"instrument_id"`
	BankAccountID string          `json:"bank_account_id,omitempty"`
	TransferID    string          `json:"transfer_id,omitempty"`
	TransferJSON  json.RawMessage `json:"ach_transfer_json,omitempty"`
	Attempt       int             `json:"attempt,omitempty"`
}

// ACH moves money over an ACH transfer: a debit when funding, a credit when paying out.
type ACH struct {
	provider  Provider
	target    Target
	direction string
	d         achDetails
	status    string
}

func newACH(p Provider, t Target, details json.RawMessage) (*ACH, error) {
	s := &ACH{provider: p, target: t, direction: provider.DirectionDebit}
	if t.Owner == domain.StrategyOwnerPayout {
		s.direction = provider.DirectionCredit
	}
	if err := decode(details, &s.d); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ACH) Kind() domain.StrategyKind { return domain.StrategyACH }

func (s *ACH) CheckValidity(ctx context.Context, tx portsrepo.Store, at time.Time) ([]string, error) {
	inst, reasons, err := instrumentReasons(ctx, tx, s.target, s.d.InstrumentID, domain.InstrumentBankAccount, at)
	if err != nil || len(reasons) > 0 {
		return reasons, err
	}
	s.d.BankAccountID = inst.ExternalID
	return nil, nil
}

func (s *ACH) ready() bool {
	return s.d.BankAccountID != ""
}

func (s *ACH) ReadyToCollectFunds() bool { return s.ready() }
func (s *ACH) ReadyToSendFunds() bool    { return s.ready() }

func (s *ACH) transfer(ctx context.Context, operation string, declared error) (Outcome, error) {
	if s.d.TransferID != "" {
		return NoOp, nil
	}
	if !s.ready() {
		return NoOp, apperrors.Invariantf("ach %s for %s started before its bank account was pinned", operation, s.target.ID)
	}
	tr, err := s.provider.CreateTransfer(ctx, provider.TransferRequest{
		Direction:     s.direction,
		BankAccountID: s.d.BankAccountID,
		Amount:        domain.MinorUnits(s.target.Amount),
		Currency:      s.target.Currency,
		Description:   s.target.Memo,
	}, attemptKey(s.target, operation, s.d.Attempt))
	if err != nil {
		return NoOp, classify(err, declared)
	}
	s.remember(tr)
	return Performed, nil
}

func (s *ACH) CollectFunds(ctx context.Context) (Outcome, error) {
	return s.transfer(ctx, "collect_funds", apperrors.ErrCollectionFailed)
}

func (s *ACH) SendFunds(ctx context.Context) (Outcome, error) {
	return s.transfer(ctx, "send_funds", apperrors.ErrSendingFailed)
}

func (s *ACH) remember(tr *provider.Transfer) {
	s.d.TransferID = tr.ID
	s.d.TransferJSON, _ = json.Marshal(tr)
	s.status = tr.Status
}

func (s *ACH) currentStatus(ctx context.Context, store portsrepo.Store) (string, error) {
	if s.status != "" || s.d.TransferID == "" {
		return s.status, nil
	}
	status, err := externalStatus(ctx, store, ProviderProcessor, "transfer", s.d.TransferID)
	if err != nil || status != "" {
		s.status = status
		return status, err
	}
	tr, err := s.provider.GetTransfer(ctx, s.d.TransferID)
	if err != nil {
		return "", fmt.Errorf("failed to poll transfer %s: %w", s.d.TransferID, err)
	}
	s.remember(tr)
	return s.status, nil
}

func (s *ACH) posted(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	return status == provider.TransferPosted, err
}

func (s *ACH) failed(ctx context.Context, store portsrepo.Store) (bool, error) {
	status, err := s.currentStatus(ctx, store)
	switch status {
	case provider.TransferReturned, provider.TransferFailed, provider.TransferCanceled:
		return true, err
	}
	return false, err
}

func (s *ACH) FundsCleared(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.posted(ctx, store)
}

func (s *ACH) FundsCanceled(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.failed(ctx, store)
}

func (s *ACH) FundsSettled(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.posted(ctx, store)
}

func (s *ACH) FundsFailed(ctx context.Context, store portsrepo.Store) (bool, error) {
	return s.failed(ctx, store)
}

func (s *ACH) Reset() {
	s.d.TransferID = ""
	s.d.TransferJSON = nil
	s.d.Attempt++
	s.status = ""
}

func (s *ACH) Details() (json.RawMessage, error) {
	return json.Marshal(s.d)
}
