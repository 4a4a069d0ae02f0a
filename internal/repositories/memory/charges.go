package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) InsertCharge(_ context.Context, charge domain.Charge) error {
	return s.with(func(d *data) error {
		if _, ok := d.charges[charge.ChargeID]; ok {
			return fmt.Errorf("charge %s: %w", charge.ChargeID, apperrors.ErrDuplicate)
		}
		charge.LineItems = nil
		d.charges[charge.ChargeID] = charge
		return nil
	})
}

func (s *Store) InsertChargeLineItem(_ context.Context, item domain.ChargeLineItem) error {
	return s.with(func(d *data) error {
		if _, ok := d.charges[item.ChargeID]; !ok {
			return fmt.Errorf("charge %s: %w", item.ChargeID, apperrors.ErrNotFound)
		}
		d.lineItems = append(d.lineItems, item)
		return nil
	})
}

func (s *Store) AttachFundingTransaction(_ context.Context, chargeID, fundingTransactionID string) error {
	return s.with(func(d *data) error {
		charge, ok := d.charges[chargeID]
		if !ok {
			return fmt.Errorf("charge %s: %w", chargeID, apperrors.ErrNotFound)
		}
		id := fundingTransactionID
		charge.FundingTransactionID = &id
		d.charges[chargeID] = charge
		return nil
	})
}

func (s *Store) FindChargeByID(_ context.Context, chargeID string) (*domain.Charge, error) {
	var out *domain.Charge
	err := s.with(func(d *data) error {
		charge, ok := d.charges[chargeID]
		if !ok {
			return fmt.Errorf("charge %s: %w", chargeID, apperrors.ErrNotFound)
		}
		for _, li := range d.lineItems {
			if li.ChargeID == chargeID {
				charge.LineItems = append(charge.LineItems, li)
			}
		}
		slices.SortStableFunc(charge.LineItems, func(a, b domain.ChargeLineItem) int { return a.Position - b.Position })
		out = &charge
		return nil
	})
	return out, err
}

func (s *Store) ListActiveTriggers(_ context.Context, at time.Time) ([]domain.Trigger, error) {
	var out []domain.Trigger
	err := s.with(func(d *data) error {
		for _, t := range d.triggers {
			if t.ActiveAt(at) {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Trigger) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.TriggerID, b.TriggerID)
	})
	return out, err
}

func (s *Store) SaveTrigger(_ context.Context, trigger domain.Trigger) error {
	return s.with(func(d *data) error {
		d.triggers[trigger.TriggerID] = trigger
		return nil
	})
}

func (s *Store) FindTriggerExecution(_ context.Context, triggerID, ledgerID, eventKey string) (*domain.TriggerExecution, error) {
	var out *domain.TriggerExecution
	err := s.with(func(d *data) error {
		for _, e := range d.executions {
			if e.TriggerID == triggerID && e.ReceivingLedgerID == ledgerID && e.EventKey == eventKey {
				out = &e
				return nil
			}
		}
		return fmt.Errorf("execution of trigger %s for %s: %w", triggerID, eventKey, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) InsertTriggerExecution(_ context.Context, execution domain.TriggerExecution) error {
	return s.with(func(d *data) error {
		for _, e := range d.executions {
			if e.TriggerID == execution.TriggerID && e.ReceivingLedgerID == execution.ReceivingLedgerID && e.EventKey == execution.EventKey {
				return fmt.Errorf("execution of trigger %s for %s: %w", e.TriggerID, e.EventKey, apperrors.ErrDuplicate)
			}
		}
		d.executions = append(d.executions, execution)
		return nil
	})
}

func (s *Store) SumSubsidyApplied(_ context.Context, triggerID, ledgerID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.with(func(d *data) error {
		ids := map[string]bool{}
		for _, e := range d.executions {
			if e.TriggerID == triggerID && e.ReceivingLedgerID == ledgerID {
				ids[e.BookTransactionID] = true
			}
		}
		for _, bt := range d.bookTxs {
			if ids[bt.BookTransactionID] {
				total = total.Add(bt.Amount)
			}
		}
		return nil
	})
	return total, err
}

// AllTriggerExecutions returns every trigger execution in insertion order.
func (s *Store) AllTriggerExecutions() []domain.TriggerExecution {
	var out []domain.TriggerExecution
	_ = s.with(func(d *data) error {
		out = slices.Clone(d.executions)
		return nil
	})
	return out
}

func (s *Store) FindInstrumentByID(_ context.Context, instrumentID string) (*domain.Instrument, error) {
	var out *domain.Instrument
	err := s.with(func(d *data) error {
		inst, ok := d.instruments[instrumentID]
		if !ok {
			return fmt.Errorf("instrument %s: %w", instrumentID, apperrors.ErrNotFound)
		}
		out = &inst
		return nil
	})
	return out, err
}

func (s *Store) FindDefaultInstrument(_ context.Context, memberID string, kind domain.InstrumentKind) (*domain.Instrument, error) {
	var out *domain.Instrument
	err := s.with(func(d *data) error {
		for _, inst := range d.instruments {
			if inst.MemberID == memberID && inst.Kind == kind && inst.IsDefault && !inst.Deleted {
				out = &inst
				return nil
			}
		}
		return fmt.Errorf("default %s instrument for member %s: %w", kind, memberID, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) SaveInstrument(_ context.Context, instrument domain.Instrument) error {
	return s.with(func(d *data) error {
		d.instruments[instrument.InstrumentID] = instrument
		return nil
	})
}
