package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) InsertFundingTransaction(_ context.Context, ft domain.FundingTransaction) error {
	return s.with(func(d *data) error {
		if _, ok := d.funding[ft.FundingTransactionID]; ok {
			return fmt.Errorf("funding transaction %s: %w", ft.FundingTransactionID, apperrors.ErrDuplicate)
		}
		d.funding[ft.FundingTransactionID] = ft
		return nil
	})
}

func (s *Store) FindFundingTransactionByID(_ context.Context, id string) (*domain.FundingTransaction, error) {
	var out *domain.FundingTransaction
	err := s.with(func(d *data) error {
		ft, ok := d.funding[id]
		if !ok {
			return fmt.Errorf("funding transaction %s: %w", id, apperrors.ErrNotFound)
		}
		out = &ft
		return nil
	})
	return out, err
}

func (s *Store) LockFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error) {
	return s.FindFundingTransactionByID(ctx, id)
}

func (s *Store) UpdateFundingTransaction(_ context.Context, ft domain.FundingTransaction) error {
	return s.with(func(d *data) error {
		existing, ok := d.funding[ft.FundingTransactionID]
		if !ok {
			return fmt.Errorf("funding transaction %s: %w", ft.FundingTransactionID, apperrors.ErrNotFound)
		}
		existing.Status = ft.Status
		existing.ReviewReason = ft.ReviewReason
		existing.OriginatedBookTransactionID = ft.OriginatedBookTransactionID
		existing.ReversalBookTransactionID = ft.ReversalBookTransactionID
		existing.LastUpdatedAt = ft.LastUpdatedAt
		existing.LastUpdatedBy = ft.LastUpdatedBy
		d.funding[ft.FundingTransactionID] = existing
		return nil
	})
}

func (s *Store) ListFundingTransactionIDsByStatus(_ context.Context, statuses []domain.FundingStatus, limit int) ([]string, error) {
	var rows []domain.FundingTransaction
	err := s.with(func(d *data) error {
		for _, ft := range d.funding {
			if slices.Contains(statuses, ft.Status) {
				rows = append(rows, ft)
			}
		}
		return nil
	})
	slices.SortFunc(rows, func(a, b domain.FundingTransaction) int {
		if c := comparePolled(a.LastPolledAt, b.LastPolledAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.FundingTransactionID, b.FundingTransactionID)
	})
	ids := make([]string, 0, len(rows))
	for _, ft := range rows {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, ft.FundingTransactionID)
	}
	return ids, err
}

func (s *Store) MarkFundingTransactionPolled(_ context.Context, id string, at time.Time) error {
	return s.with(func(d *data) error {
		ft, ok := d.funding[id]
		if !ok {
			return fmt.Errorf("funding transaction %s: %w", id, apperrors.ErrNotFound)
		}
		ft.LastPolledAt = &at
		d.funding[id] = ft
		return nil
	})
}

// comparePolled sorts never polled rows first, like NULLS FIRST.
func comparePolled(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (s *Store) InsertPayoutTransaction(_ context.Context, pt domain.PayoutTransaction) error {
	return s.with(func(d *data) error {
		if _, ok := d.payouts[pt.PayoutTransactionID]; ok {
			return fmt.Errorf("payout transaction %s: %w", pt.PayoutTransactionID, apperrors.ErrDuplicate)
		}
		d.payouts[pt.PayoutTransactionID] = pt
		return nil
	})
}

func (s *Store) FindPayoutTransactionByID(_ context.Context, id string) (*domain.PayoutTransaction, error) {
	var out *domain.PayoutTransaction
	err := s.with(func(d *data) error {
		pt, ok := d.payouts[id]
		if !ok {
			return fmt.Errorf("payout transaction %s: %w", id, apperrors.ErrNotFound)
		}
		out = &pt
		return nil
	})
	return out, err
}

func (s *Store) LockPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error) {
	return s.FindPayoutTransactionByID(ctx, id)
}

func (s *Store) UpdatePayoutTransaction(_ context.Context, pt domain.PayoutTransaction) error {
	return s.with(func(d *data) error {
		existing, ok := d.payouts[pt.PayoutTransactionID]
		if !ok {
			return fmt.Errorf("payout transaction %s: %w", pt.PayoutTransactionID, apperrors.ErrNotFound)
		}
		existing.Status = pt.Status
		existing.ReviewReason = pt.ReviewReason
		existing.OriginatedBookTransactionID = pt.OriginatedBookTransactionID
		existing.ReversalBookTransactionID = pt.ReversalBookTransactionID
		existing.LastUpdatedAt = pt.LastUpdatedAt
		existing.LastUpdatedBy = pt.LastUpdatedBy
		d.payouts[pt.PayoutTransactionID] = existing
		return nil
	})
}

func (s *Store) ListPayoutTransactionIDsByStatus(_ context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error) {
	var rows []domain.PayoutTransaction
	err := s.with(func(d *data) error {
		for _, pt := range d.payouts {
			if slices.Contains(statuses, pt.Status) {
				rows = append(rows, pt)
			}
		}
		return nil
	})
	slices.SortFunc(rows, func(a, b domain.PayoutTransaction) int {
		if c := comparePolled(a.LastPolledAt, b.LastPolledAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.PayoutTransactionID, b.PayoutTransactionID)
	})
	ids := make([]string, 0, len(rows))
	for _, pt := range rows {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, pt.PayoutTransactionID)
	}
	return ids, err
}

func (s *Store) MarkPayoutTransactionPolled(_ context.Context, id string, at time.Time) error {
	return s.with(func(d *data) error {
		pt, ok := d.payouts[id]
		if !ok {
			return fmt.Errorf("payout transaction %s: %w", id, apperrors.ErrNotFound)
		}
		pt.LastPolledAt = &at
		d.payouts[id] = pt
		return nil
	})
}

func (s *Store) SumRefundsOfFunding(_ context.Context, fundingID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.with(func(d *data) error {
		for _, pt := range d.payouts {
			if pt.RefundedFundingTransactionID != nil && *pt.RefundedFundingTransactionID == fundingID && pt.Status != domain.PayoutCanceled {
				total = total.Add(pt.Amount)
			}
		}
		return nil
	})
	return total, err
}

func (s *Store) InsertStrategy(_ context.Context, record domain.StrategyRecord) error {
	return s.with(func(d *data) error {
		for _, existing := range d.strategies {
			if existing.OwnerType == record.OwnerType && existing.OwnerID == record.OwnerID {
				return fmt.Errorf("strategy for %s %s: %w", record.OwnerType, record.OwnerID, apperrors.ErrDuplicate)
			}
		}
		record.Details = slices.Clone(record.Details)
		d.strategies[record.StrategyID] = record
		return nil
	})
}

func (s *Store) FindStrategyByOwner(_ context.Context, ownerType domain.StrategyOwner, ownerID string) (*domain.StrategyRecord, error) {
	var out *domain.StrategyRecord
	err := s.with(func(d *data) error {
		for _, rec := range d.strategies {
			if rec.OwnerType == ownerType && rec.OwnerID == ownerID {
				rec.Details = slices.Clone(rec.Details)
				out = &rec
				return nil
			}
		}
		return fmt.Errorf("strategy for %s %s: %w", ownerType, ownerID, apperrors.ErrNotFound)
	})
	return out, err
}

func (s *Store) UpdateStrategyDetails(_ context.Context, strategyID string, details json.RawMessage, at time.Time) error {
	return s.with(func(d *data) error {
		rec, ok := d.strategies[strategyID]
		if !ok {
			return fmt.Errorf("strategy %s: %w", strategyID, apperrors.ErrNotFound)
		}
		rec.Details = slices.Clone(details)
		rec.UpdatedAt = at
		d.strategies[strategyID] = rec
		return nil
	})
}

func (s *Store) AppendAuditLog(_ context.Context, entry domain.AuditLog) error {
	return s.with(func(d *data) error {
		d.auditLogs = append(d.auditLogs, entry)
		return nil
	})
}

func (s *Store) ListAuditLogs(_ context.Context, subjectType, subjectID string) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	err := s.with(func(d *data) error {
		for _, entry := range d.auditLogs {
			if entry.SubjectType == subjectType && entry.SubjectID == subjectID {
				out = append(out, entry)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) InsertExternalEvent(_ context.Context, event domain.ExternalEvent) (bool, error) {
	inserted := false
	err := s.with(func(d *data) error {
		for _, existing := range d.events {
			if existing.Provider == event.Provider && existing.ProviderEventID == event.ProviderEventID {
				return nil
			}
		}
		d.events = append(d.events, event)
		inserted = true
		return nil
	})
	return inserted, err
}

func (s *Store) LatestExternalEventForObject(_ context.Context, provider, objectType, objectID string) (*domain.ExternalEvent, error) {
	var out *domain.ExternalEvent
	err := s.with(func(d *data) error {
		for _, ev := range d.events {
			if ev.Provider != provider || ev.ObjectType != objectType || ev.ObjectID != objectID {
				continue
			}
			if out == nil || !ev.OccurredAt.Before(out.OccurredAt) {
				out = &ev
			}
		}
		if out == nil {
			return fmt.Errorf("external event for %s %s: %w", objectType, objectID, apperrors.ErrNotFound)
		}
		return nil
	})
	return out, err
}
