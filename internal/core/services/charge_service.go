package services

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/shopspring/decimal"
)

// ChargeService exposes the charger to the API, one ChargeHooks per purchase type.
type ChargeService struct {
	store   portsrepo.Store
	charger *Charger
	kinds   map[string]ChargeHooks
}

func NewChargeService(store portsrepo.Store, charger *Charger, hooks ...ChargeHooks) *ChargeService {
	kinds := make(map[string]ChargeHooks, len(hooks))
	for _, h := range hooks {
		kinds[h.Kind()] = h
	}
	return &ChargeService{store: store, charger: charger, kinds: kinds}
}

func (s *ChargeService) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	return s.store.Charges().FindChargeByID(ctx, chargeID)
}

func (s *ChargeService) CreateCharge(ctx context.Context, req dto.CreateChargeRequest) (*domain.Charge, error) {
	hooks, ok := s.kinds[req.Kind]
	if !ok {
		return nil, apperrors.Validationf("unknown charge kind %q", req.Kind)
	}
	cr := ChargeRequest{
		MemberID:             req.MemberID,
		UndiscountedSubtotal: req.UndiscountedSubtotal,
		CategorySlug:         req.CategorySlug,
		Memo:                 req.Memo,
		InstrumentID:         req.InstrumentID,
	}
	if req.ApplyAt != nil {
		cr.ApplyAt = req.ApplyAt.UTC()
	}
	if req.QuotedCashAmount != nil {
		cr.QuotedCashAmount = decimal.NewNullDecimal(*req.QuotedCashAmount)
	}
	for _, d := range req.Discounts {
		cr.Discounts = append(cr.Discounts, domain.ChargeLineItemSelfData{Amount: d.Amount, Memo: d.Memo})
	}
	return s.charger.Charge(ctx, cr, hooks)
}
