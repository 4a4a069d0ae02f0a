package strategies

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
)

// Registry builds strategies from their persisted kind and details. The set of kinds is closed.
type Registry struct {
	provider Provider
	now      func() time.Time
}

func NewRegistry(p Provider) *Registry {
	return &Registry{provider: p, now: time.Now}
}

// InitialDetails serializes start parameters into the first version of a strategy's details.
func InitialDetails(params StartParams) (json.RawMessage, error) {
	return json.Marshal(params)
}

// Funding returns the funding strategy of kind.
func (r *Registry) Funding(kind domain.StrategyKind, t Target, details json.RawMessage) (FundingStrategy, error) {
	switch kind {
	case domain.StrategyCard:
		return newCardFunding(r.provider, t, details)
	case domain.StrategyACH:
		return newACH(r.provider, t, details)
	case domain.StrategyOffPlatform:
		return newOffPlatform(t, details, r.now)
	}
	return nil, apperrors.Validationf("%q cannot fund a transaction", kind)
}

// Payout returns the payout strategy of kind.
func (r *Registry) Payout(kind domain.StrategyKind, t Target, details json.RawMessage) (PayoutStrategy, error) {
	switch kind {
	case domain.StrategyACH:
		return newACH(r.provider, t, details)
	case domain.StrategyRefund:
		return newRefund(r.provider, t, details)
	case domain.StrategyOffPlatform:
		return newOffPlatform(t, details, r.now)
	}
	return nil, apperrors.Validationf("%q cannot pay out a transaction", kind)
}

// FundingTarget describes ft to its strategy.
func FundingTarget(ft domain.FundingTransaction) Target {
	return Target{
		Owner:    domain.StrategyOwnerFunding,
		ID:       ft.FundingTransactionID,
		MemberID: ft.MemberID,
		Amount:   ft.Amount,
		Currency: ft.CurrencyCode,
		Memo:     ft.Memo.String(),
	}
}

// PayoutTarget describes pt to its strategy.
func PayoutTarget(pt domain.PayoutTransaction) Target {
	return Target{
		Owner:    domain.StrategyOwnerPayout,
		ID:       pt.PayoutTransactionID,
		MemberID: pt.MemberID,
		Amount:   pt.Amount,
		Currency: pt.CurrencyCode,
		Memo:     pt.Memo.String(),
	}
}

