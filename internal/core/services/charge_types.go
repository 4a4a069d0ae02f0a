package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/shopspring/decimal"
)

// Charge kinds.
const (
	ChargeKindCheckout    = "checkout"
	ChargeKindTrip        = "trip"
	ChargeKindOffPlatform = "off_platform"
)

// chargeHooks holds the parts every purchase type shares.
type chargeHooks struct {
	calculator *ContributionCalculator
	funding    *FundingService
}

func (h chargeHooks) PredictedChargeContributions(ctx context.Context, tx portsrepo.Store, cc *ChargeContext) (*domain.Collection, error) {
	return h.calculator.FindIdealCashContribution(ctx, tx, cc.contributionRequest())
}

func (h chargeHooks) VerifyPredictedContribution(context.Context, *ChargeContext, *domain.Collection) error {
	return nil
}

func (h chargeHooks) ActualChargeContributions(ctx context.Context, tx portsrepo.Store, cc *ChargeContext) (*domain.Collection, error) {
	return h.calculator.FindActualContributions(ctx, tx, cc.contributionRequest())
}

func (h chargeHooks) BookTransactionMemo(cc *ChargeContext, contribution domain.Contribution) domain.TranslatedText {
	if !cc.Request.Memo.IsEmpty() {
		return cc.Request.Memo
	}
	if !contribution.Ledger.ContributionText.IsEmpty() {
		return contribution.Ledger.ContributionText
	}
	return domain.NewTranslatedText(contribution.Ledger.Name)
}

// fundWithInstrument funds amount from the request's instrument, or the member's default instrument of
// the first kind in kinds that has one.
func (h chargeHooks) fundWithInstrument(ctx context.Context, tx portsrepo.Store, cc *ChargeContext, amount decimal.Decimal, kinds ...domain.InstrumentKind) (*domain.FundingTransaction, error) {
	var inst *domain.Instrument
	var err error
	if cc.Request.InstrumentID != "" {
		inst, err = tx.Instruments().FindInstrumentByID(ctx, cc.Request.InstrumentID)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", cc.Request.InstrumentID, err)
		}
	}
	for _, kind := range kinds {
		if inst != nil {
			break
		}
		inst, err = tx.Instruments().FindDefaultInstrument(ctx, cc.Request.MemberID, kind)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	if inst == nil {
		return nil, apperrors.Validationf("member %s has no payment instrument to cover %s", cc.Request.MemberID, amount)
	}

	kind := domain.StrategyCard
	if inst.Kind == domain.InstrumentBankAccount {
		kind = domain.StrategyACH
	}
	return h.funding.StartFunding(ctx, tx, StartFundingParams{
		MemberID: cc.Request.MemberID,
		Amount:   amount,
		Kind:     kind,
		Strategy: strategies.StartParams{InstrumentID: inst.InstrumentID},
		Memo:     domain.TranslatedText{En: "Payment for charge " + cc.Charge.ChargeID, Es: "Pago del cargo " + cc.Charge.ChargeID},
		ApplyAt:  cc.Charge.ApplyAt,
	})
}

// CheckoutCharge charges a commerce order. The cash the member pays must equal the quoted cash.
type CheckoutCharge struct {
	chargeHooks
}

func NewCheckoutCharge(calculator *ContributionCalculator, funding *FundingService) *CheckoutCharge {
	return &CheckoutCharge{chargeHooks{calculator: calculator, funding: funding}}
}

func (CheckoutCharge) Kind() string { return ChargeKindCheckout }

func (CheckoutCharge) VerifyPredictedContribution(_ context.Context, cc *ChargeContext, predicted *domain.Collection) error {
	quoted := cc.Request.QuotedCashAmount
	if !quoted.Valid {
		return apperrors.Validationf("checkout requires a quoted cash amount")
	}
	if cash := predicted.CashAmount(); !cash.Equal(quoted.Decimal) {
		return fmt.Errorf("%w: predicted cash %s, quoted %s", apperrors.ErrPredictionMismatch, cash, quoted.Decimal)
	}
	return nil
}

func (h CheckoutCharge) StartFundingTransaction(ctx context.Context, tx portsrepo.Store, cc *ChargeContext, amount decimal.Decimal) (*domain.FundingTransaction, error) {
	return h.fundWithInstrument(ctx, tx, cc, amount, domain.InstrumentCard)
}

// TripCharge charges a mobility trip, priced after the fact so there is no quote to verify.
type TripCharge struct {
	chargeHooks
}

func NewTripCharge(calculator *ContributionCalculator, funding *FundingService) *TripCharge {
	return &TripCharge{chargeHooks{calculator: calculator, funding: funding}}
}

func (TripCharge) Kind() string { return ChargeKindTrip }

func (h TripCharge) StartFundingTransaction(ctx context.Context, tx portsrepo.Store, cc *ChargeContext, amount decimal.Decimal) (*domain.FundingTransaction, error) {
	return h.fundWithInstrument(ctx, tx, cc, amount, domain.InstrumentCard, domain.InstrumentBankAccount)
}

// OffPlatformCharge records a purchase paid outside the processor. Its remainder is funded off
// platform and reconciled by an operator.
type OffPlatformCharge struct {
	chargeHooks
}

func NewOffPlatformCharge(calculator *ContributionCalculator, funding *FundingService) *OffPlatformCharge {
	return &OffPlatformCharge{chargeHooks{calculator: calculator, funding: funding}}
}

func (OffPlatformCharge) Kind() string { return ChargeKindOffPlatform }

func (h OffPlatformCharge) StartFundingTransaction(ctx context.Context, tx portsrepo.Store, cc *ChargeContext, amount decimal.Decimal) (*domain.FundingTransaction, error) {
	return h.funding.StartFunding(ctx, tx, StartFundingParams{
		MemberID: cc.Request.MemberID,
		Amount:   amount,
		Kind:     domain.StrategyOffPlatform,
		Strategy: strategies.StartParams{Reference: cc.Charge.ChargeID},
		Memo:     domain.TranslatedText{En: "Off platform payment for charge " + cc.Charge.ChargeID, Es: "Pago externo del cargo " + cc.Charge.ChargeID},
		ApplyAt:  cc.Charge.ApplyAt,
	})
}

var (
	_ ChargeHooks = (*CheckoutCharge)(nil)
	_ ChargeHooks = (*TripCharge)(nil)
	_ ChargeHooks = (*OffPlatformCharge)(nil)
)
