package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest is one purchase to charge a member for.
type ChargeRequest struct {
	MemberID             string
	UndiscountedSubtotal decimal.Decimal
	// Discounts reduce what the member's ledgers pay. They become self data line items.
	Discounts    []domain.ChargeLineItemSelfData
	CategorySlug string
	ApplyAt      time.Time
	Memo         domain.TranslatedText
	// QuotedCashAmount is the cash the member was shown, when the purchase had a quote.
	QuotedCashAmount decimal.NullDecimal
	// InstrumentID overrides the member's default instrument for funding the remainder.
	InstrumentID string
}

// Amount is what the ledgers must cover: the subtotal less discounts.
func (r ChargeRequest) Amount() decimal.Decimal {
	amount := r.UndiscountedSubtotal
	for _, d := range r.Discounts {
		amount = amount.Sub(d.Amount)
	}
	return amount
}

// ChargeContext is the state a ChargeHooks implementation sees during one charge.
type ChargeContext struct {
	Request    ChargeRequest
	Charge     *domain.Charge
	Account    *domain.PaymentAccount
	CashLedger *domain.Ledger
}

func (cc *ChargeContext) contributionRequest() ContributionRequest {
	return ContributionRequest{
		MemberID:     cc.Request.MemberID,
		AccountID:    cc.Account.AccountID,
		Amount:       cc.Request.Amount(),
		CategorySlug: cc.Request.CategorySlug,
		At:           cc.Request.ApplyAt,
	}
}

// ChargeHooks are the purchase type specific parts of a charge.
type ChargeHooks interface {
	Kind() string
	PredictedChargeContributions(ctx context.Context, tx portsrepo.Store, cc *ChargeContext) (*domain.Collection, error)

	// VerifyPredictedContribution fails when the prediction differs from what the member was shown.
	VerifyPredictedContribution(ctx context.Context, cc *ChargeContext, predicted *domain.Collection) error
	ActualChargeContributions(ctx context.Context, tx portsrepo.Store, cc *ChargeContext) (*domain.Collection, error)
	BookTransactionMemo(cc *ChargeContext, contribution domain.Contribution) domain.TranslatedText

	// StartFundingTransaction funds amount, the uncovered remainder of the charge.
	StartFundingTransaction(ctx context.Context, tx portsrepo.Store, cc *ChargeContext, amount decimal.Decimal) (*domain.FundingTransaction, error)
}

// Charger performs purchase charges. A charge either fully persists or leaves no trace.
type Charger struct {
	BaseService
	store   portsrepo.Store
	ledgers *LedgerService
	planner *TriggerPlanner
}

func NewCharger(store portsrepo.Store, ledgers *LedgerService, planner *TriggerPlanner) *Charger {
	return &Charger{store: store, ledgers: ledgers, planner: planner}
}

// Charge runs the whole charge in one database transaction.
func (c *Charger) Charge(ctx context.Context, req ChargeRequest, hooks ChargeHooks) (*domain.Charge, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	var out *domain.Charge
	err := c.store.InTx(ctx, func(tx portsrepo.Store) error {
		charge, err := c.charge(ctx, tx, req, hooks)
		out = charge
		return err
	})
	if err != nil {
		c.LogWarn(ctx, err, "Charge failed", slog.String("member_id", req.MemberID), slog.String("kind", hooks.Kind()))
		return nil, err
	}
	c.LogInfo(ctx, "Charge completed",
		slog.String("charge_id", out.ChargeID),
		slog.String("kind", out.Kind),
		slog.Int("line_items", len(out.LineItems)))
	return out, nil
}

func (c *Charger) validate(req ChargeRequest) error {
	if req.MemberID == "" {
		return apperrors.Validationf("member id is required")
	}
	if req.CategorySlug == "" {
		return apperrors.Validationf("category is required")
	}
	if req.UndiscountedSubtotal.IsNegative() || !req.UndiscountedSubtotal.Equal(domain.RoundMoney(req.UndiscountedSubtotal)) {
		return apperrors.Validationf("subtotal %s must be a non negative amount in cents", req.UndiscountedSubtotal)
	}
	for _, d := range req.Discounts {
		if !d.Amount.IsPositive() || !d.Amount.Equal(domain.RoundMoney(d.Amount)) {
			return apperrors.Validationf("discount %s must be a positive amount in cents", d.Amount)
		}
	}
	if req.Amount().IsNegative() {
		return apperrors.Validationf("discounts exceed the subtotal of %s", req.UndiscountedSubtotal)
	}
	return nil
}

func (c *Charger) charge(ctx context.Context, tx portsrepo.Store, req ChargeRequest, hooks ChargeHooks) (*domain.Charge, error) {
	account, err := c.ledgers.EnsurePaymentAccount(ctx, tx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if account, err = tx.PaymentAccounts().LockPaymentAccount(ctx, account.AccountID); err != nil {
		return nil, err
	}
	if account.ReadOnly {
		return nil, apperrors.Validationf("payment account %s is read only", account.AccountID)
	}
	if req.ApplyAt.IsZero() {
		req.ApplyAt = c.now()
	}
	cash, err := c.ledgers.EnsureCashLedger(ctx, tx, account.AccountID)
	if err != nil {
		return nil, err
	}

	charge := &domain.Charge{
		ChargeID:             uuid.NewString(),
		Kind:                 hooks.Kind(),
		MemberID:             req.MemberID,
		AccountID:            account.AccountID,
		UndiscountedSubtotal: req.UndiscountedSubtotal,
		CurrencyCode:         c.ledgers.Currency(),
		CategorySlug:         req.CategorySlug,
		ApplyAt:              req.ApplyAt,
		CreatedAt:            c.now(),
		CreatedBy:            auditcontext.ActorFromContext(ctx).ID,
	}
	if err := tx.Charges().InsertCharge(ctx, *charge); err != nil {
		return nil, fmt.Errorf("failed to insert charge: %w", err)
	}
	cc := &ChargeContext{Request: req, Charge: charge, Account: account, CashLedger: cash}

	predicted, err := hooks.PredictedChargeContributions(ctx, tx, cc)
	if err != nil {
		return nil, err
	}
	if err := hooks.VerifyPredictedContribution(ctx, cc, predicted); err != nil {
		return nil, err
	}

	if _, err := c.planner.Execute(ctx, tx, relevantSteps(predicted), "charge:"+charge.ChargeID); err != nil {
		return nil, err
	}

	ledgers, err := tx.Ledgers().ListLedgersByAccount(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ledgers))
	for _, l := range ledgers {
		ids = append(ids, l.LedgerID)
	}
	if err := tx.Ledgers().LockLedgers(ctx, ids); err != nil {
		return nil, err
	}
	actual, err := hooks.ActualChargeContributions(ctx, tx, cc)
	if err != nil {
		return nil, err
	}
	remainder := actual.Remainder
	if err := actual.FoldRemainderIntoCash(); err != nil {
		c.LogError(ctx, err, "Charge remainder cannot be folded", slog.String("charge_id", charge.ChargeID))
		return nil, err
	}

	platformCash, err := c.ledgers.EnsurePlatformCashLedger(ctx, tx)
	if err != nil {
		return nil, err
	}
	position := 0
	for _, contribution := range actual.NonZero() {
		bt, err := c.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
			OriginatingLedgerID: contribution.Ledger.LedgerID,
			ReceivingLedgerID:   platformCash.LedgerID,
			Amount:              contribution.Amount,
			ApplyAt:             req.ApplyAt,
			Memo:                hooks.BookTransactionMemo(cc, contribution),
			CategorySlug:        contribution.CategorySlug,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to debit ledger %s: %w", contribution.Ledger.Name, err)
		}
		if err := c.addLineItem(ctx, tx, domain.ChargeLineItem{ChargeID: charge.ChargeID, BookTransactionID: &bt.BookTransactionID, Position: position}); err != nil {
			return nil, err
		}
		position++
	}
	for _, discount := range req.Discounts {
		if err := c.addLineItem(ctx, tx, domain.ChargeLineItem{ChargeID: charge.ChargeID, SelfData: &discount, Position: position}); err != nil {
			return nil, err
		}
		position++
	}

	if remainder.IsPositive() {
		ft, err := hooks.StartFundingTransaction(ctx, tx, cc, remainder)
		if err != nil {
			return nil, err
		}
		if ft == nil {
			err := fmt.Errorf("%w: charge %s left %s uncovered", apperrors.ErrUnfundedRemainder, charge.ChargeID, remainder)
			c.LogError(ctx, err, "Charge remainder not funded")
			return nil, err
		}
		if err := tx.Charges().AttachFundingTransaction(ctx, charge.ChargeID, ft.FundingTransactionID); err != nil {
			return nil, fmt.Errorf("failed to link funding transaction: %w", err)
		}
	}

	return tx.Charges().FindChargeByID(ctx, charge.ChargeID)
}

func (c *Charger) addLineItem(ctx context.Context, tx portsrepo.Store, item domain.ChargeLineItem) error {
	item.LineItemID = uuid.NewString()
	if err := item.Validate(); err != nil {
		return err
	}
	if err := tx.Charges().InsertChargeLineItem(ctx, item); err != nil {
		return fmt.Errorf("failed to insert charge line item: %w", err)
	}
	return nil
}

// relevantSteps keeps the planned steps whose ledger the prediction actually draws from.
func relevantSteps(predicted *domain.Collection) []domain.TriggerStep {
	used := map[string]bool{}
	for _, contribution := range predicted.NonZero() {
		used[contribution.Ledger.Key()] = true
	}
	var steps []domain.TriggerStep
	for _, step := range predicted.Steps {
		if used[step.ReceivingLedger.Key()] {
			steps = append(steps, step)
		}
	}
	return steps
}
