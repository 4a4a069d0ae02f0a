package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TriggerPlanner plans and executes subsidy triggers. Executing a plan only ever credits member ledgers.
type TriggerPlanner struct {
	BaseService
	ledgers *LedgerService
	oracle  eligibility.Oracle
}

func NewTriggerPlanner(ledgers *LedgerService, oracle eligibility.Oracle) *TriggerPlanner {
	return &TriggerPlanner{ledgers: ledgers, oracle: oracle}
}

// GatherParams is the state a plan is computed against. Ledgers are the ones usable for the purchase;
// Existing is every ledger of the account, usable or not.
type GatherParams struct {
	MemberID     string
	AccountID    string
	Ledgers      []domain.Ledger
	Existing     []domain.Ledger
	Balances     map[string]decimal.Decimal
	Tree         domain.CategoryTree
	CategorySlug string
	Amount       decimal.Decimal
	At           time.Time
}

// Gather plans the trigger steps a purchase of p.Amount would fire. Triggers are evaluated in
// (priority, id) order; each step covers need * m / (1 + m) of what existing balances leave uncovered,
// capped by the trigger's remaining cumulative subsidy for the receiving ledger.
func (p *TriggerPlanner) Gather(ctx context.Context, tx portsrepo.Store, gp GatherParams) ([]domain.TriggerStep, error) {
	need := gp.Amount
	for _, l := range gp.Ledgers {
		if bal := gp.Balances[l.Key()]; bal.IsPositive() {
			need = need.Sub(bal)
		}
	}
	if !need.IsPositive() {
		return nil, nil
	}

	triggers, err := tx.Triggers().ListActiveTriggers(ctx, gp.At)
	if err != nil {
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}
	triggers, err = eligibility.Filter(ctx, p.oracle, gp.MemberID, gp.At, triggers)
	if err != nil {
		return nil, err
	}

	var steps []domain.TriggerStep
	for _, trig := range triggers {
		if !need.IsPositive() {
			break
		}
		receiving, usable := p.receivingLedger(gp, trig)
		if !usable || !receiving.CanPurchase(gp.Tree, gp.CategorySlug) {
			continue
		}
		ok, err := p.oracle.EligibleTo(ctx, gp.MemberID, receiving, gp.At)
		if err != nil {
			return nil, fmt.Errorf("eligibility of ledger %s: %w", receiving.Name, err)
		}
		if !ok {
			continue
		}

		amount := trig.SubsidyFor(need)
		if amount, err = p.capped(ctx, tx, trig, receiving, amount); err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			continue
		}
		steps = append(steps, domain.TriggerStep{Trigger: trig, ReceivingLedger: receiving, Amount: amount, ApplyAt: gp.At})
		need = need.Sub(amount)
	}
	return steps, nil
}

// receivingLedger returns the account's ledger the trigger credits, or an unpersisted one when the
// account has no ledger of that name yet. usable is false when the ledger exists but was left out of
// gp.Ledgers, since crediting it could not pay for this purchase.
func (p *TriggerPlanner) receivingLedger(gp GatherParams, trig domain.Trigger) (ledger domain.Ledger, usable bool) {
	for _, l := range gp.Ledgers {
		if l.Name == trig.ReceivingLedgerName {
			return l, true
		}
	}
	for _, l := range gp.Existing {
		if l.Name == trig.ReceivingLedgerName {
			return l, false
		}
	}
	return domain.Ledger{
		AccountID:        gp.AccountID,
		Name:             trig.ReceivingLedgerName,
		CurrencyCode:     p.ledgers.Currency(),
		CategorySlugs:    []string{trig.ReceivingCategorySlug},
		ContributionText: trig.ReceivingLedgerContributionText,
	}, true
}

func (p *TriggerPlanner) capped(ctx context.Context, tx portsrepo.Store, trig domain.Trigger, receiving domain.Ledger, amount decimal.Decimal) (decimal.Decimal, error) {
	if !trig.MaximumCumulativeSubsidy.Valid {
		return amount, nil
	}
	applied := decimal.Zero
	if receiving.Persisted() {
		var err error
		applied, err = tx.Triggers().SumSubsidyApplied(ctx, trig.TriggerID, receiving.LedgerID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum subsidy of trigger %s: %w", trig.TriggerID, err)
		}
	}
	left := trig.MaximumCumulativeSubsidy.Decimal.Sub(applied)
	if left.LessThan(amount) {
		return decimal.Max(left, decimal.Zero), nil
	}
	return amount, nil
}

// Execute runs steps in order for one logical event. A step whose trigger already fired into the
// ledger for eventKey is skipped, so re-running a plan never double applies.
func (p *TriggerPlanner) Execute(ctx context.Context, tx portsrepo.Store, steps []domain.TriggerStep, eventKey string) ([]domain.TriggerExecution, error) {
	if len(steps) == 0 {
		return nil, nil
	}
	platform, err := p.ledgers.EnsurePlatformAccount(ctx, tx)
	if err != nil {
		return nil, err
	}

	var executions []domain.TriggerExecution
	for _, step := range steps {
		trig := step.Trigger
		target := step.ReceivingLedger
		receiving, err := p.ledgers.EnsureLedger(ctx, tx, target.AccountID, target.Name, target.CategorySlugs, target.ContributionText)
		if err != nil {
			return nil, err
		}

		_, err = tx.Triggers().FindTriggerExecution(ctx, trig.TriggerID, receiving.LedgerID, eventKey)
		if err == nil {
			p.LogDebug(ctx, "Trigger already executed", slog.String("trigger_id", trig.TriggerID), slog.String("event_key", eventKey))
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up trigger execution: %w", err)
		}

		amount, err := p.capped(ctx, tx, trig, *receiving, step.Amount)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			continue
		}

		origin, err := tx.Ledgers().FindLedgerByID(ctx, trig.OriginatingLedgerID)
		if err != nil {
			return nil, fmt.Errorf("originating ledger of trigger %s: %w", trig.TriggerID, err)
		}
		if origin.AccountID != platform.AccountID {
			err := apperrors.Invariantf("trigger %s originates from non platform ledger %s", trig.TriggerID, origin.LedgerID)
			p.LogError(ctx, err, "Trigger misconfigured")
			return nil, err
		}
		if err := tx.Ledgers().LockLedgers(ctx, []string{receiving.LedgerID}); err != nil {
			return nil, err
		}

		bt, err := p.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
			OriginatingLedgerID: origin.LedgerID,
			ReceivingLedgerID:   receiving.LedgerID,
			Amount:              amount,
			ApplyAt:             step.ApplyAt,
			Memo:                trig.Memo,
			CategorySlug:        trig.ReceivingCategorySlug,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to credit ledger for trigger %s: %w", trig.TriggerID, err)
		}
		exec := domain.TriggerExecution{
			ExecutionID:       uuid.NewString(),
			TriggerID:         trig.TriggerID,
			ReceivingLedgerID: receiving.LedgerID,
			BookTransactionID: bt.BookTransactionID,
			EventKey:          eventKey,
			CreatedAt:         p.now(),
		}
		if err := tx.Triggers().InsertTriggerExecution(ctx, exec); err != nil {
			return nil, fmt.Errorf("failed to record trigger execution: %w", err)
		}
		p.LogInfo(ctx, "Trigger executed",
			slog.String("trigger_id", trig.TriggerID),
			slog.String("ledger_id", receiving.LedgerID),
			slog.String("amount", amount.String()))
		executions = append(executions, exec)
	}
	return executions, nil
}
