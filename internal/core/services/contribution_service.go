package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/shopspring/decimal"
)

// ContributionRequest asks how Amount of a purchase in CategorySlug splits across an account's ledgers.
type ContributionRequest struct {
	MemberID     string
	AccountID    string
	Amount       decimal.Decimal
	CategorySlug string
	At           time.Time
}

// ContributionCalculator splits purchase amounts across ledgers, either predictively (assuming every
// trigger fires) or against actual balances.
type ContributionCalculator struct {
	BaseService
	ledgers *LedgerService
	planner *TriggerPlanner
	oracle  eligibility.Oracle
}

func NewContributionCalculator(ledgers *LedgerService, planner *TriggerPlanner, oracle eligibility.Oracle) *ContributionCalculator {
	return &ContributionCalculator{ledgers: ledgers, planner: planner, oracle: oracle}
}

// FindIdealCashContribution predicts the split before any ledger mutation. The returned collection
// carries the trigger steps the prediction relies on.
func (c *ContributionCalculator) FindIdealCashContribution(ctx context.Context, tx portsrepo.Store, req ContributionRequest) (*domain.Collection, error) {
	view, err := c.usableLedgers(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	steps, err := c.planner.Gather(ctx, tx, GatherParams{
		MemberID:     req.MemberID,
		AccountID:    req.AccountID,
		Ledgers:      view.usable,
		Existing:     view.all,
		Balances:     view.balances,
		Tree:         view.tree,
		CategorySlug: req.CategorySlug,
		Amount:       req.Amount,
		At:           req.At,
	})
	if err != nil {
		return nil, err
	}
	usable := view.usable
	for _, step := range steps {
		key := step.ReceivingLedger.Key()
		if _, known := view.balances[key]; !known {
			usable = append(usable, step.ReceivingLedger)
		}
		view.balances[key] = view.balances[key].Add(step.Amount)
	}

	collection, err := split(usable, view.balances, view.tree, req)
	if err != nil {
		return nil, err
	}
	collection.Steps = steps
	return collection, nil
}

// FindActualContributions splits against current balances.
func (c *ContributionCalculator) FindActualContributions(ctx context.Context, tx portsrepo.Store, req ContributionRequest) (*domain.Collection, error) {
	view, err := c.usableLedgers(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	return split(view.usable, view.balances, view.tree, req)
}

// accountLedgers is an account's ledgers as seen by one purchase.
type accountLedgers struct {
	all      []domain.Ledger
	usable   []domain.Ledger
	balances map[string]decimal.Decimal
	tree     domain.CategoryTree
}

// usableLedgers loads the account's ledgers and picks those that may pay for the category and that
// the member is eligible to use, with their balances keyed by Ledger.Key. The cash ledger is always
// usable.
func (c *ContributionCalculator) usableLedgers(ctx context.Context, tx portsrepo.Store, req ContributionRequest) (*accountLedgers, error) {
	if req.Amount.IsNegative() {
		return nil, apperrors.Validationf("charge amount %s is negative", req.Amount)
	}
	categories, err := tx.Categories().ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	view := &accountLedgers{tree: domain.NewCategoryTree(categories)}

	if view.all, err = tx.Ledgers().ListLedgersByAccount(ctx, req.AccountID); err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	var candidates []domain.Ledger
	for _, l := range view.all {
		switch {
		case l.IsCashLedger():
			view.usable = append(view.usable, l)
		case l.CanPurchase(view.tree, req.CategorySlug):
			candidates = append(candidates, l)
		}
	}
	eligible, err := eligibility.Filter(ctx, c.oracle, req.MemberID, req.At, candidates)
	if err != nil {
		return nil, err
	}
	view.usable = append(view.usable, eligible...)

	if view.balances, err = c.ledgers.LedgerBalances(ctx, tx, view.usable); err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	return view, nil
}

// split walks ledgers in debit order, exhausting each positive balance before the next. Order is
// non cash before cash, then the more specific category first, then name, then key.
func split(ledgers []domain.Ledger, balances map[string]decimal.Decimal, tree domain.CategoryTree, req ContributionRequest) (*domain.Collection, error) {
	type ranked struct {
		ledger domain.Ledger
		depth  int
	}
	order := make([]ranked, 0, len(ledgers))
	hasCash := false
	for _, l := range ledgers {
		depth, _ := l.PurchaseDepth(tree, req.CategorySlug)
		if l.IsCashLedger() {
			hasCash = true
		}
		order = append(order, ranked{ledger: l, depth: depth})
	}
	if !hasCash {
		return nil, apperrors.Invariantf("account %s has no cash ledger", req.AccountID)
	}
	slices.SortStableFunc(order, func(a, b ranked) int {
		if a.ledger.IsCashLedger() != b.ledger.IsCashLedger() {
			if a.ledger.IsCashLedger() {
				return 1
			}
			return -1
		}
		if a.depth != b.depth {
			return cmp.Compare(b.depth, a.depth)
		}
		if c := strings.Compare(a.ledger.Name, b.ledger.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ledger.Key(), b.ledger.Key())
	})

	collection := &domain.Collection{Amount: req.Amount, Remainder: decimal.Zero}
	remaining := req.Amount
	for _, r := range order {
		available := decimal.Max(balances[r.ledger.Key()], decimal.Zero)
		take := decimal.Min(available, remaining)
		collection.Contributions = append(collection.Contributions, domain.Contribution{
			Ledger:       r.ledger,
			Amount:       take,
			CategorySlug: req.CategorySlug,
		})
		remaining = remaining.Sub(take)
	}
	collection.Remainder = remaining
	return collection, nil
}
