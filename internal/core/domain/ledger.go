package domain

import (
	"slices"
	"time"
)

// CashCategorySlug is the root vendor service category. The ledger carrying it is the member's cash ledger.
const CashCategorySlug = "cash"

// VendorServiceCategory is one node of the category tree that restricts what a ledger may pay for.
type VendorServiceCategory struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	ParentSlug string `json:"parentSlug"`
}

// CategoryTree maps a category slug to its parent slug. Root categories map to "".
type CategoryTree map[string]string

// NewCategoryTree indexes categories by slug.
func NewCategoryTree(categories []VendorServiceCategory) CategoryTree {
	tree := make(CategoryTree, len(categories))
	for _, c := range categories {
		tree[c.Slug] = c.ParentSlug
	}
	return tree
}

// Chain returns slug followed by its ancestors, nearest first.
func (t CategoryTree) Chain(slug string) []string {
	chain := []string{}
	seen := map[string]bool{}
	for slug != "" && !seen[slug] {
		chain = append(chain, slug)
		seen[slug] = true
		slug = t[slug]
	}
	return chain
}

// PaymentAccount owns the ledgers of one member, or of the platform itself.
// It is never deleted; ReadOnly soft-flags it.
type PaymentAccount struct {
	AccountID         string    `json:"accountID"`
	MemberID          string    `json:"memberID"`
	IsPlatformAccount bool      `json:"isPlatformAccount"`
	ReadOnly          bool      `json:"readOnly"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Ledger is a named, currency scoped sub-account. Its balance is derived from book transactions
// and is never stored on the ledger itself.
type Ledger struct {
	LedgerID         string         `json:"ledgerID"`
	AccountID        string         `json:"accountID"`
	Name             string         `json:"name"`
	CurrencyCode     string         `json:"currencyCode"`
	CategorySlugs    []string       `json:"categorySlugs"`
	ContributionText TranslatedText `json:"contributionText"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// IsCashLedger reports whether the ledger carries the root cash category.
func (l Ledger) IsCashLedger() bool {
	return slices.Contains(l.CategorySlugs, CashCategorySlug)
}

// Persisted reports whether the ledger has a row yet. Ledgers planned by a trigger do not until it fires.
func (l Ledger) Persisted() bool {
	return l.LedgerID != ""
}

// Key identifies a ledger inside one payment account, persisted or not.
func (l Ledger) Key() string {
	if l.LedgerID != "" {
		return l.LedgerID
	}
	return "name:" + l.Name
}

// PurchaseDepth returns how specifically the ledger matches itemCategory: the depth of the deepest
// ledger category found in the item's ancestry. ok is false when the ledger may not pay for the item.
func (l Ledger) PurchaseDepth(tree CategoryTree, itemCategory string) (depth int, ok bool) {
	chain := tree.Chain(itemCategory)
	best := -1
	for i, slug := range chain {
		if slices.Contains(l.CategorySlugs, slug) {
			d := len(chain) - 1 - i
			if d > best {
				best = d
			}
		}
	}
	return best, best >= 0
}

// CanPurchase reports whether the ledger may pay for an item in itemCategory.
func (l Ledger) CanPurchase(tree CategoryTree, itemCategory string) bool {
	_, ok := l.PurchaseDepth(tree, itemCategory)
	return ok
}

// EligibilityResourceKey identifies the ledger to the eligibility collaborator. It uses the name so
// that a ledger a trigger has not created yet is gated the same way as the persisted one.
func (l Ledger) EligibilityResourceKey() string {
	return "ledger:" + l.Name
}
