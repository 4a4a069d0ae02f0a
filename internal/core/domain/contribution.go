package domain

import (
	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/shopspring/decimal"
)

// Contribution is the part of a charge paid from one ledger.
type Contribution struct {
	Ledger       Ledger          `json:"ledger"`
	Amount       decimal.Decimal `json:"amount"`
	CategorySlug string          `json:"categorySlug"`
}

// IsCash reports whether the contribution comes from the cash ledger.
func (c Contribution) IsCash() bool {
	return c.Ledger.IsCashLedger()
}

// Collection is the split of a charge amount across ledgers. Contributions are in debit order:
// subsidized ledgers first, cash last. Remainder is what no ledger covers.
type Collection struct {
	Amount        decimal.Decimal `json:"amount"`
	Contributions []Contribution  `json:"contributions"`
	Remainder     decimal.Decimal `json:"remainder"`
	Steps         []TriggerStep   `json:"steps"`
}

// HasRemainder reports whether part of the amount must be funded externally.
func (c *Collection) HasRemainder() bool {
	return c.Remainder.IsPositive()
}

// Cash returns the cash contribution, or nil when the collection has none.
func (c *Collection) Cash() *Contribution {
	for i := range c.Contributions {
		if c.Contributions[i].IsCash() {
			return &c.Contributions[i]
		}
	}
	return nil
}

// CashAmount is what the member pays in cash: the cash contribution plus any remainder.
func (c *Collection) CashAmount() decimal.Decimal {
	total := c.Remainder
	if cash := c.Cash(); cash != nil {
		total = total.Add(cash.Amount)
	}
	return total
}

// FoldRemainderIntoCash moves the remainder onto the cash contribution.
func (c *Collection) FoldRemainderIntoCash() error {
	if !c.HasRemainder() {
		return nil
	}
	cash := c.Cash()
	if cash == nil {
		return apperrors.Invariantf("remainder %s has no cash contribution to fold into", c.Remainder)
	}
	cash.Amount = cash.Amount.Add(c.Remainder)
	c.Remainder = decimal.Zero
	return nil
}

// NonZero returns the contributions with a positive amount, in order.
func (c *Collection) NonZero() []Contribution {
	out := make([]Contribution, 0, len(c.Contributions))
	for _, contrib := range c.Contributions {
		if contrib.Amount.IsPositive() {
			out = append(out, contrib)
		}
	}
	return out
}

// LedgerKeys returns the keys of every ledger referenced by the collection.
func (c *Collection) LedgerKeys() []string {
	keys := make([]string, 0, len(c.Contributions))
	for _, contrib := range c.Contributions {
		keys = append(keys, contrib.Ledger.Key())
	}
	return keys
}

// Total sums every contribution plus the remainder.
func (c *Collection) Total() decimal.Decimal {
	total := c.Remainder
	for _, contrib := range c.Contributions {
		total = total.Add(contrib.Amount)
	}
	return total
}
