package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trigger credits a member ledger with subsidy money from a platform ledger when it fires.
type Trigger struct {
	TriggerID   string    `json:"triggerID"`
	Label       string    `json:"label"`
	ActiveFrom  time.Time `json:"activeFrom"`
	ActiveUntil time.Time `json:"activeUntil"`
	// MatchMultiplier is the subsidy paid per unit of member money: 1 matches dollar for dollar.
	MatchMultiplier decimal.Decimal `json:"matchMultiplier"`
	// MaximumCumulativeSubsidy caps what one ledger may ever receive from this trigger. Null means no cap.
	MaximumCumulativeSubsidy        decimal.NullDecimal `json:"maximumCumulativeSubsidy"`
	Memo                            TranslatedText      `json:"memo"`
	OriginatingLedgerID             string              `json:"originatingLedgerID"`
	ReceivingLedgerName             string              `json:"receivingLedgerName"`
	ReceivingLedgerContributionText TranslatedText      `json:"receivingLedgerContributionText"`
	ReceivingCategorySlug           string              `json:"receivingCategorySlug"`
	Priority                        int                 `json:"priority"`
}

// ActiveAt reports whether at falls in [ActiveFrom, ActiveUntil).
func (t Trigger) ActiveAt(at time.Time) bool {
	if at.Before(t.ActiveFrom) {
		return false
	}
	return t.ActiveUntil.IsZero() || at.Before(t.ActiveUntil)
}

// SubsidyFor returns the subsidy share of need: need * m / (1 + m), so that the member pays
// need / (1 + m) and the subsidy matches it m times.
func (t Trigger) SubsidyFor(need decimal.Decimal) decimal.Decimal {
	if !need.IsPositive() || !t.MatchMultiplier.IsPositive() {
		return decimal.Zero
	}
	ratio := t.MatchMultiplier.Div(decimal.NewFromInt(1).Add(t.MatchMultiplier))
	return RoundMoney(need.Mul(ratio))
}

// EligibilityResourceKey identifies the trigger to the eligibility collaborator.
func (t Trigger) EligibilityResourceKey() string {
	return "trigger:" + t.TriggerID
}

// TriggerExecution records one firing of a trigger into one ledger for one logical event.
type TriggerExecution struct {
	ExecutionID       string    `json:"executionID"`
	TriggerID         string    `json:"triggerID"`
	ReceivingLedgerID string    `json:"receivingLedgerID"`
	BookTransactionID string    `json:"bookTransactionID"`
	EventKey          string    `json:"eventKey"`
	CreatedAt         time.Time `json:"createdAt"`
}

// TriggerStep is a planned credit of Amount into ReceivingLedger. The ledger may not exist yet,
// in which case it is created by name when the step executes.
type TriggerStep struct {
	Trigger         Trigger         `json:"trigger"`
	ReceivingLedger Ledger          `json:"receivingLedger"`
	Amount          decimal.Decimal `json:"amount"`
	ApplyAt         time.Time       `json:"applyAt"`
}
