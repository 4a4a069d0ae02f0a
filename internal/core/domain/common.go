package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}

// TranslatedText is user-facing copy in every supported language.
type TranslatedText struct {
	En string `json:"en"`
	Es string `json:"es"`
}

// NewTranslatedText uses the same text for every language.
func NewTranslatedText(s string) TranslatedText {
	return TranslatedText{En: s, Es: s}
}

// String returns the English text, falling back to Spanish.
func (t TranslatedText) String() string {
	if t.En != "" {
		return t.En
	}
	return t.Es
}

// IsEmpty reports whether no language has text.
func (t TranslatedText) IsEmpty() bool {
	return t.En == "" && t.Es == ""
}

// RoundMoney rounds to the minor unit of the settlement currency.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts an amount to cents.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents to an amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
