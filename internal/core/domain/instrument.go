package domain

import "time"

// InstrumentKind is the type of external payment instrument.
type InstrumentKind string

const (
	InstrumentCard        InstrumentKind = "card"
	InstrumentBankAccount InstrumentKind = "bank_account"
)

// Instrument is a member's card or bank account registered with the provider.
type Instrument struct {
	InstrumentID string         `json:"instrumentID"`
	MemberID     string         `json:"memberID"`
	Kind         InstrumentKind `json:"kind"`
	ExternalID   string         `json:"externalID"`
	Verified     bool           `json:"verified"`
	Deleted      bool           `json:"deleted"`
	IsDefault    bool           `json:"isDefault"`
	ExpiresAt    *time.Time     `json:"expiresAt"`
}

// Expired reports whether the instrument expired before at.
func (i Instrument) Expired(at time.Time) bool {
	return i.ExpiresAt != nil && !at.Before(*i.ExpiresAt)
}

// BlockingReasons lists human readable reasons the instrument cannot move money at at.
func (i Instrument) BlockingReasons(at time.Time) []string {
	var reasons []string
	if i.Deleted {
		reasons = append(reasons, "instrument has been removed")
	}
	if !i.Verified {
		reasons = append(reasons, "instrument not verified")
	}
	if i.Expired(at) {
		reasons = append(reasons, "instrument has expired")
	}
	if i.ExternalID == "" {
		reasons = append(reasons, "instrument is not registered with the payment provider")
	}
	return reasons
}
