package domain

import (
	"encoding/json"
	"time"
)

// ExternalEvent is a webhook or report row received from a payment provider.
type ExternalEvent struct {
	EventID         string          `json:"eventID"`
	Provider        string          `json:"provider"`
	ProviderEventID string          `json:"providerEventID"`
	ObjectType      string          `json:"objectType"`
	ObjectID        string          `json:"objectID"`
	EventType       string          `json:"eventType"`
	Status          string          `json:"status"`
	Payload         json.RawMessage `json:"payload"`
	OccurredAt      time.Time       `json:"occurredAt"`
	ReceivedAt      time.Time       `json:"receivedAt"`
}
