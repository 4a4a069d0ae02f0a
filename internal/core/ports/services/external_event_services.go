package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
)

// IngestEventParams is one provider notification.
type IngestEventParams struct {
	Provider        string
	ProviderEventID string
	ObjectType      string
	ObjectID        string
	EventType       string
	Status          string
	Payload         json.RawMessage
	OccurredAt      time.Time
}

// ExternalEventSvcFacade stores provider webhooks and reports.
type ExternalEventSvcFacade interface {
	// Ingest stores the event once. created is false for a redelivery.
	Ingest(ctx context.Context, p IngestEventParams) (event *domain.ExternalEvent, created bool, err error)
}
