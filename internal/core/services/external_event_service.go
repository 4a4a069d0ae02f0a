package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/google/uuid"
)

// ExternalEventService stores provider notifications. Strategies read them when polling.
type ExternalEventService struct {
	BaseService
	store portsrepo.Store
}

func NewExternalEventService(store portsrepo.Store) *ExternalEventService {
	return &ExternalEventService{store: store}
}

func (s *ExternalEventService) Ingest(ctx context.Context, p portssvc.IngestEventParams) (*domain.ExternalEvent, bool, error) {
	if p.Provider == "" || p.ProviderEventID == "" || p.ObjectID == "" {
		return nil, false, apperrors.Validationf("provider, event id and object id are required")
	}
	occurred := p.OccurredAt.UTC()
	if occurred.IsZero() {
		occurred = s.now()
	}
	event := domain.ExternalEvent{
		EventID:         uuid.NewString(),
		Provider:        p.Provider,
		ProviderEventID: p.ProviderEventID,
		ObjectType:      p.ObjectType,
		ObjectID:        p.ObjectID,
		EventType:       p.EventType,
		Status:          p.Status,
		Payload:         p.Payload,
		OccurredAt:      occurred,
		ReceivedAt:      s.now(),
	}
	if len(event.Payload) == 0 {
		event.Payload = json.RawMessage(`{}`)
	}
	created, err := s.store.ExternalEvents().InsertExternalEvent(ctx, event)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store external event: %w", err)
	}
	if !created {
		s.LogDebug(ctx, "External event redelivered", slog.String("provider", p.Provider), slog.String("provider_event_id", p.ProviderEventID))
	} else {
		s.LogInfo(ctx, "External event stored",
			slog.String("provider", p.Provider),
			slog.String("object_type", p.ObjectType),
			slog.String("object_id", p.ObjectID),
			slog.String("status", p.Status))
	}
	return &event, created, nil
}
