package services

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/dto"
)

// ChargeReaderSvc defines read operations for charges.
type ChargeReaderSvc interface {
	GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error)
}

// ChargeWriterSvc defines write operations for charges.
type ChargeWriterSvc interface {
	// CreateCharge charges a member with the purchase type named by req.Kind.
	CreateCharge(ctx context.Context, req dto.CreateChargeRequest) (*domain.Charge, error)
}

// ChargeSvcFacade combines all charge operations exposed outside the core.
type ChargeSvcFacade interface {
	ChargeReaderSvc
	ChargeWriterSvc
}
