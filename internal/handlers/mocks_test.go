package handlers_test

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) LedgerBalance(ctx context.Context, ledgerID string) (*domain.Ledger, decimal.Decimal, error) {
	args := m.Called(ctx, ledgerID)
	if args.Get(0) == nil {
		return nil, decimal.Zero, args.Error(2)
	}
	return args.Get(0).(*domain.Ledger), args.Get(1).(decimal.Decimal), args.Error(2)
}
func (m *MockLedgerService) ListBookTransactions(ctx context.Context, ledgerID string) ([]domain.BookTransaction, error) {
	args := m.Called(ctx, ledgerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookTransaction), args.Error(1)
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock ChargeService ---
type MockChargeService struct {
	mock.Mock
}

func (m *MockChargeService) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}
func (m *MockChargeService) CreateCharge(ctx context.Context, req dto.CreateChargeRequest) (*domain.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

var _ portssvc.ChargeSvcFacade = (*MockChargeService)(nil)

// --- Mock FundingService ---
type MockFundingService struct {
	mock.Mock
}

func (m *MockFundingService) Process(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockFundingService) Cancel(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
func (m *MockFundingService) Resume(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
func (m *MockFundingService) GetFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FundingTransaction), args.Error(1)
}
func (m *MockFundingService) ListProcessable(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ portssvc.FundingSvcFacade = (*MockFundingService)(nil)

// --- Mock PayoutService ---
type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) Process(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockPayoutService) Cancel(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
func (m *MockPayoutService) Resume(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}
func (m *MockPayoutService) GetPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayoutTransaction), args.Error(1)
}
func (m *MockPayoutService) CreatePayout(ctx context.Context, req dto.CreatePayoutRequest) (*domain.PayoutTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayoutTransaction), args.Error(1)
}
func (m *MockPayoutService) RequestRefund(ctx context.Context, fundingID string, req dto.RefundFundingRequest) (*domain.PayoutTransaction, error) {
	args := m.Called(ctx, fundingID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayoutTransaction), args.Error(1)
}
func (m *MockPayoutService) ListProcessable(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ portssvc.PayoutSvcFacade = (*MockPayoutService)(nil)

// --- Mock ExternalEventService ---
type MockExternalEventService struct {
	mock.Mock
}

func (m *MockExternalEventService) Ingest(ctx context.Context, p portssvc.IngestEventParams) (*domain.ExternalEvent, bool, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ExternalEvent), args.Bool(1), args.Error(2)
}

var _ portssvc.ExternalEventSvcFacade = (*MockExternalEventService)(nil)
