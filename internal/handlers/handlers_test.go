package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/SscSPs/payment_ledger/internal/handlers"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const webhookSecret = "whsec_test"

var handlerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type HandlersTestSuite struct {
	suite.Suite
	router         *gin.Engine
	ledgerService  *MockLedgerService
	chargeService  *MockChargeService
	fundingService *MockFundingService
	payoutService  *MockPayoutService
	eventService   *MockExternalEventService
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ledgerService = new(MockLedgerService)
	s.chargeService = new(MockChargeService)
	s.fundingService = new(MockFundingService)
	s.payoutService = new(MockPayoutService)
	s.eventService = new(MockExternalEventService)

	s.router = gin.New()
	handlers.RegisterRoutes(s.router, &config.Config{WebhookSecret: webhookSecret}, &portssvc.ServiceContainer{
		Ledger:         s.ledgerService,
		Charges:        s.chargeService,
		Funding:        s.fundingService,
		Payout:         s.payoutService,
		ExternalEvents: s.eventService,
	}, nil)
}

func (s *HandlersTestSuite) TearDownTest() {
	s.ledgerService.AssertExpectations(s.T())
	s.chargeService.AssertExpectations(s.T())
	s.fundingService.AssertExpectations(s.T())
	s.payoutService.AssertExpectations(s.T())
	s.eventService.AssertExpectations(s.T())
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

// do sends the request as actorID when it is non-empty.
func (s *HandlersTestSuite) do(method, path, body string, actorID string, kind domain.ActorKind) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set(middleware.HeaderActorID, actorID)
		req.Header.Set(middleware.HeaderActorKind, string(kind))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func actedBy(id string) any {
	return mock.MatchedBy(func(ctx context.Context) bool {
		return auditcontext.ActorFromContext(ctx).ID == id
	})
}

func (s *HandlersTestSuite) TestHealthz() {
	w := s.do(http.MethodGet, "/healthz", "", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("OK", w.Body.String())
}

func (s *HandlersTestSuite) TestLedgerBalance() {
	ledger := &domain.Ledger{LedgerID: "ledger-1", AccountID: "acct-1", Name: "Cash", CurrencyCode: "USD", CategorySlugs: []string{domain.CashCategorySlug}}
	s.ledgerService.On("LedgerBalance", mock.Anything, "ledger-1").Return(ledger, decimal.RequireFromString("12.5"), nil).Once()

	w := s.do(http.MethodGet, "/api/v1/ledgers/ledger-1/balance", "", "member-1", domain.ActorMember)

	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("ledger-1", body["ledgerID"])
	s.Equal("12.5", body["balance"])
}

func (s *HandlersTestSuite) TestLedgerBalance_NotFound() {
	s.ledgerService.On("LedgerBalance", mock.Anything, "missing").
		Return(nil, decimal.Zero, fmt.Errorf("%w: ledger missing", apperrors.ErrNotFound)).Once()

	w := s.do(http.MethodGet, "/api/v1/ledgers/missing/balance", "", "", "")

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlersTestSuite) TestListBookTransactions() {
	bts := []domain.BookTransaction{
		{BookTransactionID: "bt-1", OriginatingLedgerID: "ledger-2", ReceivingLedgerID: "ledger-1", Amount: decimal.NewFromInt(5), CurrencyCode: "USD"},
		{BookTransactionID: "bt-2", OriginatingLedgerID: "ledger-1", ReceivingLedgerID: "ledger-3", Amount: decimal.NewFromInt(2), CurrencyCode: "USD"},
	}
	s.ledgerService.On("ListBookTransactions", mock.Anything, "ledger-1").Return(bts, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/ledgers/ledger-1/book-transactions", "", "", "")

	s.Equal(http.StatusOK, w.Code)
	var out []dto.BookTransactionResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	s.Require().Len(out, 2)
	s.Equal("bt-1", out[0].BookTransactionID)
	s.Equal("bt-2", out[1].BookTransactionID)
}

func (s *HandlersTestSuite) TestCreateCharge() {
	charge := &domain.Charge{ChargeID: "charge-1", Kind: "trip", MemberID: "member-1", UndiscountedSubtotal: decimal.NewFromInt(25), CurrencyCode: "USD", CategorySlug: "transport", ApplyAt: handlerNow}
	s.chargeService.On("CreateCharge", actedBy("member-1"), mock.MatchedBy(func(req dto.CreateChargeRequest) bool {
		return req.Kind == "trip" && req.MemberID == "member-1" && req.UndiscountedSubtotal.Equal(decimal.NewFromInt(25))
	})).Return(charge, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/charges",
		`{"kind":"trip","memberID":"member-1","undiscountedSubtotal":"25","categorySlug":"transport"}`,
		"member-1", domain.ActorMember)

	s.Equal(http.StatusCreated, w.Code)
	s.Equal("charge-1", s.decode(w)["chargeID"])
}

func (s *HandlersTestSuite) TestCreateCharge_InvalidKind() {
	w := s.do(http.MethodPost, "/api/v1/charges",
		`{"kind":"gift","memberID":"member-1","undiscountedSubtotal":"25","categorySlug":"transport"}`,
		"member-1", domain.ActorMember)

	s.Equal(http.StatusBadRequest, w.Code)
	s.chargeService.AssertNotCalled(s.T(), "CreateCharge", mock.Anything, mock.Anything)
}

func (s *HandlersTestSuite) TestCreateCharge_PredictionMismatch() {
	mismatch := fmt.Errorf("%w: predicted cash 3, quoted 2", apperrors.ErrPredictionMismatch)
	s.chargeService.On("CreateCharge", mock.Anything, mock.Anything).Return(nil, mismatch).Once()

	w := s.do(http.MethodPost, "/api/v1/charges",
		`{"kind":"checkout","memberID":"member-1","undiscountedSubtotal":"25","categorySlug":"food","quotedCashAmount":"2"}`,
		"member-1", domain.ActorMember)

	s.Equal(http.StatusConflict, w.Code)
	s.Equal(apperrors.ErrPredictionMismatch.Error(), s.decode(w)["error"])
	s.NotContains(w.Body.String(), "predicted cash")
}

func (s *HandlersTestSuite) TestCreateCharge_WithoutActorIsAuditedAsAnonymous() {
	charge := &domain.Charge{ChargeID: "charge-2", Kind: "trip", MemberID: "member-1", UndiscountedSubtotal: decimal.NewFromInt(25), CurrencyCode: "USD", CategorySlug: "transport", ApplyAt: handlerNow}
	s.chargeService.On("CreateCharge", actedBy(domain.AnonymousActor.ID), mock.Anything).Return(charge, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/charges",
		`{"kind":"trip","memberID":"member-1","undiscountedSubtotal":"25","categorySlug":"transport"}`,
		"", "")

	s.Equal(http.StatusCreated, w.Code)
	s.chargeService.AssertExpectations(s.T())
}

func (s *HandlersTestSuite) TestCreateCharge_InternalErrorIsHidden() {
	s.chargeService.On("CreateCharge", mock.Anything, mock.Anything).Return(nil, apperrors.Invariantf("ledger totals drifted")).Once()

	w := s.do(http.MethodPost, "/api/v1/charges",
		`{"kind":"trip","memberID":"member-1","undiscountedSubtotal":"25","categorySlug":"transport"}`,
		"member-1", domain.ActorMember)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("Failed to create charge", s.decode(w)["error"])
}

func (s *HandlersTestSuite) TestGetFunding() {
	ft := &domain.FundingTransaction{FundingTransactionID: "ft-1", MemberID: "member-1", Amount: decimal.NewFromInt(25), Status: domain.FundingCollecting, StrategyKind: domain.StrategyCard}
	s.fundingService.On("GetFundingTransaction", mock.Anything, "ft-1").Return(ft, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/funding-transactions/ft-1", "", "member-1", domain.ActorMember)

	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("collecting", body["status"])
	s.Equal("card", body["strategyKind"])
}

func (s *HandlersTestSuite) TestCancelFunding_RequiresActor() {
	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/cancel", `{"reason":"fraud"}`, "", "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestCancelFunding_RequiresAdmin() {
	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/cancel", `{"reason":"fraud"}`, "member-1", domain.ActorMember)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestCancelFunding_SystemKindIsNotTrusted() {
	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/cancel", `{"reason":"fraud"}`, "intruder", domain.ActorSystem)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestCancelFunding() {
	s.fundingService.On("Cancel", actedBy("admin-1"), "ft-1", "fraud").Return(nil).Once()

	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/cancel", `{"reason":"fraud"}`, "admin-1", domain.ActorAdmin)

	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlersTestSuite) TestCancelFunding_RequiresReason() {
	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/cancel", `{}`, "admin-1", domain.ActorAdmin)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestResumeFunding_Conflict() {
	s.fundingService.On("Resume", mock.Anything, "ft-1", "retry").
		Return(fmt.Errorf("%w: funding transaction is cleared", apperrors.ErrConflict)).Once()

	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/resume", `{"reason":"retry"}`, "admin-1", domain.ActorAdmin)

	s.Equal(http.StatusConflict, w.Code)
}

func (s *HandlersTestSuite) TestRefundFunding() {
	pt := &domain.PayoutTransaction{PayoutTransactionID: "pt-1", Amount: decimal.NewFromInt(10), Status: domain.PayoutCreated, StrategyKind: domain.StrategyRefund}
	s.payoutService.On("RequestRefund", actedBy("admin-1"), "ft-1", mock.MatchedBy(func(req dto.RefundFundingRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(10))
	})).Return(pt, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/funding-transactions/ft-1/refund", `{"amount":"10"}`, "admin-1", domain.ActorAdmin)

	s.Equal(http.StatusCreated, w.Code)
	s.Equal("refund", s.decode(w)["strategyKind"])
}

func (s *HandlersTestSuite) TestCreatePayout() {
	pt := &domain.PayoutTransaction{PayoutTransactionID: "pt-1", MemberID: "member-1", Amount: decimal.NewFromInt(5), Status: domain.PayoutCreated, StrategyKind: domain.StrategyACH}
	s.payoutService.On("CreatePayout", mock.Anything, mock.MatchedBy(func(req dto.CreatePayoutRequest) bool {
		return req.Kind == domain.StrategyACH && req.InstrumentID == "bank-1"
	})).Return(pt, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/payouts", `{"memberID":"member-1","amount":"5","kind":"ach","instrumentID":"bank-1"}`, "member-1", domain.ActorMember)

	s.Equal(http.StatusCreated, w.Code)
	s.Equal("pt-1", s.decode(w)["id"])
}

func (s *HandlersTestSuite) TestCreatePayout_RejectsCardKind() {
	w := s.do(http.MethodPost, "/api/v1/payouts", `{"memberID":"member-1","amount":"5","kind":"card"}`, "member-1", domain.ActorMember)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestCreatePayout_InsufficientCash() {
	s.payoutService.On("CreatePayout", mock.Anything, mock.Anything).
		Return(nil, apperrors.Validationf("cash balance 2 does not cover 5")).Once()

	w := s.do(http.MethodPost, "/api/v1/payouts", `{"memberID":"member-1","amount":"5","kind":"ach","instrumentID":"bank-1"}`, "member-1", domain.ActorMember)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(s.decode(w)["error"], "does not cover")
}

func (s *HandlersTestSuite) TestGetPayout_ProviderUnavailable() {
	s.payoutService.On("GetPayoutTransaction", mock.Anything, "pt-1").
		Return(nil, fmt.Errorf("loading strategy: %w", apperrors.ErrRecoverable)).Once()

	w := s.do(http.MethodGet, "/api/v1/payouts/pt-1", "", "", "")

	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *HandlersTestSuite) TestResumePayout() {
	s.payoutService.On("Resume", actedBy("admin-1"), "pt-1", "bank fixed").Return(nil).Once()

	w := s.do(http.MethodPost, "/api/v1/payouts/pt-1/resume", `{"reason":"bank fixed"}`, "admin-1", domain.ActorAdmin)

	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlersTestSuite) webhook(body, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/processor", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderWebhookSignature, signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const chargeSucceeded = `{"id":"evt_1","type":"charge.updated","objectType":"charge","objectID":"ch_1","status":"succeeded","occurredAt":"2026-03-01T12:00:00Z","data":{"amount":2500}}`

func (s *HandlersTestSuite) TestWebhook_StoresEvent() {
	s.eventService.On("Ingest", mock.Anything, mock.MatchedBy(func(p portssvc.IngestEventParams) bool {
		return p.Provider == strategies.ProviderProcessor &&
			p.ProviderEventID == "evt_1" &&
			p.ObjectType == "charge" &&
			p.ObjectID == "ch_1" &&
			p.Status == "succeeded" &&
			p.OccurredAt.Equal(handlerNow) &&
			string(p.Payload) == `{"amount":2500}`
	})).Return(&domain.ExternalEvent{EventID: "event-1"}, true, nil).Once()

	w := s.webhook(chargeSucceeded, middleware.Sign(webhookSecret, []byte(chargeSucceeded)))

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, s.decode(w)["created"])
}

func (s *HandlersTestSuite) TestWebhook_RedeliveryIsAcknowledged() {
	s.eventService.On("Ingest", mock.Anything, mock.Anything).Return(&domain.ExternalEvent{EventID: "event-1"}, false, nil).Once()

	w := s.webhook(chargeSucceeded, middleware.Sign(webhookSecret, []byte(chargeSucceeded)))

	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, s.decode(w)["created"])
}

func (s *HandlersTestSuite) TestWebhook_BadSignature() {
	w := s.webhook(chargeSucceeded, middleware.Sign("other", []byte(chargeSucceeded)))

	s.Equal(http.StatusUnauthorized, w.Code)
	s.eventService.AssertNotCalled(s.T(), "Ingest", mock.Anything, mock.Anything)
}

func (s *HandlersTestSuite) TestWebhook_StoreFailure() {
	s.eventService.On("Ingest", mock.Anything, mock.Anything).Return(nil, false, errors.New("connection reset")).Once()

	w := s.webhook(chargeSucceeded, middleware.Sign(webhookSecret, []byte(chargeSucceeded)))

	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *HandlersTestSuite) TestReportManualStatus() {
	s.eventService.On("Ingest", actedBy("admin-1"), portssvc.IngestEventParams{
		Provider:        strategies.ProviderManual,
		ProviderEventID: "manual-wire-77-settled",
		ObjectType:      strategies.OffPlatformObjectType,
		ObjectID:        "wire-77",
		EventType:       "manual.status",
		Status:          strategies.ManualSettled,
	}).Return(&domain.ExternalEvent{EventID: "event-2"}, true, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/off-platform/wire-77/status", `{"status":"settled"}`, "admin-1", domain.ActorAdmin)

	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlersTestSuite) TestReportManualStatus_UnknownStatus() {
	w := s.do(http.MethodPost, "/api/v1/off-platform/wire-77/status", `{"status":"lost"}`, "admin-1", domain.ActorAdmin)
	s.Equal(http.StatusBadRequest, w.Code)
}
