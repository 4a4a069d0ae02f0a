package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/dto"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartPayoutParams describes money about to leave a member's cash ledger.
type StartPayoutParams struct {
	MemberID string
	Amount   decimal.Decimal
	Kind     domain.StrategyKind
	Strategy strategies.StartParams
	Memo     domain.TranslatedText
	ApplyAt  time.Time

	// RefundOf links a refund payout to the funding transaction it returns money from.
	RefundOf *string
}

// PayoutService is the outbound mirror of FundingService. The member's cash is debited when the
// payout starts and credited back if it is canceled.
type PayoutService struct {
	BaseService
	store    portsrepo.Store
	ledgers  *LedgerService
	registry *strategies.Registry
}

func NewPayoutService(store portsrepo.Store, ledgers *LedgerService, registry *strategies.Registry) *PayoutService {
	return &PayoutService{store: store, ledgers: ledgers, registry: registry}
}

// StartPayout creates a payout transaction in tx. The member's cash balance must cover the amount.
func (s *PayoutService) StartPayout(ctx context.Context, tx portsrepo.Store, p StartPayoutParams) (*domain.PayoutTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, apperrors.Validationf("payout amount must be positive, got %s", p.Amount)
	}
	account, err := s.ledgers.EnsurePaymentAccount(ctx, tx, p.MemberID)
	if err != nil {
		return nil, err
	}
	applyAt := p.ApplyAt
	if applyAt.IsZero() {
		applyAt = s.now()
	}
	if _, err := tx.PaymentAccounts().LockPaymentAccount(ctx, account.AccountID); err != nil {
		return nil, err
	}
	memberCash, err := s.ledgers.EnsureCashLedger(ctx, tx, account.AccountID)
	if err != nil {
		return nil, err
	}
	platformCash, err := s.ledgers.EnsurePlatformCashLedger(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Ledgers().LockLedgers(ctx, []string{memberCash.LedgerID}); err != nil {
		return nil, err
	}
	balances, err := s.ledgers.LedgerBalances(ctx, tx, []domain.Ledger{*memberCash})
	if err != nil {
		return nil, err
	}
	if balances[memberCash.LedgerID].LessThan(p.Amount) {
		return nil, apperrors.Validationf("cash balance %s does not cover payout of %s", balances[memberCash.LedgerID], p.Amount)
	}

	actor := auditcontext.ActorFromContext(ctx)
	pt := domain.PayoutTransaction{
		PayoutTransactionID: uuid.NewString(),
		AccountID:           account.AccountID,
		MemberID:            p.MemberID,
		Amount:              p.Amount,
		CurrencyCode:        s.ledgers.Currency(),
		Memo:                p.Memo,
		Status:              domain.PayoutCreated,
		StrategyKind:        p.Kind,
		AuditFields: domain.AuditFields{
			CreatedAt:     s.now(),
			CreatedBy:     actor.ID,
			LastUpdatedAt: s.now(),
			LastUpdatedBy: actor.ID,
		},
		RefundedFundingTransactionID: p.RefundOf,
	}
	initial, err := strategies.InitialDetails(p.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strategy details: %w", err)
	}
	strategy, err := s.registry.Payout(p.Kind, strategies.PayoutTarget(pt), initial)
	if err != nil {
		return nil, err
	}
	reasons, err := strategy.CheckValidity(ctx, tx, applyAt)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, apperrors.Validationf("cannot pay out with %s: %s", p.Kind, strings.Join(reasons, "; "))
	}

	if err := tx.PayoutTransactions().InsertPayoutTransaction(ctx, pt); err != nil {
		return nil, fmt.Errorf("failed to insert payout transaction: %w", err)
	}
	details, err := strategy.Details()
	if err != nil {
		return nil, err
	}
	if err := tx.Strategies().InsertStrategy(ctx, domain.StrategyRecord{
		StrategyID: uuid.NewString(),
		OwnerType:  domain.StrategyOwnerPayout,
		OwnerID:    pt.PayoutTransactionID,
		Kind:       p.Kind,
		Details:    details,
		UpdatedAt:  s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to insert payout strategy: %w", err)
	}

	bt, err := s.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
		OriginatingLedgerID: memberCash.LedgerID,
		ReceivingLedgerID:   platformCash.LedgerID,
		Amount:              p.Amount,
		ApplyAt:             applyAt,
		Memo:                p.Memo,
	})
	if err != nil {
		return nil, err
	}
	pt.OriginatedBookTransactionID = &bt.BookTransactionID
	if err := tx.PayoutTransactions().UpdatePayoutTransaction(ctx, pt); err != nil {
		return nil, fmt.Errorf("failed to link payout book transaction: %w", err)
	}
	if err := s.audit(ctx, tx, attempt{
		subjectType: domain.StrategyOwnerPayout,
		subjectID:   pt.PayoutTransactionID,
		event:       "start",
		to:          string(domain.PayoutCreated),
	}, true); err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Payout transaction started",
		slog.String("payout_transaction_id", pt.PayoutTransactionID),
		slog.String("kind", string(p.Kind)),
		slog.String("amount", p.Amount.String()))
	return &pt, nil
}

// RefundFunding starts a refund payout onto the card charge that collected a funding transaction.
// The funding row stays locked until tx ends, so concurrent refunds of one charge are serialized and
// together never exceed what it collected.
func (s *PayoutService) RefundFunding(ctx context.Context, tx portsrepo.Store, fundingID string, amount decimal.Decimal, memo domain.TranslatedText) (*domain.PayoutTransaction, error) {
	ft, err := tx.FundingTransactions().LockFundingTransaction(ctx, fundingID)
	if err != nil {
		return nil, err
	}
	if ft.StrategyKind != domain.StrategyCard || ft.Status != domain.FundingCleared {
		return nil, apperrors.Validationf("funding transaction %s is not a cleared card charge", fundingID)
	}
	refunded, err := tx.PayoutTransactions().SumRefundsOfFunding(ctx, fundingID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum refunds of %s: %w", fundingID, err)
	}
	if remaining := ft.Amount.Sub(refunded); amount.GreaterThan(remaining) {
		return nil, apperrors.Validationf("refund of %s exceeds refundable %s of funded %s", amount, remaining, ft.Amount)
	}
	record, err := tx.Strategies().FindStrategyByOwner(ctx, domain.StrategyOwnerFunding, fundingID)
	if err != nil {
		return nil, err
	}
	var charge strategies.StartParams
	if err := json.Unmarshal(record.Details, &charge); err != nil {
		return nil, apperrors.Invariantf("undecodable card details of %s: %v", fundingID, err)
	}
	return s.StartPayout(ctx, tx, StartPayoutParams{
		MemberID: ft.MemberID,
		Amount:   amount,
		Kind:     domain.StrategyRefund,
		Strategy: strategies.StartParams{ProviderChargeID: charge.ProviderChargeID},
		Memo:     memo,
		RefundOf: &ft.FundingTransactionID,
	})
}

// CreatePayout starts a payout in its own transaction.
func (s *PayoutService) CreatePayout(ctx context.Context, req dto.CreatePayoutRequest) (*domain.PayoutTransaction, error) {
	var pt *domain.PayoutTransaction
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		var err error
		pt, err = s.StartPayout(ctx, tx, StartPayoutParams{
			MemberID: req.MemberID,
			Amount:   req.Amount,
			Kind:     req.Kind,
			Strategy: strategies.StartParams{InstrumentID: req.InstrumentID, Reference: req.Reference},
			Memo:     req.Memo,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// RequestRefund runs RefundFunding in its own transaction.
func (s *PayoutService) RequestRefund(ctx context.Context, fundingID string, req dto.RefundFundingRequest) (*domain.PayoutTransaction, error) {
	var pt *domain.PayoutTransaction
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		var err error
		pt, err = s.RefundFunding(ctx, tx, fundingID, req.Amount, req.Memo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// GetPayoutTransaction reads one payout transaction.
func (s *PayoutService) GetPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error) {
	return s.store.PayoutTransactions().FindPayoutTransactionByID(ctx, id)
}

// ListProcessable returns ids the worker should advance.
func (s *PayoutService) ListProcessable(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error) {
	return s.store.PayoutTransactions().ListPayoutTransactionIDsByStatus(ctx, statuses, limit)
}

// Process advances one payout by at most one step and marks it polled.
func (s *PayoutService) Process(ctx context.Context, id string) error {
	pt, record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	defer s.markPolled(ctx, id)
	strategy, err := s.registry.Payout(record.Kind, strategies.PayoutTarget(*pt), record.Details)
	if err != nil {
		return err
	}

	switch pt.Status {
	case domain.PayoutCreated:
		return s.send(ctx, pt, record, strategy)
	case domain.PayoutSending:
		return s.poll(ctx, pt, record, strategy)
	}
	return nil
}

func (s *PayoutService) markPolled(ctx context.Context, id string) {
	if err := s.store.PayoutTransactions().MarkPayoutTransactionPolled(ctx, id, s.now()); err != nil {
		s.LogWarn(ctx, err, "Failed to mark payout transaction polled", slog.String("payout_transaction_id", id))
	}
}

func (s *PayoutService) load(ctx context.Context, id string) (*domain.PayoutTransaction, *domain.StrategyRecord, error) {
	var pt *domain.PayoutTransaction
	var record *domain.StrategyRecord
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		var err error
		if pt, err = tx.PayoutTransactions().LockPayoutTransaction(ctx, id); err != nil {
			return err
		}
		record, err = tx.Strategies().FindStrategyByOwner(ctx, domain.StrategyOwnerPayout, id)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payout transaction %s: %w", id, err)
	}
	return pt, record, nil
}

func (s *PayoutService) send(ctx context.Context, pt *domain.PayoutTransaction, record *domain.StrategyRecord, strategy strategies.PayoutStrategy) error {
	if !strategy.ReadyToSendFunds() {
		return s.transition(ctx, pt, record, strategy, domain.PayoutEventPutIntoReview, "strategy is not ready to send funds")
	}

	outcome, err := strategy.SendFunds(ctx)
	if errors.Is(err, apperrors.ErrSendingFailed) {
		s.LogWarn(ctx, err, "Sending failed, moving to review", slog.String("payout_transaction_id", pt.PayoutTransactionID))
		return s.transition(ctx, pt, record, strategy, domain.PayoutEventPutIntoReview, err.Error())
	}
	if err != nil {
		s.auditFailure(ctx, s.store, attempt{subjectType: domain.StrategyOwnerPayout, subjectID: pt.PayoutTransactionID, event: string(domain.PayoutEventSendFunds), from: string(pt.Status)}, err)
		return fmt.Errorf("send funds for %s: %w", pt.PayoutTransactionID, err)
	}
	return s.transition(ctx, pt, record, strategy, domain.PayoutEventSendFunds, outcome.String())
}

func (s *PayoutService) poll(ctx context.Context, pt *domain.PayoutTransaction, record *domain.StrategyRecord, strategy strategies.PayoutStrategy) error {
	settled, err := strategy.FundsSettled(ctx, s.store)
	if err != nil {
		return err
	}
	if settled {
		return s.transition(ctx, pt, record, strategy, domain.PayoutEventMarkSettled, "provider reported funds settled")
	}
	failed, err := strategy.FundsFailed(ctx, s.store)
	if err != nil {
		return err
	}
	if failed {
		return s.transition(ctx, pt, record, strategy, domain.PayoutEventPutIntoReview, "provider reported the payout failed")
	}
	return saveDetails(ctx, s.store, record, strategy, s.now())
}

// Cancel cancels a created or reviewed payout and credits the member's cash back.
func (s *PayoutService) Cancel(ctx context.Context, id, reason string) error {
	return s.admin(ctx, id, domain.PayoutEventCancel, reason)
}

// Resume moves a reviewed payout back to created.
func (s *PayoutService) Resume(ctx context.Context, id, reason string) error {
	return s.admin(ctx, id, domain.PayoutEventResume, reason)
}

func (s *PayoutService) admin(ctx context.Context, id string, event domain.PayoutEvent, reason string) error {
	pt, record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	strategy, err := s.registry.Payout(record.Kind, strategies.PayoutTarget(*pt), record.Details)
	if err != nil {
		return err
	}
	if event == domain.PayoutEventResume {
		strategy.Reset()
	}
	return s.transition(ctx, pt, record, strategy, event, reason)
}

// transition fires event in its own transaction and audits a failure separately.
func (s *PayoutService) transition(ctx context.Context, pt *domain.PayoutTransaction, record *domain.StrategyRecord, strategy strategies.PayoutStrategy, event domain.PayoutEvent, reason string) error {
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.fire(ctx, tx, pt.PayoutTransactionID, record, strategy, event, reason)
	})
	if err != nil {
		s.auditFailure(ctx, s.store, attempt{subjectType: domain.StrategyOwnerPayout, subjectID: pt.PayoutTransactionID, event: string(event), from: string(pt.Status)}, err)
	}
	return err
}

func (s *PayoutService) fire(ctx context.Context, tx portsrepo.Store, id string, record *domain.StrategyRecord, strategy strategies.PayoutStrategy, event domain.PayoutEvent, reason string) error {
	pt, err := tx.PayoutTransactions().LockPayoutTransaction(ctx, id)
	if err != nil {
		return err
	}
	from := pt.Status
	to, err := domain.PayoutStateMachine.Next(from, event)
	if err != nil {
		return fmt.Errorf("%w: payout transaction %s: %w", apperrors.ErrConflict, id, err)
	}

	pt.Status = to
	switch to {
	case domain.PayoutNeedsReview:
		pt.ReviewReason = reason
	case domain.PayoutCreated:
		pt.ReviewReason = ""
	case domain.PayoutCanceled:
		if err := s.reverse(ctx, tx, pt); err != nil {
			return err
		}
	}
	pt.LastUpdatedAt = s.now()
	pt.LastUpdatedBy = auditcontext.ActorFromContext(ctx).ID
	if err := tx.PayoutTransactions().UpdatePayoutTransaction(ctx, *pt); err != nil {
		return fmt.Errorf("failed to update payout transaction: %w", err)
	}
	if err := persistDetails(ctx, tx, record, strategy, s.now()); err != nil {
		return err
	}
	if err := s.audit(ctx, tx, attempt{
		subjectType: domain.StrategyOwnerPayout,
		subjectID:   id,
		event:       string(event),
		from:        string(from),
		to:          string(to),
		reason:      reason,
	}, true); err != nil {
		return err
	}
	s.LogInfo(ctx, "Payout transaction transitioned",
		slog.String("payout_transaction_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}

func (s *PayoutService) reverse(ctx context.Context, tx portsrepo.Store, pt *domain.PayoutTransaction) error {
	if pt.OriginatedBookTransactionID == nil || pt.ReversalBookTransactionID != nil {
		return nil
	}
	original, err := tx.BookTransactions().FindBookTransactionByID(ctx, *pt.OriginatedBookTransactionID)
	if err != nil {
		return fmt.Errorf("originated book transaction of %s: %w", pt.PayoutTransactionID, err)
	}
	if err := tx.Ledgers().LockLedgers(ctx, []string{original.OriginatingLedgerID}); err != nil {
		return err
	}
	bt, err := s.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
		OriginatingLedgerID: original.ReceivingLedgerID,
		ReceivingLedgerID:   original.OriginatingLedgerID,
		Amount:              original.Amount,
		ApplyAt:             s.now(),
		Memo:                reversalMemo(original.Memo),
	})
	if err != nil {
		return err
	}
	pt.ReversalBookTransactionID = &bt.BookTransactionID
	return nil
}
