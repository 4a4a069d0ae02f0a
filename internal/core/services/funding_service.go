package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartFundingParams describes money a member is about to bring into the platform.
type StartFundingParams struct {
	MemberID string
	Amount   decimal.Decimal
	Kind     domain.StrategyKind
	Strategy strategies.StartParams
	Memo     domain.TranslatedText
	ApplyAt  time.Time
}

// FundingService drives funding transactions through their state machine. External calls always run
// outside database transactions: lock and load, call out, then persist in a second short transaction.
type FundingService struct {
	BaseService
	store    portsrepo.Store
	ledgers  *LedgerService
	registry *strategies.Registry
}

func NewFundingService(store portsrepo.Store, ledgers *LedgerService, registry *strategies.Registry) *FundingService {
	return &FundingService{store: store, ledgers: ledgers, registry: registry}
}

// StartFunding creates a funding transaction in tx and credits the member's cash ledger from the
// platform cash ledger right away. The credit is reversed if the funding is canceled.
func (s *FundingService) StartFunding(ctx context.Context, tx portsrepo.Store, p StartFundingParams) (*domain.FundingTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, apperrors.Validationf("funding amount must be positive, got %s", p.Amount)
	}
	account, err := s.ledgers.EnsurePaymentAccount(ctx, tx, p.MemberID)
	if err != nil {
		return nil, err
	}
	applyAt := p.ApplyAt
	if applyAt.IsZero() {
		applyAt = s.now()
	}

	actor := auditcontext.ActorFromContext(ctx)
	ft := domain.FundingTransaction{
		FundingTransactionID: uuid.NewString(),
		AccountID:            account.AccountID,
		MemberID:             p.MemberID,
		Amount:               p.Amount,
		CurrencyCode:         s.ledgers.Currency(),
		Memo:                 p.Memo,
		Status:               domain.FundingCreated,
		StrategyKind:         p.Kind,
		AuditFields: domain.AuditFields{
			CreatedAt:     s.now(),
			CreatedBy:     actor.ID,
			LastUpdatedAt: s.now(),
			LastUpdatedBy: actor.ID,
		},
	}

	initial, err := strategies.InitialDetails(p.Strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strategy details: %w", err)
	}
	strategy, err := s.registry.Funding(p.Kind, strategies.FundingTarget(ft), initial)
	if err != nil {
		return nil, err
	}
	reasons, err := strategy.CheckValidity(ctx, tx, applyAt)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, apperrors.Validationf("cannot fund with %s: %s", p.Kind, strings.Join(reasons, "; "))
	}

	if err := tx.FundingTransactions().InsertFundingTransaction(ctx, ft); err != nil {
		return nil, fmt.Errorf("failed to insert funding transaction: %w", err)
	}
	details, err := strategy.Details()
	if err != nil {
		return nil, err
	}
	if err := tx.Strategies().InsertStrategy(ctx, domain.StrategyRecord{
		StrategyID: uuid.NewString(),
		OwnerType:  domain.StrategyOwnerFunding,
		OwnerID:    ft.FundingTransactionID,
		Kind:       p.Kind,
		Details:    details,
		UpdatedAt:  s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to insert funding strategy: %w", err)
	}

	platformCash, err := s.ledgers.EnsurePlatformCashLedger(ctx, tx)
	if err != nil {
		return nil, err
	}
	memberCash, err := s.ledgers.EnsureCashLedger(ctx, tx, account.AccountID)
	if err != nil {
		return nil, err
	}
	if err := tx.Ledgers().LockLedgers(ctx, []string{memberCash.LedgerID}); err != nil {
		return nil, err
	}
	bt, err := s.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
		OriginatingLedgerID: platformCash.LedgerID,
		ReceivingLedgerID:   memberCash.LedgerID,
		Amount:              p.Amount,
		ApplyAt:             applyAt,
		Memo:                p.Memo,
	})
	if err != nil {
		return nil, err
	}
	ft.OriginatedBookTransactionID = &bt.BookTransactionID
	if err := tx.FundingTransactions().UpdateFundingTransaction(ctx, ft); err != nil {
		return nil, fmt.Errorf("failed to link funding book transaction: %w", err)
	}
	if err := s.audit(ctx, tx, attempt{
		subjectType: domain.StrategyOwnerFunding,
		subjectID:   ft.FundingTransactionID,
		event:       "start",
		to:          string(domain.FundingCreated),
	}, true); err != nil {
		return nil, err
	}

	s.LogInfo(ctx, "Funding transaction started",
		slog.String("funding_transaction_id", ft.FundingTransactionID),
		slog.String("kind", string(p.Kind)),
		slog.String("amount", p.Amount.String()))
	return &ft, nil
}

// GetFundingTransaction reads one funding transaction.
func (s *FundingService) GetFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error) {
	return s.store.FundingTransactions().FindFundingTransactionByID(ctx, id)
}

// ListProcessable returns ids the worker should advance.
func (s *FundingService) ListProcessable(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error) {
	return s.store.FundingTransactions().ListFundingTransactionIDsByStatus(ctx, statuses, limit)
}

// Process advances one funding transaction by at most one step. Recoverable provider failures are
// returned so the caller retries later; declared collection failures move it to review. Every attempt
// marks the transaction polled, which sends it to the back of the worker queue.
func (s *FundingService) Process(ctx context.Context, id string) error {
	ft, record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	defer s.markPolled(ctx, id)
	strategy, err := s.registry.Funding(record.Kind, strategies.FundingTarget(*ft), record.Details)
	if err != nil {
		return err
	}

	switch ft.Status {
	case domain.FundingCreated:
		return s.collect(ctx, ft, record, strategy)
	case domain.FundingCollecting, domain.FundingCleared:
		return s.poll(ctx, ft, record, strategy)
	}
	return nil
}

func (s *FundingService) markPolled(ctx context.Context, id string) {
	if err := s.store.FundingTransactions().MarkFundingTransactionPolled(ctx, id, s.now()); err != nil {
		s.LogWarn(ctx, err, "Failed to mark funding transaction polled", slog.String("funding_transaction_id", id))
	}
}

func (s *FundingService) load(ctx context.Context, id string) (*domain.FundingTransaction, *domain.StrategyRecord, error) {
	var ft *domain.FundingTransaction
	var record *domain.StrategyRecord
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		var err error
		if ft, err = tx.FundingTransactions().LockFundingTransaction(ctx, id); err != nil {
			return err
		}
		record, err = tx.Strategies().FindStrategyByOwner(ctx, domain.StrategyOwnerFunding, id)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load funding transaction %s: %w", id, err)
	}
	return ft, record, nil
}

func (s *FundingService) collect(ctx context.Context, ft *domain.FundingTransaction, record *domain.StrategyRecord, strategy strategies.FundingStrategy) error {
	a := attempt{subjectType: domain.StrategyOwnerFunding, subjectID: ft.FundingTransactionID, event: string(domain.FundingEventCollectFunds), from: string(ft.Status)}
	if !strategy.ReadyToCollectFunds() {
		return s.review(ctx, ft.FundingTransactionID, record, strategy, "strategy is not ready to collect funds")
	}

	outcome, err := strategy.CollectFunds(ctx)
	if errors.Is(err, apperrors.ErrCollectionFailed) {
		s.LogWarn(ctx, err, "Collection failed, moving to review", slog.String("funding_transaction_id", ft.FundingTransactionID))
		return s.review(ctx, ft.FundingTransactionID, record, strategy, err.Error())
	}
	if err != nil {
		s.auditFailure(ctx, s.store, a, err)
		return fmt.Errorf("collect funds for %s: %w", ft.FundingTransactionID, err)
	}

	err = s.store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.fire(ctx, tx, ft.FundingTransactionID, record, strategy, domain.FundingEventCollectFunds, outcome.String())
	})
	if err != nil {
		s.auditFailure(ctx, s.store, a, err)
		return err
	}
	return nil
}

func (s *FundingService) poll(ctx context.Context, ft *domain.FundingTransaction, record *domain.StrategyRecord, strategy strategies.FundingStrategy) error {
	canceled, err := strategy.FundsCanceled(ctx, s.store)
	if err != nil {
		return err
	}
	var event domain.FundingEvent
	switch {
	case canceled:
		event = domain.FundingEventCancel
	case ft.Status == domain.FundingCollecting:
		cleared, err := strategy.FundsCleared(ctx, s.store)
		if err != nil {
			return err
		}
		if !cleared {
			return saveDetails(ctx, s.store, record, strategy, s.now())
		}
		event = domain.FundingEventMarkCleared
	default:
		return nil
	}

	err = s.store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.fire(ctx, tx, ft.FundingTransactionID, record, strategy, event, "provider reported funds "+string(event))
	})
	if err != nil {
		s.auditFailure(ctx, s.store, attempt{subjectType: domain.StrategyOwnerFunding, subjectID: ft.FundingTransactionID, event: string(event), from: string(ft.Status)}, err)
	}
	return err
}

// Cancel cancels a funding transaction on behalf of the actor in ctx and reverses its credit.
func (s *FundingService) Cancel(ctx context.Context, id, reason string) error {
	return s.admin(ctx, id, domain.FundingEventCancel, reason)
}

// Resume moves a reviewed funding transaction back to created. The strategy retries under a new
// idempotency key.
func (s *FundingService) Resume(ctx context.Context, id, reason string) error {
	return s.admin(ctx, id, domain.FundingEventResume, reason)
}

func (s *FundingService) admin(ctx context.Context, id string, event domain.FundingEvent, reason string) error {
	ft, record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	strategy, err := s.registry.Funding(record.Kind, strategies.FundingTarget(*ft), record.Details)
	if err != nil {
		return err
	}
	if event == domain.FundingEventResume {
		strategy.Reset()
	}
	err = s.store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.fire(ctx, tx, id, record, strategy, event, reason)
	})
	if err != nil {
		s.auditFailure(ctx, s.store, attempt{subjectType: domain.StrategyOwnerFunding, subjectID: id, event: string(event), from: string(ft.Status)}, err)
	}
	return err
}

func (s *FundingService) review(ctx context.Context, id string, record *domain.StrategyRecord, strategy strategies.FundingStrategy, reason string) error {
	err := s.store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.fire(ctx, tx, id, record, strategy, domain.FundingEventPutIntoReview, reason)
	})
	if err != nil {
		s.auditFailure(ctx, s.store, attempt{subjectType: domain.StrategyOwnerFunding, subjectID: id, event: string(domain.FundingEventPutIntoReview), from: string(domain.FundingCreated)}, err)
	}
	return err
}

// fire re-locks the transaction, applies event, runs its side effects, persists the strategy details
// and audits the transition, all inside tx.
func (s *FundingService) fire(ctx context.Context, tx portsrepo.Store, id string, record *domain.StrategyRecord, strategy strategies.FundingStrategy, event domain.FundingEvent, reason string) error {
	ft, err := tx.FundingTransactions().LockFundingTransaction(ctx, id)
	if err != nil {
		return err
	}
	from := ft.Status
	to, err := domain.FundingStateMachine.Next(from, event)
	if err != nil {
		return fmt.Errorf("%w: funding transaction %s: %w", apperrors.ErrConflict, id, err)
	}

	ft.Status = to
	switch to {
	case domain.FundingNeedsReview:
		ft.ReviewReason = reason
	case domain.FundingCreated:
		ft.ReviewReason = ""
	case domain.FundingCanceled:
		if err := s.reverse(ctx, tx, ft); err != nil {
			return err
		}
	}
	actor := auditcontext.ActorFromContext(ctx)
	ft.LastUpdatedAt = s.now()
	ft.LastUpdatedBy = actor.ID
	if err := tx.FundingTransactions().UpdateFundingTransaction(ctx, *ft); err != nil {
		return fmt.Errorf("failed to update funding transaction: %w", err)
	}
	if err := persistDetails(ctx, tx, record, strategy, s.now()); err != nil {
		return err
	}
	if err := s.audit(ctx, tx, attempt{
		subjectType: domain.StrategyOwnerFunding,
		subjectID:   id,
		event:       string(event),
		from:        string(from),
		to:          string(to),
		reason:      reason,
	}, true); err != nil {
		return err
	}
	s.LogInfo(ctx, "Funding transaction transitioned",
		slog.String("funding_transaction_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}

// reverse books platform cash back out of the member's cash ledger, once.
func (s *FundingService) reverse(ctx context.Context, tx portsrepo.Store, ft *domain.FundingTransaction) error {
	if ft.OriginatedBookTransactionID == nil || ft.ReversalBookTransactionID != nil {
		return nil
	}
	original, err := tx.BookTransactions().FindBookTransactionByID(ctx, *ft.OriginatedBookTransactionID)
	if err != nil {
		return fmt.Errorf("originated book transaction of %s: %w", ft.FundingTransactionID, err)
	}
	if err := tx.Ledgers().LockLedgers(ctx, []string{original.ReceivingLedgerID}); err != nil {
		return err
	}
	bt, err := s.ledgers.AddBookTransaction(ctx, tx, AddBookTransactionParams{
		OriginatingLedgerID: original.ReceivingLedgerID,
		ReceivingLedgerID:   original.OriginatingLedgerID,
		Amount:              original.Amount,
		ApplyAt:             s.now(),
		Memo:                reversalMemo(original.Memo),
		CategorySlug:        original.AssociatedCategorySlug,
	})
	if err != nil {
		return err
	}
	ft.ReversalBookTransactionID = &bt.BookTransactionID
	return nil
}
