package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/google/uuid"
)

// attempt is one transition attempt on a funding or payout transaction.
type attempt struct {
	subjectType domain.StrategyOwner
	subjectID   string
	event       string
	from        string
	to          string
	reason      string
}

// audit appends the attempt inside tx. The acting party comes from ctx.
func (s *BaseService) audit(ctx context.Context, tx portsrepo.Store, a attempt, succeeded bool) error {
	actor := auditcontext.ActorFromContext(ctx)
	entry := domain.AuditLog{
		AuditLogID:  uuid.NewString(),
		SubjectType: string(a.subjectType),
		SubjectID:   a.subjectID,
		Event:       a.event,
		FromState:   a.from,
		ToState:     a.to,
		Succeeded:   succeeded,
		Reason:      a.reason,
		ActorID:     actor.ID,
		ActorKind:   actor.Kind,
		At:          s.now(),
	}
	if err := tx.AuditLogs().AppendAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// auditFailure records a failed attempt in its own transaction, after the attempt's transaction
// rolled back. Failing to write it is logged, never returned.
func (s *BaseService) auditFailure(ctx context.Context, store portsrepo.Store, a attempt, cause error) {
	a.to = a.from
	a.reason = cause.Error()
	err := store.InTx(ctx, func(tx portsrepo.Store) error {
		return s.audit(ctx, tx, a, false)
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to audit failed transition",
			slog.String("subject_id", a.subjectID),
			slog.String("event", a.event))
	}
}

func persistDetails(ctx context.Context, tx portsrepo.Store, record *domain.StrategyRecord, strategy strategies.Strategy, at time.Time) error {
	details, err := strategy.Details()
	if err != nil {
		return err
	}
	if err := tx.Strategies().UpdateStrategyDetails(ctx, record.StrategyID, details, at); err != nil {
		return fmt.Errorf("failed to persist strategy details: %w", err)
	}
	return nil
}

// saveDetails stores what a poll learned without transitioning.
func saveDetails(ctx context.Context, store portsrepo.Store, record *domain.StrategyRecord, strategy strategies.Strategy, at time.Time) error {
	return store.InTx(ctx, func(tx portsrepo.Store) error {
		return persistDetails(ctx, tx, record, strategy, at)
	})
}

func reversalMemo(memo domain.TranslatedText) domain.TranslatedText {
	return domain.TranslatedText{En: "Reversal: " + memo.En, Es: "Reverso: " + memo.Es}
}
