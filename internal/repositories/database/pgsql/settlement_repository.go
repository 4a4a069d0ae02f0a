package pgsql

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PgxFundingTransactionRepository struct {
	BaseRepository
}

var _ portsrepo.FundingTransactionRepositoryFacade = (*PgxFundingTransactionRepository)(nil)

const selectFundingFields = `
	funding_transaction_id, account_id, member_id, amount, currency_code, memo, status, strategy_kind,
	originated_book_transaction_id, reversal_book_transaction_id, review_reason, last_polled_at,
	created_at, created_by, last_updated_at, last_updated_by`

func scanFunding(row pgx.Row) (*domain.FundingTransaction, error) {
	var ft domain.FundingTransaction
	err := row.Scan(&ft.FundingTransactionID, &ft.AccountID, &ft.MemberID, &ft.Amount, &ft.CurrencyCode, &ft.Memo, &ft.Status, &ft.StrategyKind,
		&ft.OriginatedBookTransactionID, &ft.ReversalBookTransactionID, &ft.ReviewReason, &ft.LastPolledAt,
		&ft.CreatedAt, &ft.CreatedBy, &ft.LastUpdatedAt, &ft.LastUpdatedBy)
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *PgxFundingTransactionRepository) InsertFundingTransaction(ctx context.Context, ft domain.FundingTransaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO funding_transactions (`+selectFundingFields+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		ft.FundingTransactionID, ft.AccountID, ft.MemberID, ft.Amount, ft.CurrencyCode, ft.Memo, ft.Status, ft.StrategyKind,
		ft.OriginatedBookTransactionID, ft.ReversalBookTransactionID, ft.ReviewReason, ft.LastPolledAt,
		ft.CreatedAt, ft.CreatedBy, ft.LastUpdatedAt, ft.LastUpdatedBy)
	return mapError(err, "funding transaction "+ft.FundingTransactionID)
}

func (r *PgxFundingTransactionRepository) FindFundingTransactionByID(ctx context.Context, id string) (*domain.FundingTransaction, error) {
	ft, err := scanFunding(r.queryRow(ctx, `SELECT `+selectFundingFields+` FROM funding_transactions WHERE funding_transaction_id = $1`, id))
	return ft, mapError(err, "funding transaction "+id)
}

func (r *PgxFundingTransactionRepository) LockFundingTransaction(ctx context.Context, id string) (*domain.FundingTransaction, error) {
	ft, err := scanFunding(r.queryRow(ctx, `SELECT `+selectFundingFields+` FROM funding_transactions WHERE funding_transaction_id = $1 FOR UPDATE`, id))
	return ft, mapError(err, "funding transaction "+id)
}

func (r *PgxFundingTransactionRepository) UpdateFundingTransaction(ctx context.Context, ft domain.FundingTransaction) error {
	tag, err := r.exec(ctx, `
		UPDATE funding_transactions SET
			status = $2, review_reason = $3, originated_book_transaction_id = $4, reversal_book_transaction_id = $5,
			last_updated_at = $6, last_updated_by = $7
		WHERE funding_transaction_id = $1`,
		ft.FundingTransactionID, ft.Status, ft.ReviewReason, ft.OriginatedBookTransactionID, ft.ReversalBookTransactionID,
		ft.LastUpdatedAt, ft.LastUpdatedBy)
	if err == nil && tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
	}
	return mapError(err, "funding transaction "+ft.FundingTransactionID)
}

func (r *PgxFundingTransactionRepository) ListFundingTransactionIDsByStatus(ctx context.Context, statuses []domain.FundingStatus, limit int) ([]string, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return r.listIDs(ctx, `
		SELECT funding_transaction_id FROM funding_transactions
		WHERE status = ANY($1)
		ORDER BY last_polled_at NULLS FIRST, created_at, funding_transaction_id
		LIMIT $2`, values, limit)
}

func (r *PgxFundingTransactionRepository) MarkFundingTransactionPolled(ctx context.Context, id string, at time.Time) error {
	tag, err := r.exec(ctx, `UPDATE funding_transactions SET last_polled_at = $2 WHERE funding_transaction_id = $1`, id, at)
	if err == nil && tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
	}
	return mapError(err, "funding transaction "+id)
}

// listIDs runs an id query whose parameters are a status list and a limit. limit <= 0 means no limit.
func (r *BaseRepository) listIDs(ctx context.Context, query string, statuses []string, limit int) ([]string, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.query(ctx, query, statuses, lim)
	if err != nil {
		return nil, mapError(err, "list ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, mapError(err, "list ids")
}

type PgxPayoutTransactionRepository struct {
	BaseRepository
}

var _ portsrepo.PayoutTransactionRepositoryFacade = (*PgxPayoutTransactionRepository)(nil)

const selectPayoutFields = `
	payout_transaction_id, account_id, member_id, amount, currency_code, memo, status, strategy_kind,
	originated_book_transaction_id, reversal_book_transaction_id, review_reason, last_polled_at,
	refunded_funding_transaction_id, created_at, created_by, last_updated_at, last_updated_by`

func scanPayout(row pgx.Row) (*domain.PayoutTransaction, error) {
	var pt domain.PayoutTransaction
	err := row.Scan(&pt.PayoutTransactionID, &pt.AccountID, &pt.MemberID, &pt.Amount, &pt.CurrencyCode, &pt.Memo, &pt.Status, &pt.StrategyKind,
		&pt.OriginatedBookTransactionID, &pt.ReversalBookTransactionID, &pt.ReviewReason, &pt.LastPolledAt,
		&pt.RefundedFundingTransactionID, &pt.CreatedAt, &pt.CreatedBy, &pt.LastUpdatedAt, &pt.LastUpdatedBy)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *PgxPayoutTransactionRepository) InsertPayoutTransaction(ctx context.Context, pt domain.PayoutTransaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO payout_transactions (`+selectPayoutFields+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		pt.PayoutTransactionID, pt.AccountID, pt.MemberID, pt.Amount, pt.CurrencyCode, pt.Memo, pt.Status, pt.StrategyKind,
		pt.OriginatedBookTransactionID, pt.ReversalBookTransactionID, pt.ReviewReason, pt.LastPolledAt,
		pt.RefundedFundingTransactionID, pt.CreatedAt, pt.CreatedBy, pt.LastUpdatedAt, pt.LastUpdatedBy)
	return mapError(err, "payout transaction "+pt.PayoutTransactionID)
}

func (r *PgxPayoutTransactionRepository) FindPayoutTransactionByID(ctx context.Context, id string) (*domain.PayoutTransaction, error) {
	pt, err := scanPayout(r.queryRow(ctx, `SELECT `+selectPayoutFields+` FROM payout_transactions WHERE payout_transaction_id = $1`, id))
	return pt, mapError(err, "payout transaction "+id)
}

func (r *PgxPayoutTransactionRepository) LockPayoutTransaction(ctx context.Context, id string) (*domain.PayoutTransaction, error) {
	pt, err := scanPayout(r.queryRow(ctx, `SELECT `+selectPayoutFields+` FROM payout_transactions WHERE payout_transaction_id = $1 FOR UPDATE`, id))
	return pt, mapError(err, "payout transaction "+id)
}

func (r *PgxPayoutTransactionRepository) UpdatePayoutTransaction(ctx context.Context, pt domain.PayoutTransaction) error {
	tag, err := r.exec(ctx, `
		UPDATE payout_transactions SET
			status = $2, review_reason = $3, originated_book_transaction_id = $4, reversal_book_transaction_id = $5,
			last_updated_at = $6, last_updated_by = $7
		WHERE payout_transaction_id = $1`,
		pt.PayoutTransactionID, pt.Status, pt.ReviewReason, pt.OriginatedBookTransactionID, pt.ReversalBookTransactionID,
		pt.LastUpdatedAt, pt.LastUpdatedBy)
	if err == nil && tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
	}
	return mapError(err, "payout transaction "+pt.PayoutTransactionID)
}

func (r *PgxPayoutTransactionRepository) ListPayoutTransactionIDsByStatus(ctx context.Context, statuses []domain.PayoutStatus, limit int) ([]string, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return r.listIDs(ctx, `
		SELECT payout_transaction_id FROM payout_transactions
		WHERE status = ANY($1)
		ORDER BY last_polled_at NULLS FIRST, created_at, payout_transaction_id
		LIMIT $2`, values, limit)
}

func (r *PgxPayoutTransactionRepository) MarkPayoutTransactionPolled(ctx context.Context, id string, at time.Time) error {
	tag, err := r.exec(ctx, `UPDATE payout_transactions SET last_polled_at = $2 WHERE payout_transaction_id = $1`, id, at)
	if err == nil && tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
	}
	return mapError(err, "payout transaction "+id)
}

func (r *PgxPayoutTransactionRepository) SumRefundsOfFunding(ctx context.Context, fundingID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.queryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payout_transactions
		WHERE refunded_funding_transaction_id = $1 AND status <> $2`, fundingID, domain.PayoutCanceled).Scan(&total)
	return total, mapError(err, "refunds of "+fundingID)
}

type PgxStrategyRepository struct {
	BaseRepository
}

var _ portsrepo.StrategyRepositoryFacade = (*PgxStrategyRepository)(nil)

func (r *PgxStrategyRepository) InsertStrategy(ctx context.Context, rec domain.StrategyRecord) error {
	_, err := r.exec(ctx, `
		INSERT INTO payment_strategies (strategy_id, owner_type, owner_id, kind, details, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.StrategyID, rec.OwnerType, rec.OwnerID, rec.Kind, rec.Details, rec.UpdatedAt)
	return mapError(err, "strategy of "+rec.OwnerID)
}

func (r *PgxStrategyRepository) FindStrategyByOwner(ctx context.Context, ownerType domain.StrategyOwner, ownerID string) (*domain.StrategyRecord, error) {
	var rec domain.StrategyRecord
	err := r.queryRow(ctx, `
		SELECT strategy_id, owner_type, owner_id, kind, details, updated_at
		FROM payment_strategies WHERE owner_type = $1 AND owner_id = $2`, ownerType, ownerID).Scan(
		&rec.StrategyID, &rec.OwnerType, &rec.OwnerID, &rec.Kind, &rec.Details, &rec.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "strategy of "+ownerID)
	}
	return &rec, nil
}

func (r *PgxStrategyRepository) UpdateStrategyDetails(ctx context.Context, strategyID string, details json.RawMessage, at time.Time) error {
	tag, err := r.exec(ctx, `UPDATE payment_strategies SET details = $2, updated_at = $3 WHERE strategy_id = $1`, strategyID, details, at)
	if err == nil && tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
	}
	return mapError(err, "strategy "+strategyID)
}

type PgxAuditLogRepository struct {
	BaseRepository
}

var _ portsrepo.AuditLogRepositoryFacade = (*PgxAuditLogRepository)(nil)

func (r *PgxAuditLogRepository) AppendAuditLog(ctx context.Context, e domain.AuditLog) error {
	_, err := r.exec(ctx, `
		INSERT INTO audit_logs (audit_log_id, subject_type, subject_id, event, from_state, to_state, succeeded, reason, actor_id, actor_kind, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.AuditLogID, e.SubjectType, e.SubjectID, e.Event, e.FromState, e.ToState, e.Succeeded, e.Reason, e.ActorID, e.ActorKind, e.At)
	return mapError(err, "audit log for "+e.SubjectID)
}

func (r *PgxAuditLogRepository) ListAuditLogs(ctx context.Context, subjectType, subjectID string) ([]domain.AuditLog, error) {
	rows, err := r.query(ctx, `
		SELECT audit_log_id, subject_type, subject_id, event, from_state, to_state, succeeded, reason, actor_id, actor_kind, at
		FROM audit_logs WHERE subject_type = $1 AND subject_id = $2
		ORDER BY at, audit_log_id`, subjectType, subjectID)
	if err != nil {
		return nil, mapError(err, "audit logs of "+subjectID)
	}
	defer rows.Close()
	out := []domain.AuditLog{}
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.AuditLogID, &e.SubjectType, &e.SubjectID, &e.Event, &e.FromState, &e.ToState,
			&e.Succeeded, &e.Reason, &e.ActorID, &e.ActorKind, &e.At); err != nil {
			return nil, mapError(err, "audit log row")
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err(), "audit logs of "+subjectID)
}

type PgxExternalEventRepository struct {
	BaseRepository
}

var _ portsrepo.ExternalEventRepositoryFacade = (*PgxExternalEventRepository)(nil)

func (r *PgxExternalEventRepository) InsertExternalEvent(ctx context.Context, e domain.ExternalEvent) (bool, error) {
	tag, err := r.exec(ctx, `
		INSERT INTO external_events (event_id, provider, provider_event_id, object_type, object_id, event_type, status, payload, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		e.EventID, e.Provider, e.ProviderEventID, e.ObjectType, e.ObjectID, e.EventType, e.Status, e.Payload, e.OccurredAt, e.ReceivedAt)
	if err != nil {
		return false, mapError(err, "external event "+e.ProviderEventID)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgxExternalEventRepository) LatestExternalEventForObject(ctx context.Context, provider, objectType, objectID string) (*domain.ExternalEvent, error) {
	var e domain.ExternalEvent
	err := r.queryRow(ctx, `
		SELECT event_id, provider, provider_event_id, object_type, object_id, event_type, status, payload, occurred_at, received_at
		FROM external_events
		WHERE provider = $1 AND object_type = $2 AND object_id = $3
		ORDER BY occurred_at DESC, received_at DESC
		LIMIT 1`, provider, objectType, objectID).Scan(
		&e.EventID, &e.Provider, &e.ProviderEventID, &e.ObjectType, &e.ObjectID, &e.EventType, &e.Status, &e.Payload, &e.OccurredAt, &e.ReceivedAt)
	if err != nil {
		return nil, mapError(err, "external event for "+objectID)
	}
	return &e, nil
}
