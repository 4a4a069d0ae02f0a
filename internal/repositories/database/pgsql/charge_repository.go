package pgsql

import (
	"context"
	"time"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PgxChargeRepository struct {
	BaseRepository
}

var _ portsrepo.ChargeRepositoryFacade = (*PgxChargeRepository)(nil)

func (r *PgxChargeRepository) InsertCharge(ctx context.Context, c domain.Charge) error {
	_, err := r.exec(ctx, `
		INSERT INTO charges (charge_id, kind, member_id, account_id, undiscounted_subtotal, currency_code,
			category_slug, apply_at, funding_transaction_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ChargeID, c.Kind, c.MemberID, c.AccountID, c.UndiscountedSubtotal, c.CurrencyCode,
		c.CategorySlug, c.ApplyAt, c.FundingTransactionID, c.CreatedAt, c.CreatedBy)
	return mapError(err, "charge "+c.ChargeID)
}

func (r *PgxChargeRepository) InsertChargeLineItem(ctx context.Context, li domain.ChargeLineItem) error {
	var selfAmount decimal.NullDecimal
	var selfMemo *domain.TranslatedText
	if li.SelfData != nil {
		selfAmount = decimal.NewNullDecimal(li.SelfData.Amount)
		selfMemo = &li.SelfData.Memo
	}
	_, err := r.exec(ctx, `
		INSERT INTO charge_line_items (line_item_id, charge_id, book_transaction_id, self_amount, self_memo, position)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		li.LineItemID, li.ChargeID, li.BookTransactionID, selfAmount, selfMemo, li.Position)
	return mapError(err, "charge line item "+li.LineItemID)
}

func (r *PgxChargeRepository) AttachFundingTransaction(ctx context.Context, chargeID, fundingTransactionID string) error {
	tag, err := r.exec(ctx, `UPDATE charges SET funding_transaction_id = $2 WHERE charge_id = $1`, chargeID, fundingTransactionID)
	if err != nil {
		return mapError(err, "charge "+chargeID)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "charge "+chargeID)
	}
	return nil
}

func (r *PgxChargeRepository) FindChargeByID(ctx context.Context, chargeID string) (*domain.Charge, error) {
	var c domain.Charge
	err := r.queryRow(ctx, `
		SELECT charge_id, kind, member_id, account_id, undiscounted_subtotal, currency_code,
			category_slug, apply_at, funding_transaction_id, created_at, created_by
		FROM charges WHERE charge_id = $1`, chargeID).Scan(
		&c.ChargeID, &c.Kind, &c.MemberID, &c.AccountID, &c.UndiscountedSubtotal, &c.CurrencyCode,
		&c.CategorySlug, &c.ApplyAt, &c.FundingTransactionID, &c.CreatedAt, &c.CreatedBy)
	if err != nil {
		return nil, mapError(err, "charge "+chargeID)
	}

	rows, err := r.query(ctx, `
		SELECT line_item_id, charge_id, book_transaction_id, self_amount, self_memo, position
		FROM charge_line_items WHERE charge_id = $1 ORDER BY position`, chargeID)
	if err != nil {
		return nil, mapError(err, "line items of charge "+chargeID)
	}
	defer rows.Close()
	for rows.Next() {
		var li domain.ChargeLineItem
		var selfAmount decimal.NullDecimal
		var selfMemo *domain.TranslatedText
		if err := rows.Scan(&li.LineItemID, &li.ChargeID, &li.BookTransactionID, &selfAmount, &selfMemo, &li.Position); err != nil {
			return nil, mapError(err, "line item row")
		}
		if selfAmount.Valid {
			li.SelfData = &domain.ChargeLineItemSelfData{Amount: selfAmount.Decimal}
			if selfMemo != nil {
				li.SelfData.Memo = *selfMemo
			}
		}
		c.LineItems = append(c.LineItems, li)
	}
	return &c, mapError(rows.Err(), "line items of charge "+chargeID)
}

type PgxTriggerRepository struct {
	BaseRepository
}

var _ portsrepo.TriggerRepositoryFacade = (*PgxTriggerRepository)(nil)

const selectTriggerFields = `
	trigger_id, label, active_from, active_until, match_multiplier, maximum_cumulative_subsidy, memo,
	originating_ledger_id, receiving_ledger_name, receiving_ledger_contribution_text, receiving_category_slug, priority`

func (r *PgxTriggerRepository) ListActiveTriggers(ctx context.Context, at time.Time) ([]domain.Trigger, error) {
	rows, err := r.query(ctx, `
		SELECT `+selectTriggerFields+` FROM triggers
		WHERE active_from <= $1 AND (active_until IS NULL OR active_until > $1)
		ORDER BY priority, trigger_id`, at)
	if err != nil {
		return nil, mapError(err, "active triggers")
	}
	defer rows.Close()
	out := []domain.Trigger{}
	for rows.Next() {
		var t domain.Trigger
		var until *time.Time
		err := rows.Scan(&t.TriggerID, &t.Label, &t.ActiveFrom, &until, &t.MatchMultiplier, &t.MaximumCumulativeSubsidy, &t.Memo,
			&t.OriginatingLedgerID, &t.ReceivingLedgerName, &t.ReceivingLedgerContributionText, &t.ReceivingCategorySlug, &t.Priority)
		if err != nil {
			return nil, mapError(err, "trigger row")
		}
		if until != nil {
			t.ActiveUntil = *until
		}
		out = append(out, t)
	}
	return out, mapError(rows.Err(), "active triggers")
}

func (r *PgxTriggerRepository) SaveTrigger(ctx context.Context, t domain.Trigger) error {
	var until *time.Time
	if !t.ActiveUntil.IsZero() {
		until = &t.ActiveUntil
	}
	_, err := r.exec(ctx, `
		INSERT INTO triggers (`+selectTriggerFields+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.TriggerID, t.Label, t.ActiveFrom, until, t.MatchMultiplier, t.MaximumCumulativeSubsidy, t.Memo,
		t.OriginatingLedgerID, t.ReceivingLedgerName, t.ReceivingLedgerContributionText, t.ReceivingCategorySlug, t.Priority)
	return mapError(err, "trigger "+t.TriggerID)
}

func (r *PgxTriggerRepository) FindTriggerExecution(ctx context.Context, triggerID, ledgerID, eventKey string) (*domain.TriggerExecution, error) {
	var e domain.TriggerExecution
	err := r.queryRow(ctx, `
		SELECT execution_id, trigger_id, receiving_ledger_id, book_transaction_id, event_key, created_at
		FROM trigger_executions
		WHERE trigger_id = $1 AND receiving_ledger_id = $2 AND event_key = $3`, triggerID, ledgerID, eventKey).Scan(
		&e.ExecutionID, &e.TriggerID, &e.ReceivingLedgerID, &e.BookTransactionID, &e.EventKey, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err, "execution of trigger "+triggerID)
	}
	return &e, nil
}

func (r *PgxTriggerRepository) InsertTriggerExecution(ctx context.Context, e domain.TriggerExecution) error {
	_, err := r.exec(ctx, `
		INSERT INTO trigger_executions (execution_id, trigger_id, receiving_ledger_id, book_transaction_id, event_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ExecutionID, e.TriggerID, e.ReceivingLedgerID, e.BookTransactionID, e.EventKey, e.CreatedAt)
	return mapError(err, "execution of trigger "+e.TriggerID)
}

func (r *PgxTriggerRepository) SumSubsidyApplied(ctx context.Context, triggerID, ledgerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.queryRow(ctx, `
		SELECT COALESCE(SUM(bt.amount), 0)
		FROM trigger_executions te
		JOIN book_transactions bt ON bt.book_transaction_id = te.book_transaction_id
		WHERE te.trigger_id = $1 AND te.receiving_ledger_id = $2`, triggerID, ledgerID).Scan(&total)
	return total, mapError(err, "subsidy applied by trigger "+triggerID)
}

type PgxInstrumentRepository struct {
	BaseRepository
}

var _ portsrepo.InstrumentRepositoryFacade = (*PgxInstrumentRepository)(nil)

const selectInstrumentFields = `instrument_id, member_id, kind, external_id, verified, deleted, is_default, expires_at`

func scanInstrument(row pgx.Row) (*domain.Instrument, error) {
	var i domain.Instrument
	if err := row.Scan(&i.InstrumentID, &i.MemberID, &i.Kind, &i.ExternalID, &i.Verified, &i.Deleted, &i.IsDefault, &i.ExpiresAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *PgxInstrumentRepository) FindInstrumentByID(ctx context.Context, instrumentID string) (*domain.Instrument, error) {
	i, err := scanInstrument(r.queryRow(ctx, `SELECT `+selectInstrumentFields+` FROM instruments WHERE instrument_id = $1`, instrumentID))
	return i, mapError(err, "instrument "+instrumentID)
}

func (r *PgxInstrumentRepository) FindDefaultInstrument(ctx context.Context, memberID string, kind domain.InstrumentKind) (*domain.Instrument, error) {
	i, err := scanInstrument(r.queryRow(ctx, `
		SELECT `+selectInstrumentFields+` FROM instruments
		WHERE member_id = $1 AND kind = $2 AND is_default AND NOT deleted`, memberID, kind))
	return i, mapError(err, "default instrument of member "+memberID)
}

func (r *PgxInstrumentRepository) SaveInstrument(ctx context.Context, i domain.Instrument) error {
	_, err := r.exec(ctx, `
		INSERT INTO instruments (`+selectInstrumentFields+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (instrument_id) DO UPDATE SET
			external_id = EXCLUDED.external_id, verified = EXCLUDED.verified, deleted = EXCLUDED.deleted,
			is_default = EXCLUDED.is_default, expires_at = EXCLUDED.expires_at`,
		i.InstrumentID, i.MemberID, i.Kind, i.ExternalID, i.Verified, i.Deleted, i.IsDefault, i.ExpiresAt)
	return mapError(err, "instrument "+i.InstrumentID)
}
