package pgsql

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements portsrepo.Store on a pgx pool. Stores handed to InTx callbacks are bound to the
// transaction.
type Store struct {
	pool *pgxpool.Pool
	db   Querier
	tx   pgx.Tx
}

// NewStore creates a store on the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

var _ portsrepo.Store = (*Store)(nil)

func (s *Store) base() BaseRepository { return BaseRepository{DB: s.db} }

func (s *Store) PaymentAccounts() portsrepo.PaymentAccountRepositoryFacade {
	return &PgxPaymentAccountRepository{BaseRepository: s.base()}
}

func (s *Store) Ledgers() portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{BaseRepository: s.base()}
}

func (s *Store) BookTransactions() portsrepo.BookTransactionRepositoryFacade {
	return &PgxBookTransactionRepository{BaseRepository: s.base()}
}

func (s *Store) Categories() portsrepo.CategoryRepositoryFacade {
	return &PgxCategoryRepository{BaseRepository: s.base()}
}

func (s *Store) Instruments() portsrepo.InstrumentRepositoryFacade {
	return &PgxInstrumentRepository{BaseRepository: s.base()}
}

func (s *Store) Charges() portsrepo.ChargeRepositoryFacade {
	return &PgxChargeRepository{BaseRepository: s.base()}
}

func (s *Store) Triggers() portsrepo.TriggerRepositoryFacade {
	return &PgxTriggerRepository{BaseRepository: s.base()}
}

func (s *Store) FundingTransactions() portsrepo.FundingTransactionRepositoryFacade {
	return &PgxFundingTransactionRepository{BaseRepository: s.base()}
}

func (s *Store) PayoutTransactions() portsrepo.PayoutTransactionRepositoryFacade {
	return &PgxPayoutTransactionRepository{BaseRepository: s.base()}
}

func (s *Store) Strategies() portsrepo.StrategyRepositoryFacade {
	return &PgxStrategyRepository{BaseRepository: s.base()}
}

func (s *Store) AuditLogs() portsrepo.AuditLogRepositoryFacade {
	return &PgxAuditLogRepository{BaseRepository: s.base()}
}

func (s *Store) ExternalEvents() portsrepo.ExternalEventRepositoryFacade {
	return &PgxExternalEventRepository{BaseRepository: s.base()}
}

// InTx begins a transaction, runs fn, and commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx portsrepo.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	// Will be ignored if the transaction is committed successfully
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{pool: s.pool, db: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}
