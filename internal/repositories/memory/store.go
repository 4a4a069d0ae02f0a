// Package memory is a transactional in-process implementation of the repository ports.
// A transaction holds a store wide mutex and restores a snapshot when it fails, so every
// transaction is serializable and row locks are implicit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
)

type data struct {
	accounts    map[string]domain.PaymentAccount
	ledgers     map[string]domain.Ledger
	bookTxs     []domain.BookTransaction
	categories  map[string]domain.VendorServiceCategory
	instruments map[string]domain.Instrument
	charges     map[string]domain.Charge
	lineItems   []domain.ChargeLineItem
	triggers    map[string]domain.Trigger
	executions  []domain.TriggerExecution
	funding     map[string]domain.FundingTransaction
	payouts     map[string]domain.PayoutTransaction
	strategies  map[string]domain.StrategyRecord
	auditLogs   []domain.AuditLog
	events      []domain.ExternalEvent
}

func newData() *data {
	return &data{
		accounts:    map[string]domain.PaymentAccount{},
		ledgers:     map[string]domain.Ledger{},
		categories:  map[string]domain.VendorServiceCategory{},
		instruments: map[string]domain.Instrument{},
		charges:     map[string]domain.Charge{},
		triggers:    map[string]domain.Trigger{},
		funding:     map[string]domain.FundingTransaction{},
		payouts:     map[string]domain.PayoutTransaction{},
		strategies:  map[string]domain.StrategyRecord{},
	}
}

func (d *data) clone() *data {
	return &data{
		accounts:    maps.Clone(d.accounts),
		ledgers:     maps.Clone(d.ledgers),
		bookTxs:     slices.Clone(d.bookTxs),
		categories:  maps.Clone(d.categories),
		instruments: maps.Clone(d.instruments),
		charges:     maps.Clone(d.charges),
		lineItems:   slices.Clone(d.lineItems),
		triggers:    maps.Clone(d.triggers),
		executions:  slices.Clone(d.executions),
		funding:     maps.Clone(d.funding),
		payouts:     maps.Clone(d.payouts),
		strategies:  maps.Clone(d.strategies),
		auditLogs:   slices.Clone(d.auditLogs),
		events:      slices.Clone(d.events),
	}
}

// Store implements portsrepo.Store in memory.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

var _ portsrepo.Store = (*Store)(nil)

func (s *Store) PaymentAccounts() portsrepo.PaymentAccountRepositoryFacade { return s }
func (s *Store) Ledgers() portsrepo.LedgerRepositoryFacade { return s }
func (s *Store) BookTransactions() portsrepo.BookTransactionRepositoryFacade { return s }
func (s *Store) Categories() portsrepo.CategoryRepositoryFacade { return s }
func (s *Store) Instruments() portsrepo.InstrumentRepositoryFacade { return s }
func (s *Store) Charges() portsrepo.ChargeRepositoryFacade { return s }
func (s *Store) Triggers() portsrepo.TriggerRepositoryFacade { return s }
func (s *Store) FundingTransactions() portsrepo.FundingTransactionRepositoryFacade { return s }
func (s *Store) PayoutTransactions() portsrepo.PayoutTransactionRepositoryFacade { return s }
func (s *Store) Strategies() portsrepo.StrategyRepositoryFacade { return s }
func (s *Store) AuditLogs() portsrepo.AuditLogRepositoryFacade { return s }
func (s *Store) ExternalEvents() portsrepo.ExternalEventRepositoryFacade { return s }

// InTx runs fn with the store locked and rolls every change back when fn fails or panics.
func (s *Store) InTx(ctx context.Context, fn func(tx portsrepo.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, inTx: true}
	defer func() {
		if p := recover(); p != nil {
			*s.d = *snapshot
			panic(p)
		}
		if err != nil {
			*s.d = *snapshot
		}
	}()
	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(tx)
}

// with runs fn against the data, taking the lock unless the store is bound to a transaction.
func (s *Store) with(fn func(d *data) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.d)
}
