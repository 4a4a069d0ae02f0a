package repositories

import "context"

// Store exposes every repository bound to one connection or transaction.
type Store interface {
	PaymentAccounts() PaymentAccountRepositoryFacade
	Ledgers() LedgerRepositoryFacade
	BookTransactions() BookTransactionRepositoryFacade
	Categories() CategoryRepositoryFacade
	Instruments() InstrumentRepositoryFacade
	Charges() ChargeRepositoryFacade
	Triggers() TriggerRepositoryFacade
	FundingTransactions() FundingTransactionRepositoryFacade
	PayoutTransactions() PayoutTransactionRepositoryFacade
	Strategies() StrategyRepositoryFacade
	AuditLogs() AuditLogRepositoryFacade
	ExternalEvents() ExternalEventRepositoryFacade

	// InTx runs fn inside a database transaction, committing when fn returns nil and rolling back
	// otherwise. Calling InTx on a store already bound to a transaction joins it.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
