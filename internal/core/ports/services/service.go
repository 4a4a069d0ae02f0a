package services

// ServiceContainer holds instances of all the application services.
// It is the entry point the handlers and the worker use.
type ServiceContainer struct {
	Ledger         LedgerSvcFacade
	Charges        ChargeSvcFacade
	Funding        FundingSvcFacade
	Payout         PayoutSvcFacade
	ExternalEvents ExternalEventSvcFacade
}
