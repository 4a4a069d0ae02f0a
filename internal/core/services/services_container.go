package services

import (
	"time"

	portsrepo "github.com/SscSPs/payment_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/eligibility"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/SscSPs/payment_ledger/internal/strategies"
)

// Dependencies holds the adapters the services are built on.
type Dependencies struct {
	Store    portsrepo.Store
	Oracle   eligibility.Oracle
	Provider strategies.Provider
	// Clock overrides time.Now in every service when set.
	Clock func() time.Time
}

// Services exposes the concrete services to in-process callers such as the worker. Handlers go
// through the facades in portssvc.ServiceContainer.
type Services struct {
	Ledger         *LedgerService
	Planner        *TriggerPlanner
	Calculator     *ContributionCalculator
	Charger        *Charger
	Charges        *ChargeService
	Funding        *FundingService
	Payout         *PayoutService
	ExternalEvents *ExternalEventService
}

// NewServices creates every service with properly initialized dependencies.
func NewServices(cfg *config.Config, deps Dependencies) *Services {
	oracle := deps.Oracle
	if oracle == nil {
		oracle = eligibility.AllowAll{}
	}
	registry := strategies.NewRegistry(deps.Provider)

	ledgers := NewLedgerService(deps.Store, cfg.SettlementCurrency)
	planner := NewTriggerPlanner(ledgers, oracle)
	calculator := NewContributionCalculator(ledgers, planner, oracle)
	funding := NewFundingService(deps.Store, ledgers, registry)
	payout := NewPayoutService(deps.Store, ledgers, registry)
	charger := NewCharger(deps.Store, ledgers, planner)
	events := NewExternalEventService(deps.Store)

	if deps.Clock != nil {
		for _, base := range []*BaseService{&ledgers.BaseService, &planner.BaseService, &calculator.BaseService, &funding.BaseService, &payout.BaseService, &charger.BaseService, &events.BaseService} {
			base.Now = deps.Clock
		}
	}

	return &Services{
		Ledger:     ledgers,
		Planner:    planner,
		Calculator: calculator,
		Charger:    charger,
		Charges: NewChargeService(deps.Store, charger,
			NewCheckoutCharge(calculator, funding),
			NewTripCharge(calculator, funding),
			NewOffPlatformCharge(calculator, funding),
		),
		Funding:        funding,
		Payout:         payout,
		ExternalEvents: events,
	}
}

// NewServiceContainer creates the facade container the handlers use.
func NewServiceContainer(svcs *Services) *portssvc.ServiceContainer {
	return &portssvc.ServiceContainer{
		Ledger:         svcs.Ledger,
		Charges:        svcs.Charges,
		Funding:        svcs.Funding,
		Payout:         svcs.Payout,
		ExternalEvents: svcs.ExternalEvents,
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.LedgerSvcFacade        = (*LedgerService)(nil)
	_ portssvc.ChargeSvcFacade        = (*ChargeService)(nil)
	_ portssvc.FundingSvcFacade       = (*FundingService)(nil)
	_ portssvc.PayoutSvcFacade        = (*PayoutService)(nil)
	_ portssvc.ExternalEventSvcFacade = (*ExternalEventService)(nil)
)
