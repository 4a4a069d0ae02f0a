package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/SscSPs/payment_ledger/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
// webhookLimiter may be nil, which leaves the webhook endpoint unthrottled.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	webhookLimiter *limiter.Limiter,
) {
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Providers call in directly, so webhooks sit outside the actor-authenticated group
	var webhookChain []gin.HandlerFunc
	if webhookLimiter != nil {
		webhookChain = append(webhookChain, middleware.RateLimit(webhookLimiter))
	}
	webhookChain = append(webhookChain, middleware.WebhookSignature(cfg.WebhookSecret))
	registerWebhookRoutes(r, services.ExternalEvents, webhookChain...)

	setupAPIV1Routes(r, services)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(r *gin.Engine, services *portssvc.ServiceContainer) {
	v1 := r.Group("/api/v1", middleware.ActorMiddleware())

	registerLedgerRoutes(v1, services.Ledger)
	registerChargeRoutes(v1, services.Charges)
	registerSettlementRoutes(v1, services.Funding, services.Payout)
	registerOffPlatformRoutes(v1, services.ExternalEvents)
}
