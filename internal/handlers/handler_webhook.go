package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/SscSPs/payment_ledger/internal/strategies"
	"github.com/gin-gonic/gin"
)

type webhookHandler struct {
	eventService portssvc.ExternalEventSvcFacade
}

// ManualStatusRequest is an operator's report on an off-platform payment.
type ManualStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=cleared settled canceled failed"`
}

func registerWebhookRoutes(r gin.IRouter, eventService portssvc.ExternalEventSvcFacade, handlers ...gin.HandlerFunc) {
	h := &webhookHandler{eventService: eventService}
	r.POST("/webhooks/:provider", append(handlers, h.receive)...)
}

func registerOffPlatformRoutes(rg *gin.RouterGroup, eventService portssvc.ExternalEventSvcFacade) {
	h := &webhookHandler{eventService: eventService}
	rg.POST("/off-platform/:reference/status", middleware.RequireAdmin(), h.reportManualStatus)
}

// receive godoc
// @Summary Receive a provider notification
// @Description Stores the event once. Redeliveries are acknowledged and ignored
// @Tags webhooks
// @Accept  json
// @Produce  json
// @Param   provider path string true "Provider name"
// @Param   event body dto.WebhookEventRequest true "Event"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]string "Invalid signature"
// @Router /webhooks/{provider} [post]
func (h *webhookHandler) receive(c *gin.Context) {
	provider := c.Param("provider")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("provider", provider))
	var req dto.WebhookEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}
	logger = logger.With(slog.String("event_id", req.EventID), slog.String("object_id", req.ObjectID))

	_, created, err := h.eventService.Ingest(c.Request.Context(), portssvc.IngestEventParams{
		Provider:        provider,
		ProviderEventID: req.EventID,
		ObjectType:      req.ObjectType,
		ObjectID:        req.ObjectID,
		EventType:       req.Type,
		Status:          req.Status,
		Payload:         req.Data,
		OccurredAt:      req.OccurredAt,
	})
	if err != nil {
		respondError(c, logger, err, "Failed to store event")
		return
	}
	if !created {
		logger.Info("Ignoring redelivered event")
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// reportManualStatus godoc
// @Summary Report the outcome of an off-platform payment
// @Tags webhooks
// @Accept  json
// @Produce  json
// @Param   reference path string true "Off-platform reference"
// @Param   status body handlers.ManualStatusRequest true "Status"
// @Success 200 {object} map[string]bool
// @Failure 403 {object} map[string]string "Admin access required"
// @Router /off-platform/{reference}/status [post]
func (h *webhookHandler) reportManualStatus(c *gin.Context) {
	reference := c.Param("reference")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("reference", reference))
	var req ManualStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	// one event per reference and status, so repeating a report is a no-op
	_, created, err := h.eventService.Ingest(c.Request.Context(), portssvc.IngestEventParams{
		Provider:        strategies.ProviderManual,
		ProviderEventID: "manual-" + reference + "-" + req.Status,
		ObjectType:      strategies.OffPlatformObjectType,
		ObjectID:        reference,
		EventType:       "manual.status",
		Status:          req.Status,
	})
	if err != nil {
		respondError(c, logger, err, "Failed to record status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}
