package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// chargeHandler handles HTTP requests related to charges.
type chargeHandler struct {
	chargeService portssvc.ChargeSvcFacade
}

func registerChargeRoutes(rg *gin.RouterGroup, chargeService portssvc.ChargeSvcFacade) {
	h := &chargeHandler{chargeService: chargeService}

	charges := rg.Group("/charges")
	{
		charges.POST("", h.createCharge)
		charges.GET("/:chargeID", h.getCharge)
	}
}

// createCharge godoc
// @Summary Charge a member for a purchase
// @Description Splits the purchase across the member's ledgers, funding any remainder from their instrument
// @Tags charges
// @Accept  json
// @Produce  json
// @Param   charge body dto.CreateChargeRequest true "Charge details"
// @Success 201 {object} dto.ChargeResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 409 {object} map[string]string "Quoted amount no longer matches"
// @Router /charges [post]
func (h *chargeHandler) createCharge(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	logger = logger.With(slog.String("member_id", req.MemberID), slog.String("kind", req.Kind))
	logger.Info("Received request to create charge", slog.String("subtotal", req.UndiscountedSubtotal.String()))

	charge, err := h.chargeService.CreateCharge(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err, "Failed to create charge")
		return
	}

	logger.Info("Charge created successfully", slog.String("charge_id", charge.ChargeID))
	c.JSON(http.StatusCreated, dto.ToChargeResponse(charge))
}

// getCharge godoc
// @Summary Get a charge by ID
// @Tags charges
// @Produce  json
// @Param   chargeID path string true "Charge ID"
// @Success 200 {object} dto.ChargeResponse
// @Failure 404 {object} map[string]string "Charge not found"
// @Router /charges/{chargeID} [get]
func (h *chargeHandler) getCharge(c *gin.Context) {
	chargeID := c.Param("chargeID")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("charge_id", chargeID))

	charge, err := h.chargeService.GetCharge(c.Request.Context(), chargeID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve charge")
		return
	}
	c.JSON(http.StatusOK, dto.ToChargeResponse(charge))
}
