package handlers

import (
	"context"
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// settlementHandler serves funding and payout transactions. Review actions are for operators only.
type settlementHandler struct {
	fundingService portssvc.FundingSvcFacade
	payoutService  portssvc.PayoutSvcFacade
}

func registerSettlementRoutes(rg *gin.RouterGroup, fundingService portssvc.FundingSvcFacade, payoutService portssvc.PayoutSvcFacade) {
	h := &settlementHandler{fundingService: fundingService, payoutService: payoutService}
	admin := middleware.RequireAdmin()

	funding := rg.Group("/funding-transactions/:id")
	{
		funding.GET("", h.getFunding)
		funding.POST("/cancel", admin, h.reviewAction(fundingService.Cancel, "cancel"))
		funding.POST("/resume", admin, h.reviewAction(fundingService.Resume, "resume"))
		funding.POST("/refund", admin, h.refundFunding)
	}

	payouts := rg.Group("/payouts")
	{
		payouts.POST("", h.createPayout)
		payouts.GET("/:id", h.getPayout)
		payouts.POST("/:id/cancel", admin, h.reviewAction(payoutService.Cancel, "cancel"))
		payouts.POST("/:id/resume", admin, h.reviewAction(payoutService.Resume, "resume"))
	}
}

// getFunding godoc
// @Summary Get a funding transaction
// @Tags settlement
// @Produce  json
// @Param   id path string true "Funding transaction ID"
// @Success 200 {object} dto.SettlementResponse
// @Failure 404 {object} map[string]string "Funding transaction not found"
// @Router /funding-transactions/{id} [get]
func (h *settlementHandler) getFunding(c *gin.Context) {
	id := c.Param("id")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("funding_transaction_id", id))

	ft, err := h.fundingService.GetFundingTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve funding transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToFundingResponse(ft))
}

// getPayout godoc
// @Summary Get a payout transaction
// @Tags settlement
// @Produce  json
// @Param   id path string true "Payout transaction ID"
// @Success 200 {object} dto.SettlementResponse
// @Failure 404 {object} map[string]string "Payout not found"
// @Router /payouts/{id} [get]
func (h *settlementHandler) getPayout(c *gin.Context) {
	id := c.Param("id")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("payout_transaction_id", id))

	pt, err := h.payoutService.GetPayoutTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve payout")
		return
	}
	c.JSON(http.StatusOK, dto.ToPayoutResponse(pt))
}

// createPayout godoc
// @Summary Withdraw cash to a member
// @Description Debits the member's cash ledger and starts sending the funds
// @Tags settlement
// @Accept  json
// @Produce  json
// @Param   payout body dto.CreatePayoutRequest true "Payout details"
// @Success 201 {object} dto.SettlementResponse
// @Failure 400 {object} map[string]string "Invalid input or insufficient cash"
// @Router /payouts [post]
func (h *settlementHandler) createPayout(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}
	logger = logger.With(slog.String("member_id", req.MemberID), slog.String("kind", string(req.Kind)))

	pt, err := h.payoutService.CreatePayout(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger, err, "Failed to create payout")
		return
	}

	logger.Info("Payout created", slog.String("payout_transaction_id", pt.PayoutTransactionID))
	c.JSON(http.StatusCreated, dto.ToPayoutResponse(pt))
}

// refundFunding godoc
// @Summary Refund a cleared card funding transaction
// @Tags settlement
// @Accept  json
// @Produce  json
// @Param   id path string true "Funding transaction ID"
// @Param   refund body dto.RefundFundingRequest true "Refund details"
// @Success 201 {object} dto.SettlementResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 409 {object} map[string]string "Funding transaction has not cleared"
// @Router /funding-transactions/{id}/refund [post]
func (h *settlementHandler) refundFunding(c *gin.Context) {
	id := c.Param("id")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("funding_transaction_id", id))
	var req dto.RefundFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	pt, err := h.payoutService.RequestRefund(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, logger, err, "Failed to request refund")
		return
	}

	logger.Info("Refund requested", slog.String("payout_transaction_id", pt.PayoutTransactionID))
	c.JSON(http.StatusCreated, dto.ToPayoutResponse(pt))
}

// reviewAction builds the handler for an operator cancel or resume. Both answer with 204.
func (h *settlementHandler) reviewAction(action func(ctx context.Context, id, reason string) error, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		logger := middleware.GetLoggerFromContext(c).With(slog.String("transaction_id", id), slog.String("action", name))
		var req dto.ReviewActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, logger, err)
			return
		}

		if err := action(c.Request.Context(), id, req.Reason); err != nil {
			respondError(c, logger, err, "Failed to "+name+" transaction")
			return
		}

		logger.Info("Review action applied", slog.String("reason", req.Reason))
		c.Status(http.StatusNoContent)
	}
}
