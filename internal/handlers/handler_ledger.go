package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/payment_ledger/internal/core/ports/services"
	"github.com/SscSPs/payment_ledger/internal/dto"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func registerLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := &ledgerHandler{ledgerService: ledgerService}

	ledgers := rg.Group("/ledgers/:ledgerID")
	{
		ledgers.GET("/balance", h.getBalance)
		ledgers.GET("/book-transactions", h.listBookTransactions)
	}
}

// getBalance godoc
// @Summary Get a ledger balance
// @Description Returns the ledger with its balance derived from book transactions
// @Tags ledgers
// @Produce  json
// @Param   ledgerID path string true "Ledger ID"
// @Success 200 {object} dto.LedgerBalanceResponse
// @Failure 404 {object} map[string]string "Ledger not found"
// @Router /ledgers/{ledgerID}/balance [get]
func (h *ledgerHandler) getBalance(c *gin.Context) {
	ledgerID := c.Param("ledgerID")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("ledger_id", ledgerID))

	ledger, balance, err := h.ledgerService.LedgerBalance(c.Request.Context(), ledgerID)
	if err != nil {
		respondError(c, logger, err, "Failed to get ledger balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToLedgerBalanceResponse(ledger, balance))
}

// listBookTransactions godoc
// @Summary List book transactions of a ledger
// @Description Returns every book transaction touching the ledger, oldest first
// @Tags ledgers
// @Produce  json
// @Param   ledgerID path string true "Ledger ID"
// @Success 200 {array} dto.BookTransactionResponse
// @Router /ledgers/{ledgerID}/book-transactions [get]
func (h *ledgerHandler) listBookTransactions(c *gin.Context) {
	ledgerID := c.Param("ledgerID")
	logger := middleware.GetLoggerFromContext(c).With(slog.String("ledger_id", ledgerID))

	bts, err := h.ledgerService.ListBookTransactions(c.Request.Context(), ledgerID)
	if err != nil {
		respondError(c, logger, err, "Failed to list book transactions")
		return
	}
	c.JSON(http.StatusOK, dto.ToListBookTransactionResponse(bts))
}
