package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto the HTTP status the API reports for it.
func statusFor(err error) int {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrPredictionMismatch):
		return http.StatusConflict
	case apperrors.IsRecoverable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &appErr):
		return appErr.Code
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err at a level matching its status and writes the error body.
// Server side failures hide their cause behind fallback.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback, slog.String("error", err.Error()), slog.Int("status", status))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	logger.Warn(fallback, slog.String("error", err.Error()), slog.Int("status", status))
	c.JSON(status, gin.H{"error": clientMessage(err)})
}

// clientMessage is the text a client sees for a 4xx error. A prediction mismatch only says to retry;
// the predicted and quoted amounts stay in the logs.
func clientMessage(err error) string {
	if errors.Is(err, apperrors.ErrPredictionMismatch) {
		return apperrors.ErrPredictionMismatch.Error()
	}
	return err.Error()
}

func bindError(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Failed to bind request body", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
}
