package handlers

import (
	"errors"
	"net/http"

	"agropos-system/internal/errs"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// respondError maps service error kinds to status codes. Anything
// unrecognized is a plumbing failure: logged in full, reported generically.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var stockErr *errs.InsufficientStockError
	var validationErr *errs.ValidationError
	var paymentErr *errs.PaymentInitiationError

	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "insufficient stock",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, errs.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &paymentErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment initiation failed, please try again"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
