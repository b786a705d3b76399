package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"kiranakart-be/internal/cart"
	"kiranakart-be/internal/inventory"
	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/order"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/pricing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError translates domain errors into HTTP statuses. Anything not in
// the taxonomy is a 500 with a generic body; the detail stays in the log.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrUnknownProduct),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrStockExceeded),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, order.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		logger.FromCtx(c.Request.Context()).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
