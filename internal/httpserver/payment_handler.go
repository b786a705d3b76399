package httpserver

import (
	"net/http"

	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/utils"

	"github.com/gin-gonic/gin"
)

type paymentHandler struct {
	payments payment.Repository
}

// status returns the payment snapshot for a transaction the caller owns.
// Other users' transactions come back 404, not 403, so their existence does
// not leak.
func (h *paymentHandler) status(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	txnID := c.Param("transactionID")
	if txnID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing transaction id"})
		return
	}

	p, err := h.payments.StatusForUser(ctx, txnID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}
