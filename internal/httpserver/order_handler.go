package httpserver

import (
	"net/http"

	"kiranakart-be/internal/order"
	"kiranakart-be/internal/utils"

	"github.com/gin-gonic/gin"
)

type orderHandler struct {
	orders order.Service
}

func (h *orderHandler) create(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	var in order.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	o, redirect, err := h.orders.CreateOrder(ctx, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"order": o}
	if redirect != nil {
		resp["redirect"] = redirect
	}
	c.JSON(http.StatusCreated, resp)
}

// quote prices a cart without creating anything, so the storefront can show
// the full fee breakdown before the buyer commits.
func (h *orderHandler) quote(c *gin.Context) {
	ctx := c.Request.Context()

	var in order.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	priced, err := h.orders.Quote(ctx, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": priced})
}

func (h *orderHandler) list(c *gin.Context) {
	ctx := c.Request.Context()

	var filter order.Filter
	if s := c.Query("status"); s != "" {
		status := order.OrderStatus(s)
		filter.Status = &status
	}
	if from := c.Query("from"); from != "" {
		filter.DateFrom = &from
	}
	if to := c.Query("to"); to != "" {
		filter.DateTo = &to
	}

	limit := int32(queryInt(c, "limit", 20))
	page := int32(queryInt(c, "page", 1))

	orders, err := h.orders.GetOrders(ctx, &filter, limit, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *orderHandler) detail(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	orderID, err := utils.ToUint(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	o, err := h.orders.GetOrderDetail(ctx, orderID, userID, utils.IsAdmin(ctx))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *orderHandler) cancel(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	orderID, err := utils.ToUint(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	o, err := h.orders.CancelOrder(ctx, orderID, userID, utils.IsAdmin(ctx))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *orderHandler) updateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, err := utils.ToUint(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var in struct {
		Status order.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	o, err := h.orders.UpdateStatus(ctx, orderID, in.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
