package httpserver

import (
	"net/http"

	"kiranakart-be/internal/cart"
	"kiranakart-be/internal/utils"

	"github.com/gin-gonic/gin"
)

type cartHandler struct {
	cart cart.Service
}

type cartItemInput struct {
	ProductID uint    `json:"productId" binding:"required"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity" binding:"required"`
}

func (h *cartHandler) get(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	lines, err := h.cart.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var total int64
	for _, l := range lines {
		total += l.LineTotalPaise
	}
	c.JSON(http.StatusOK, gin.H{"items": lines, "subtotal": total})
}

func (h *cartHandler) addItem(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	var in cartItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.cart.AddItem(ctx, userID, in.ProductID, in.VariantID, in.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *cartHandler) updateItem(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	productID, err := utils.ToUint(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var in struct {
		VariantID *string `json:"variantId,omitempty"`
		Quantity  int     `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.cart.UpdateQuantity(ctx, userID, productID, in.VariantID, in.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *cartHandler) removeItem(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	productID, err := utils.ToUint(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var variantID *string
	if v := c.Query("variantId"); v != "" {
		variantID = &v
	}

	if err := h.cart.RemoveItem(ctx, userID, productID, variantID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *cartHandler) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIDFromContext(ctx)

	var in cart.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	o, redirect, err := h.cart.Checkout(ctx, userID, in)
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
