package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
)

type OrderHandler struct {
	svc *services.CheckoutService
}

func NewOrderHandler(svc *services.CheckoutService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type checkoutRequest struct {
	LineItems []models.LineItem `json:"line_items"`
}

// POST /api/orders
func (h *OrderHandler) Checkout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	res, err := h.svc.Checkout(c.Request.Context(), uid, req.LineItems)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orders, err := h.svc.GetOrders(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PATCH /api/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	order, err := h.svc.CancelOrder(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GET /api/orders/:id/receipt
func (h *OrderHandler) Receipt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	url, err := h.svc.ReceiptURL(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
