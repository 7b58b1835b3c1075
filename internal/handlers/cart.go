package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
)

type CartHandler struct {
	svc *services.CartService
}

func NewCartHandler(svc *services.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

type cartResponse struct {
	UserID   string            `json:"user_id"`
	Items    []models.CartItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal int64             `json:"subtotal"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	return cartResponse{
		UserID:   cart.UserID,
		Items:    cart.Items,
		Count:    cart.Count(),
		Subtotal: cart.Subtotal(),
	}
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	cart, err := h.svc.GetCart(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
	Color     string `json:"color"`
}

// POST /api/cart
func (h *CartHandler) Add(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	cart, err := h.svc.AddItem(c.Request.Context(), uid, req.ProductID, qty, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

// DELETE /api/cart/:productId
// Without ?color every variant of the product is removed; ?color= removes the no-variant line.
func (h *CartHandler) Remove(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var color *string
	if v, present := c.GetQuery("color"); present {
		color = &v
	}

	cart, err := h.svc.RemoveItem(c.Request.Context(), uid, c.Param("productId"), color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	cart, err := h.svc.ClearCart(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}
