package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/logger"
)

// respondError maps a service error onto a status code. Internal failures are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		logger.FromContext(c.Request.Context(), nil).Error("payment provider error", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider error"})
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.KindInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case apperr.KindUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		logger.FromContext(c.Request.Context(), nil).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// userID reads the id AuthRequired put on the context.
func userID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	if id == "" {
		respondError(c, apperr.Unauthorized("not authenticated"))
		return "", false
	}
	return id, true
}
