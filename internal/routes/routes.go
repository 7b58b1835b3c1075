package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/middleware"
)

type Deps struct {
	JWTSecret      []byte
	AllowedOrigins []string
	CartRateLimit  int64
	Limiter        middleware.HitCounter
	Metrics        *metrics.Metrics

	Products *handlers.ProductHandler
	Cart     *handlers.CartHandler
	CartWS   *handlers.CartWebSocket
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")

	products := api.Group("/products")
	products.GET("", d.Products.List)
	products.GET("/search", d.Products.Search)
	products.GET("/:id", d.Products.Get)

	// Stripe authenticates with its signature, not a bearer token
	api.POST("/payments/webhook", d.Payments.Webhook)

	auth := middleware.AuthRequired(d.JWTSecret)

	cart := api.Group("/cart", auth)
	cart.GET("", d.Cart.Get)
	cart.GET("/ws", d.CartWS.Serve)
	limited := cart.Group("", middleware.RateLimit(d.Limiter, "cart_ops", d.CartRateLimit, time.Minute))
	limited.POST("", d.Cart.Add)
	limited.DELETE("", d.Cart.Clear)
	limited.DELETE("/:productId", d.Cart.Remove)

	orders := api.Group("/orders", auth)
	orders.POST("", d.Orders.Checkout)
	orders.GET("", d.Orders.List)
	orders.GET("/:id", d.Orders.Get)
	orders.PATCH("/:id/cancel", d.Orders.Cancel)
	orders.GET("/:id/receipt", d.Orders.Receipt)
}
