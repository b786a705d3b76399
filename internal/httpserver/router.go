package httpserver

import (
	"database/sql"
	"time"

	"kiranakart-be/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func buildRouter(db *sql.DB, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging())

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", metricsHandler(deps.Stats))

	// gateway results arrive unauthenticated; the payload hash is the
	// authentication, the strict per-IP limiter the only other gate
	router.POST("/payments/callback", middleware.RateLimit(), gin.WrapF(deps.Webhook.Handle))
	router.POST("/payments/webhook", middleware.RateLimit(), gin.WrapF(deps.Webhook.Handle))

	oh := &orderHandler{orders: deps.Orders}
	ph := &paymentHandler{payments: deps.Payments}
	ch := &cartHandler{cart: deps.Cart}

	// the limiter sits behind auth so authenticated traffic buckets per
	// user instead of per shared NAT address
	api := router.Group("/api")
	api.Use(middleware.Auth(), middleware.RateLimit(), middleware.RequireAuth())
	{
		api.POST("/orders", oh.create)
		api.POST("/orders/quote", oh.quote)
		api.GET("/orders", oh.list)
		api.GET("/orders/:orderID", oh.detail)
		api.PUT("/orders/:orderID/cancel", oh.cancel)

		api.GET("/payments/status/:transactionID", ph.status)

		api.GET("/cart", ch.get)
		api.POST("/cart/items", ch.addItem)
		api.PUT("/cart/items/:productID", ch.updateItem)
		api.DELETE("/cart/items/:productID", ch.removeItem)
		api.POST("/cart/checkout", ch.checkout)
	}

	admin := router.Group("/api/admin")
	admin.Use(middleware.Auth(), middleware.RateLimit(), middleware.RequireAuth(), middleware.RequireAdmin())
	{
		admin.PUT("/orders/:orderID/status", oh.updateStatus)
	}

	return router
}
