package httpserver

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"kiranakart-be/internal/cart"
	"kiranakart-be/internal/metrics"
	"kiranakart-be/internal/order"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/payment/webhook"

	"github.com/gin-gonic/gin"
)

// Deps is everything the router needs wired in.
type Deps struct {
	Orders      order.Service
	Cart        cart.Service
	Payments    payment.Repository
	Webhook     *webhook.Handler
	Stats       *metrics.Reconciliation
	CORSOrigins []string
}

type Server struct {
	httpServer *http.Server
	db         *sql.DB
}

func New(addr string, db *sql.DB, deps Deps) *Server {
	router := buildRouter(db, deps)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		db: db,
	}
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func metricsHandler(stats *metrics.Reconciliation) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"reconciliation": stats.Snapshot()})
	}
}
