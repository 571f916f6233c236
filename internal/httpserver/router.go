package httpserver

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator-checkout/internal/alerts"
	cartrepo "creator-checkout/internal/repository/cart"
	checkoutsvc "creator-checkout/internal/service/checkout"
	statssvc "creator-checkout/internal/service/stats"
	surchargesvc "creator-checkout/internal/service/surcharge"
)

// Deps carries the wired services the routes need.
type Deps struct {
	Checkout   *checkoutsvc.Service
	CartRepo   cartrepo.Repository
	Surcharges *surchargesvc.Service
	Stats      *statssvc.Service
	Search     *statssvc.Searcher
	Bus        *alerts.Bus
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := newHandlers(logger, deps)

	sessions := router.Group("/checkout/sessions")
	{
		sessions.POST("", h.createSession)
		sessions.GET("/:id", h.getSession)
		sessions.PUT("/:id/cart", h.persistCart)
		sessions.POST("/:id/items", h.addItem)
		sessions.POST("/:id/buyer", h.updateBuyer)
		sessions.POST("/:id/submit", h.submit)
		sessions.POST("/:id/offer", h.resolveOffer)
		sessions.POST("/:id/recaptcha", h.recaptcha)
		sessions.POST("/:id/cancel", h.cancel)
	}

	router.POST("/surcharge", h.surcharge)
	router.GET("/stats/affiliates/:id", h.affiliateStats)
	router.GET("/search/products", h.searchProducts)
	router.GET("/alerts", h.recentAlerts)

	return router, nil
}
