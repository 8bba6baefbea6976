// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1/handlers"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/http/v1/middleware"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

// RouterConfig holds router dependencies. Optional parts switch their
// middleware off when nil.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// DB is probed by /health/ready
	DB      handlers.DBProbe
	Version string

	Orders handlers.OrderService
	Shops  handlers.ShopService

	// JWTValidator enables bearer auth when set
	JWTValidator middleware.JWTValidator

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// RateLimiter enables per-client rate limiting when set
	RateLimiter *middleware.RateLimiter

	CORSOrigins []string

	// Mode is the gin mode; release by default
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	gin.SetMode(cfg.Mode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	if cfg.DB != nil {
		healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	api := router.Group("/api/v1")
	require := guard(passThrough)
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
		require = middleware.RequireRole
	}
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	baseHandler := handlers.NewBaseHandler()
	RegisterOrderRoutes(api.Group("/orders"), handlers.NewOrderHandler(baseHandler, cfg.Orders), require)
	RegisterShopRoutes(api.Group("/shops"), handlers.NewShopHandler(baseHandler, cfg.Shops), require)

	return router
}
