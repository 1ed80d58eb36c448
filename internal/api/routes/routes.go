package routes

import (
	"github.com/gin-gonic/gin"

	"bank-api/internal/api/handlers"
	"bank-api/internal/api/middleware"
	"bank-api/internal/config"
)

// RegisterRoutes wires every SPEC-named external interface onto router,
// using the teacher's closure-based handler pattern: each handler captures
// its dependencies once at registration time instead of re-resolving them
// per request.
func RegisterRoutes(router *gin.Engine, cfg *config.Config, deps handlers.HandlerDependencies) {
	router.Use(middleware.RequestContextMiddleware())
	router.Use(middleware.PrometheusMiddleware())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimit(cfg))

	router.POST("/v1/commands", handlers.MakeIngestHandler(deps))
	router.GET("/v1/instances/:address/accounts/:account_address", handlers.MakeGetAccountHandler(deps))
	router.GET("/v1/instances/:address/accounts/:account_address/balance-history", handlers.MakeGetBalanceHistoryHandler(deps))

	router.GET("/healthz", handlers.Healthz)
	router.GET("/metrics", handlers.Metrics())
}
