package http

import (
	"github.com/gin-gonic/gin"

	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	if cfg.RateLimit.PerIP > 0 {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	}
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.POST("", handler.CreateProduct)
			products.PUT("/:id", handler.UpdateProduct)
			products.DELETE("/:id", handler.DeleteProduct)
		}

		suppliers := v1.Group("/suppliers")
		{
			suppliers.GET("", handler.ListSuppliers)
			suppliers.POST("", handler.CreateSupplier)
			suppliers.PATCH("/:id/status", handler.SetSupplierStatus)
			suppliers.DELETE("/:id", handler.DeleteSupplier)
		}

		v1.PUT("/prices/:productId/:supplierId", handler.SetPrice)

		v1.GET("/comparisons", handler.ListComparisons)
		v1.GET("/comparisons/:productId", handler.GetComparison)
		v1.GET("/stats", handler.GetStats)

		refresh := v1.Group("/refresh")
		{
			refresh.POST("", handler.StartRefresh)
			refresh.GET("", handler.GetRefresh)
			refresh.DELETE("", handler.CancelRefresh)
		}

		v1.GET("/export", handler.Export)
		v1.POST("/import", handler.Import)
		v1.GET("/subscription", handler.GetSubscription)
	}

	return router
}
