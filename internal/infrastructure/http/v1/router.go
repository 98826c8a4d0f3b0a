// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/ledger"
	"stockforge/internal/domain/production"
	"stockforge/internal/domain/purchasing"
	"stockforge/internal/domain/sales"
	"stockforge/internal/infrastructure/http/v1/handlers"
	"stockforge/internal/infrastructure/http/v1/middleware"
	"stockforge/pkg/logger"
)

// RouterConfig holds the services exposed through the API.
type RouterConfig struct {
	Pool   *pgxpool.Pool
	Logger *logger.Logger

	Items      *item.Service
	Ledger     *ledger.Service
	Production *production.Service
	Sales      *sales.Service
	Purchasing *purchasing.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Actor())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	itemHandler := handlers.NewItemHandler(cfg.Items)
	ledgerHandler := handlers.NewLedgerHandler(cfg.Ledger)
	productionHandler := handlers.NewProductionHandler(cfg.Production)
	saleHandler := handlers.NewSaleHandler(cfg.Sales)
	purchaseHandler := handlers.NewPurchaseHandler(cfg.Purchasing)

	api := router.Group("/api/v1")
	{
		items := api.Group("/items")
		{
			items.POST("", itemHandler.Create)
			items.GET("", itemHandler.List)
			items.GET("/:id", itemHandler.Get)
			items.PUT("/:id", itemHandler.Update)
			items.GET("/:id/recipe", itemHandler.GetRecipe)
			items.PUT("/:id/recipe", itemHandler.SetRecipe)
			items.GET("/:id/ledger", ledgerHandler.ListByItem)
		}

		batches := api.Group("/batches")
		{
			batches.POST("", productionHandler.Create)
			batches.GET("", productionHandler.List)
			batches.GET("/:id", productionHandler.Get)
			batches.GET("/:id/can-reverse", productionHandler.CanReverse)
			batches.POST("/:id/reverse", productionHandler.Reverse)
			batches.POST("/:id/waste", productionHandler.Waste)
		}

		salesGroup := api.Group("/sales")
		{
			salesGroup.POST("", saleHandler.Create)
			salesGroup.GET("", saleHandler.List)
			salesGroup.GET("/:id", saleHandler.Get)
			salesGroup.POST("/:id/void", saleHandler.Void)
		}

		purchases := api.Group("/purchases")
		{
			purchases.POST("", purchaseHandler.Create)
			purchases.DELETE("/:id", purchaseHandler.Delete)
		}

		api.POST("/corrections", purchaseHandler.CreateCorrection)
	}

	return router
}
