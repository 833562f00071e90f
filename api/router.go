package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/api/handlers"
	"github.com/yourusername/aniload-go/api/middleware"
	"github.com/yourusername/aniload-go/internal/app"
)

// SetupRouter sets up the HTTP router consumed by the mobile client
func SetupRouter(
	queueMgr *app.QueueManager,
	downloadMgr *app.DownloadManager,
	cacheMgr *app.CacheManager,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(queueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		itemHandler := handlers.NewItemHandler(queueMgr, downloadMgr, log)
		items := v1.Group("/items")
		{
			items.POST("", itemHandler.EnqueueItem)
			items.GET("", itemHandler.ListItems)
			items.GET("/stats", itemHandler.GetStats)
			items.POST("/validate", itemHandler.ValidateItems)
			items.DELETE("", itemHandler.ClearItems)
			items.GET("/:id", itemHandler.GetItem)
			items.POST("/:id/pause", itemHandler.PauseItem)
			items.POST("/:id/resume", itemHandler.ResumeItem)
			items.POST("/:id/cancel", itemHandler.CancelItem)
			items.DELETE("/:id", itemHandler.RemoveItem)
		}

		cacheHandler := handlers.NewCacheHandler(cacheMgr)
		cache := v1.Group("/cache")
		{
			cache.GET("/usage", cacheHandler.GetUsage)
			cache.POST("/cleanup", cacheHandler.Cleanup)
		}
	}

	return router
}
