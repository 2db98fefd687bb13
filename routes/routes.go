package routes

import (
	"stock_etl_project/controllers"
	"stock_etl_project/services/pipeline"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, driver *pipeline.Driver) {
	stockController := controllers.NewStockController(db)
	pipelineController := controllers.NewPipelineController(db, driver)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Stock routes
		stocks := api.Group("/stocks")
		{
			stocks.GET("", stockController.GetStocks)
			stocks.GET("/:symbol", stockController.GetStock)
			stocks.GET("/:symbol/prices", stockController.GetRawBars)
			stocks.GET("/:symbol/features", stockController.GetFeatureBars)
		}

		// Pipeline routes
		pipelineGroup := api.Group("/pipeline")
		{
			pipelineGroup.POST("/tasks/ensure_raw_loaded", pipelineController.RunEnsureRawLoaded)
			pipelineGroup.POST("/tasks/compute_features", pipelineController.RunComputeFeatures)
			pipelineGroup.POST("/run", pipelineController.RunPipeline)
			pipelineGroup.GET("/runs", pipelineController.GetRuns)
		}

		// Feature snapshot
		api.GET("/features/latest", pipelineController.GetLatestFeatures)
	}
}
