package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"stock_etl_project/models"
	"stock_etl_project/services"
	"stock_etl_project/services/analysis"
	"stock_etl_project/services/loader"
	"stock_etl_project/services/pipeline"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PipelineController exposes the pipeline tasks and their run history
type PipelineController struct {
	db     *gorm.DB
	driver *pipeline.Driver
}

// NewPipelineController creates a new pipeline controller
func NewPipelineController(db *gorm.DB, driver *pipeline.Driver) *PipelineController {
	return &PipelineController{db: db, driver: driver}
}

// RunEnsureRawLoaded triggers CSV ingestion into the raw store
// POST /api/v1/pipeline/tasks/ensure_raw_loaded
func (pc *PipelineController) RunEnsureRawLoaded(c *gin.Context) {
	pc.respondTask(c, pipeline.TaskEnsureRawLoaded, pc.driver.EnsureRawLoaded())
}

// RunComputeFeatures triggers feature computation from the raw store
// POST /api/v1/pipeline/tasks/compute_features
func (pc *PipelineController) RunComputeFeatures(c *gin.Context) {
	pc.respondTask(c, pipeline.TaskComputeFeatures, pc.driver.ComputeFeatures())
}

// RunPipeline triggers both tasks in dependency order
// POST /api/v1/pipeline/run
func (pc *PipelineController) RunPipeline(c *gin.Context) {
	pc.respondTask(c, "pipeline", pc.driver.RunPipeline())
}

func (pc *PipelineController) respondTask(c *gin.Context, task string, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		var verr *analysis.ValidationError
		var derr *loader.DataError
		if errors.As(err, &verr) || errors.As(err, &derr) {
			// bad input data, retrying will not help
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"task":  task,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":   task,
		"status": "completed",
	})
}

// GetRuns returns recent pipeline run records
// GET /api/v1/pipeline/runs
func (pc *PipelineController) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	query := pc.db.Model(&models.PipelineRun{})
	if task := c.Query("task"); task != "" {
		query = query.Where("task = ?", task)
	}

	var runs []models.PipelineRun
	if err := query.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// GetLatestFeatures returns the per-symbol feature snapshot
// GET /api/v1/features/latest
func (pc *PipelineController) GetLatestFeatures(c *gin.Context) {
	if services.GlobalSnapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Snapshot store not initialized"})
		return
	}

	features, err := services.GlobalSnapshot.Latest()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read snapshot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(features),
		"data":  features,
	})
}
