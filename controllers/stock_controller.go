package controllers

import (
	"net/http"
	"strconv"
	"time"

	"stock_etl_project/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StockController handles stock data requests
type StockController struct {
	db *gorm.DB
}

// NewStockController creates a new stock controller
func NewStockController(db *gorm.DB) *StockController {
	return &StockController{db: db}
}

// GetStocks returns list of all stocks
// GET /api/v1/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	var stocks []models.Stock

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset := (page - 1) * limit

	query := sc.db.Model(&models.Stock{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	if err := query.Order("symbol").Limit(limit).Offset(offset).Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stocks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stocks,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetStock returns a single stock by symbol
// GET /api/v1/stocks/:symbol
func (sc *StockController) GetStock(c *gin.Context) {
	symbol := c.Param("symbol")

	var stock models.Stock
	if err := sc.db.Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stock})
}

// GetRawBars returns raw OHLCV rows for a stock
// GET /api/v1/stocks/:symbol/prices
func (sc *StockController) GetRawBars(c *gin.Context) {
	stock, ok := sc.findStock(c)
	if !ok {
		return
	}

	startDate, endDate := dateRange(c)

	var bars []models.RawBar
	err := sc.db.Where("stock_id = ? AND date BETWEEN ? AND ?", stock.ID, startDate, endDate).
		Order("date ASC").
		Find(&bars).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  bars,
		"stock": stock,
	})
}

// GetFeatureBars returns computed feature rows for a stock
// GET /api/v1/stocks/:symbol/features
func (sc *StockController) GetFeatureBars(c *gin.Context) {
	stock, ok := sc.findStock(c)
	if !ok {
		return
	}

	startDate, endDate := dateRange(c)

	var bars []models.FeatureBar
	err := sc.db.Where("stock_id = ? AND date BETWEEN ? AND ?", stock.ID, startDate, endDate).
		Order("date ASC").
		Find(&bars).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch features"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  bars,
		"stock": stock,
	})
}

func (sc *StockController) findStock(c *gin.Context) (*models.Stock, bool) {
	symbol := c.Param("symbol")

	var stock models.Stock
	if err := sc.db.Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
		}
		return nil, false
	}
	return &stock, true
}

func dateRange(c *gin.Context) (string, string) {
	startDate := c.DefaultQuery("start_date", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"))
	endDate := c.DefaultQuery("end_date", time.Now().Format("2006-01-02"))
	return startDate, endDate
}
