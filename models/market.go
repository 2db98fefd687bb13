package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents a tracked symbol, one per CSV source file
type Stock struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name       string    `json:"name"`
	SourceFile string    `json:"source_file"` // CSV filename the symbol was loaded from
	Status     string    `json:"status"`      // active, inactive
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RawBar represents one unmodified OHLCV row as ingested from CSV.
// Rows are unique per (stock_id, date) and never mutated after
// ingestion; a re-run of the loader upserts on the same key.
type RawBar struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	StockID   uint            `gorm:"uniqueIndex:idx_raw_stock_date" json:"stock_id"`
	Stock     Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	Date      time.Time       `gorm:"uniqueIndex:idx_raw_stock_date" json:"date"`
	Open      decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

// FeatureBar stores the enriched row derived from RawBar. Indicator
// columns are nullable: nil means the trailing window had insufficient
// history at that date.
type FeatureBar struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	StockID      uint             `gorm:"uniqueIndex:idx_feature_stock_date" json:"stock_id"`
	Stock        Stock            `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	Date         time.Time        `gorm:"uniqueIndex:idx_feature_stock_date" json:"date"`
	Close        decimal.Decimal  `gorm:"type:decimal(15,4)" json:"close"`
	SMA10        *decimal.Decimal `gorm:"type:decimal(15,6)" json:"sma_10"`
	SMA50        *decimal.Decimal `gorm:"type:decimal(15,6)" json:"sma_50"`
	RSI14        *decimal.Decimal `gorm:"type:decimal(15,6)" json:"rsi_14"`
	DailyReturn  *decimal.Decimal `gorm:"type:decimal(15,8)" json:"daily_return"`
	Volatility30 *decimal.Decimal `gorm:"type:decimal(15,8)" json:"volatility_30"`
	CreatedAt    time.Time        `json:"created_at"`
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&RawBar{},
		&FeatureBar{},
	)
}
