package model

import (
	"time"

	"gorm.io/datatypes"
)

// MarketDataCache holds one full candle series per (symbol, timeframe).
type MarketDataCache struct {
	ID        uint           `gorm:"primaryKey"`
	Symbol    string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_market_data_cache_key,priority:1"`
	Timeframe string         `gorm:"type:varchar(10);not null;uniqueIndex:idx_market_data_cache_key,priority:2"`
	Candles   datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (MarketDataCache) TableName() string {
	return "market_data_cache"
}
