package model

import (
	"time"

	"github.com/google/uuid"
)

// BacktestHistory is appended once per successfully finished job.
type BacktestHistory struct {
	ID           uint      `gorm:"primaryKey"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index"`
	StrategyID   uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Symbol       string    `gorm:"type:varchar(50);not null"`
	Timeframe    string    `gorm:"type:varchar(10);not null"`
	TotalTrades  int       `gorm:"not null"`
	WinRate      float64   `gorm:"not null"`
	ProfitFactor *float64
	Return       float64   `gorm:"not null"`
	DataSource   string    `gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (BacktestHistory) TableName() string {
	return "backtest_history"
}
