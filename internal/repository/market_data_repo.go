package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backtest-worker/internal/dto"
	"backtest-worker/internal/model"
	"backtest-worker/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketDataRepository is the persistent candle cache, one row per
// (symbol, timeframe).
type MarketDataRepository interface {
	GetSeries(ctx context.Context, symbol, timeframe string) ([]dto.Candle, bool, error)
	UpsertSeries(ctx context.Context, symbol, timeframe string, candles []dto.Candle) error
}

type marketDataRepository struct {
	db *gorm.DB
}

func NewMarketDataRepository(db *gorm.DB) MarketDataRepository {
	return &marketDataRepository{db: db}
}

func (r *marketDataRepository) GetSeries(ctx context.Context, symbol, timeframe string) ([]dto.Candle, bool, error) {
	var row model.MarketDataCache
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, timeframe).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read market data cache: %w", err)
	}

	var candles []dto.Candle
	if err := json.Unmarshal(row.Candles, &candles); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached candles for %s %s: %w", symbol, timeframe, err)
	}
	return candles, true, nil
}

// UpsertSeries replaces the stored series. Writing the same series twice
// leaves one row.
func (r *marketDataRepository) UpsertSeries(ctx context.Context, symbol, timeframe string, candles []dto.Candle) error {
	payload, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("failed to marshal candles: %w", err)
	}

	row := model.MarketDataCache{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   payload,
		UpdatedAt: utils.TimeNow(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}},
		DoUpdates: clause.AssignmentColumns([]string{"candles", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert market data cache: %w", err)
	}
	return nil
}
