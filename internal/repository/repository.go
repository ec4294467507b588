package repository

import (
	"backtest-worker/config"
	"backtest-worker/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	JobRepo          JobRepository
	StrategyRepo     StrategyRepository
	MarketDataRepo   MarketDataRepository
	MarketFeedRepo   MarketFeedRepository
	NotificationSink NotificationSink
	UnitOfWork       UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Repository {
	uow := NewUnitOfWork(db)

	return &Repository{
		JobRepo:          NewJobRepository(db, uow),
		StrategyRepo:     NewStrategyRepository(db),
		MarketDataRepo:   NewMarketDataRepository(db),
		MarketFeedRepo:   NewMarketFeedRepository(cfg, log),
		NotificationSink: NewNotificationSink(cfg, db, log),
		UnitOfWork:       uow,
	}
}
