package service

import (
	"backtest-worker/config"
	"backtest-worker/internal/repository"
	"backtest-worker/pkg/cache"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/metrics"

	goValidator "github.com/go-playground/validator/v10"
)

type Service struct {
	MarketDataService MarketDataProvider
	BacktestService   BacktestService
	DispatcherService DispatcherService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	validator *goValidator.Validate,
) *Service {
	recorder := metrics.NewRecorder()
	marketDataService := NewMarketDataService(cfg, log, inmemoryCache, repo.MarketDataRepo, repo.MarketFeedRepo, recorder)
	backtestService := NewBacktestService(log, validator, repo.JobRepo, repo.StrategyRepo, marketDataService)
	dispatcherService := NewDispatcherService(cfg, log, repo.JobRepo, repo.NotificationSink, backtestService, recorder)

	return &Service{
		MarketDataService: marketDataService,
		BacktestService:   backtestService,
		DispatcherService: dispatcherService,
	}
}
