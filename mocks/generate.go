package mocks

//go:generate mockgen -destination=./mock_notification.go -package=mocks backtest-worker/internal/repository NotificationSink
//go:generate mockgen -destination=./mock_market_data_repo.go -package=mocks backtest-worker/internal/repository MarketDataRepository,MarketFeedRepository
//go:generate mockgen -destination=./mock_market_data.go -package=mocks backtest-worker/internal/service MarketDataProvider
