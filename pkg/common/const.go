package common

const (
	KEY_MARKET_DATA = "market_data:%s:%s"
)

const (
	NOTIFICATION_TYPE_BACKTEST  = "backtest"
	NOTIFICATION_TITLE_BACKTEST = "Backtest Completed"
)

const (
	DATA_SOURCE_CACHE     = "cache"
	DATA_SOURCE_FEED      = "feed"
	DATA_SOURCE_SYNTHETIC = "synthetic"
)
