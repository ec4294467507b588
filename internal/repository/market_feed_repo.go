package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backtest-worker/config"
	"backtest-worker/internal/dto"
	"backtest-worker/pkg/httpclient"
	"backtest-worker/pkg/logger"

	"golang.org/x/time/rate"
)

// MarketFeedRepository fetches candles from the upstream market data feed.
type MarketFeedRepository interface {
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]dto.Candle, error)
}

type feedCandlesResponse struct {
	Candles []dto.Candle `json:"candles"`
}

type marketFeedRepository struct {
	httpClient     httpclient.HTTPClient
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// NewMarketFeedRepository returns nil when no feed is configured.
func NewMarketFeedRepository(cfg *config.Config, log *logger.Logger) MarketFeedRepository {
	if cfg.MarketData.FeedBaseURL == "" {
		return nil
	}

	perMinute := cfg.MarketData.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	secondsPerRequest := time.Minute / time.Duration(perMinute)

	return &marketFeedRepository{
		httpClient:     httpclient.New(log, cfg.MarketData.FeedBaseURL, cfg.MarketData.FeedTimeout, ""),
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

func (r *marketFeedRepository) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]dto.Candle, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"symbol":    symbol,
		"timeframe": timeframe,
		"start":     start.UTC().Format(time.RFC3339),
		"end":       end.UTC().Format(time.RFC3339),
	}

	var body feedCandlesResponse
	resp, err := r.httpClient.Get(ctx, "/candles", queryParams, nil, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles from feed: %w", err)
	}
	if !resp.IsSuccess() {
		r.logger.WarnContext(ctx, "Market feed returned non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("market feed returned status: %d", resp.StatusCode)
	}

	candles := body.Candles
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}
