package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"backtest-worker/config"
	"backtest-worker/internal/dto"
	"backtest-worker/mocks"
	"backtest-worker/pkg/cache"
	"backtest-worker/pkg/common"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Dispatcher: config.Dispatcher{MaxJobs: 3, JobTimeout: time.Minute},
		Cache:      config.Cache{DefaultExpiration: time.Minute, CleanupInterval: time.Minute},
		MarketData: config.MarketData{MaxSyntheticBars: 5000},
	}
}

func dailyCandles(closes ...float64) []dto.Candle {
	out := make([]dto.Candle, len(closes))
	for i, c := range closes {
		out[i] = dto.Candle{Timestamp: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func newMarketData(t *testing.T, feed bool) (MarketDataProvider, *mocks.MockMarketDataRepository, *mocks.MockMarketFeedRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockMarketDataRepository(ctrl)
	var feedRepo *mocks.MockMarketFeedRepository
	svc := NewMarketDataService(testConfig(), logger.NewNop(), cache.NewCache(time.Minute, time.Minute), repo, nil, metrics.NewRecorder())
	if feed {
		feedRepo = mocks.NewMockMarketFeedRepository(ctrl)
		svc = NewMarketDataService(testConfig(), logger.NewNop(), cache.NewCache(time.Minute, time.Minute), repo, feedRepo, metrics.NewRecorder())
	}
	return svc, repo, feedRepo
}

func TestMarketData_PersistentCacheHit(t *testing.T) {
	svc, repo, _ := newMarketData(t, false)
	ctx := context.Background()

	repo.EXPECT().GetSeries(gomock.Any(), "BTCUSDT", "1d").Return(dailyCandles(1, 2, 3, 4, 5), true, nil).Times(1)

	series, err := svc.Fetch(ctx, "btcusdt", "1d", day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, common.DATA_SOURCE_CACHE, series.DataSource)
	assert.Equal(t, "BTCUSDT", series.Symbol)
	require.Len(t, series.Candles, 3)
	assert.Equal(t, 2.0, series.Candles[0].Close)
	assert.Equal(t, 4.0, series.Candles[2].Close)

	// second call is served from the in-process cache
	series, err = svc.Fetch(ctx, "BTCUSDT", "1d", day0, day0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Len(t, series.Candles, 5)
	assert.Equal(t, common.DATA_SOURCE_CACHE, series.DataSource)
}

func TestMarketData_Feed(t *testing.T) {
	svc, repo, feed := newMarketData(t, true)
	start, end := day0, day0.AddDate(0, 0, 2)
	candles := dailyCandles(10, 11, 12)

	repo.EXPECT().GetSeries(gomock.Any(), "ETHUSDT", "1d").Return(nil, false, nil)
	feed.EXPECT().GetCandles(gomock.Any(), "ETHUSDT", "1d", start, end).Return(candles, nil)
	repo.EXPECT().UpsertSeries(gomock.Any(), "ETHUSDT", "1d", candles).Return(nil)

	series, err := svc.Fetch(context.Background(), "ETHUSDT", "1d", start, end)
	require.NoError(t, err)
	assert.Equal(t, common.DATA_SOURCE_FEED, series.DataSource)
	assert.Equal(t, candles, series.Candles)
}

func TestMarketData_FeedErrorFallsBackToSynthetic(t *testing.T) {
	svc, repo, feed := newMarketData(t, true)

	repo.EXPECT().GetSeries(gomock.Any(), "SOLUSDT", "1h").Return(nil, false, nil)
	feed.EXPECT().GetCandles(gomock.Any(), "SOLUSDT", "1h", gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	series, err := svc.Fetch(context.Background(), "SOLUSDT", "1h", day0, day0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, common.DATA_SOURCE_SYNTHETIC, series.DataSource)
	assert.Len(t, series.Candles, 6)
}

func TestMarketData_StoreErrorIsReturned(t *testing.T) {
	svc, repo, _ := newMarketData(t, false)
	repo.EXPECT().GetSeries(gomock.Any(), "BTCUSDT", "1d").Return(nil, false, errors.New("connection reset"))

	_, err := svc.Fetch(context.Background(), "BTCUSDT", "1d", day0, day0)
	assert.ErrorContains(t, err, "connection reset")
}

func TestMarketData_UnknownTimeframe(t *testing.T) {
	svc, _, _ := newMarketData(t, false)

	_, err := svc.Fetch(context.Background(), "BTCUSDT", "3d", day0, day0)
	assert.ErrorIs(t, err, dto.ErrUnknownTimeframe)
}

func TestMarketData_SyntheticSeries(t *testing.T) {
	svc, repo, _ := newMarketData(t, false)
	repo.EXPECT().GetSeries(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, nil).AnyTimes()
	ctx := context.Background()

	first, err := svc.Fetch(ctx, "NOPE", "1d", day0, day0.AddDate(0, 0, 9))
	require.NoError(t, err)
	second, err := svc.Fetch(ctx, "NOPE", "1d", day0, day0.AddDate(0, 0, 9))
	require.NoError(t, err)

	assert.Equal(t, common.DATA_SOURCE_SYNTHETIC, first.DataSource)
	require.Len(t, first.Candles, 10)
	assert.Equal(t, first, second)
	for i, c := range first.Candles {
		assert.Equal(t, day0.AddDate(0, 0, i), c.Timestamp)
		assert.Greater(t, c.Close, 0.0)
		assert.GreaterOrEqual(t, c.High, c.Low)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
	}

	other, err := svc.Fetch(ctx, "OTHER", "1d", day0, day0.AddDate(0, 0, 9))
	require.NoError(t, err)
	assert.NotEqual(t, first.Candles[0].Close, other.Candles[0].Close)

	empty, err := svc.Fetch(ctx, "NOPE", "1d", day0.AddDate(0, 0, 1), day0)
	require.NoError(t, err)
	assert.Empty(t, empty.Candles)
}

func TestSynthesize(t *testing.T) {
	capped := synthesize("BTCUSDT", "1m", time.Minute, day0, day0.AddDate(1, 0, 0), 100)
	assert.Len(t, capped, 100)

	// bars start on the first interval boundary at or after start
	shifted := synthesize("BTCUSDT", "1h", time.Hour, day0.Add(90*time.Minute), day0.Add(4*time.Hour), 0)
	require.Len(t, shifted, 3)
	assert.Equal(t, day0.Add(2*time.Hour), shifted[0].Timestamp)
}
