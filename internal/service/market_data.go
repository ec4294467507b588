package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"backtest-worker/config"
	"backtest-worker/internal/dto"
	"backtest-worker/internal/repository"
	"backtest-worker/pkg/cache"
	"backtest-worker/pkg/common"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/metrics"
	"backtest-worker/pkg/utils"

	"github.com/shopspring/decimal"
)

// MarketDataProvider resolves a symbol, timeframe and date range to an
// ordered candle series. A missing symbol is not an error.
type MarketDataProvider interface {
	Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) (dto.CandleSeries, error)
}

type marketDataService struct {
	cfg            *config.Config
	log            *logger.Logger
	inmemoryCache  cache.Cache
	marketDataRepo repository.MarketDataRepository
	marketFeedRepo repository.MarketFeedRepository
	metrics        *metrics.Recorder
}

// NewMarketDataService builds the provider. marketFeedRepo may be nil, in
// which case a cache miss goes straight to the synthetic series.
func NewMarketDataService(
	cfg *config.Config,
	log *logger.Logger,
	inmemoryCache cache.Cache,
	marketDataRepo repository.MarketDataRepository,
	marketFeedRepo repository.MarketFeedRepository,
	recorder *metrics.Recorder,
) MarketDataProvider {
	return &marketDataService{
		cfg:            cfg,
		log:            log,
		inmemoryCache:  inmemoryCache,
		marketDataRepo: marketDataRepo,
		marketFeedRepo: marketFeedRepo,
		metrics:        recorder,
	}
}

func (s *marketDataService) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) (dto.CandleSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	start, end = utils.ClampRange(start, end)
	interval, err := dto.TimeframeInterval(timeframe)
	if err != nil {
		return dto.CandleSeries{}, err
	}

	candles, source, err := s.load(ctx, symbol, timeframe, start, end)
	if err != nil {
		return dto.CandleSeries{}, err
	}
	if source == "" {
		source = common.DATA_SOURCE_SYNTHETIC
		candles = synthesize(symbol, timeframe, interval, start, end, s.cfg.MarketData.MaxSyntheticBars)
		s.log.WarnContext(ctx, "No market data found, using synthetic candles",
			logger.StringField("symbol", symbol),
			logger.StringField("timeframe", timeframe),
			logger.IntField("candle_count", len(candles)))
	} else {
		candles = dto.FilterCandles(candles, start, end)
	}
	s.metrics.RecordMarketDataSource(source)

	return dto.CandleSeries{
		Symbol:     symbol,
		Timeframe:  timeframe,
		DataSource: source,
		Candles:    candles,
	}, nil
}

// load walks the in-process cache, the persistent cache and the feed in
// order. An empty source means nothing had the series.
func (s *marketDataService) load(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]dto.Candle, string, error) {
	cacheKey := fmt.Sprintf(common.KEY_MARKET_DATA, symbol, timeframe)
	if candles, ok := cache.GetFromCache[[]dto.Candle](s.inmemoryCache, cacheKey); ok {
		return candles, common.DATA_SOURCE_CACHE, nil
	}

	candles, ok, err := s.marketDataRepo.GetSeries(ctx, symbol, timeframe)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read market data for %s %s: %w", symbol, timeframe, err)
	}
	if ok {
		s.inmemoryCache.Set(cacheKey, candles, s.cfg.Cache.DefaultExpiration)
		return candles, common.DATA_SOURCE_CACHE, nil
	}

	if s.marketFeedRepo == nil {
		return nil, "", nil
	}
	candles, err = s.marketFeedRepo.GetCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		s.log.WarnContext(ctx, "Market feed request failed",
			logger.StringField("symbol", symbol),
			logger.StringField("timeframe", timeframe),
			logger.ErrorField(err))
		return nil, "", nil
	}
	if len(candles) == 0 {
		return nil, "", nil
	}

	if err := s.marketDataRepo.UpsertSeries(ctx, symbol, timeframe, candles); err != nil {
		return nil, "", fmt.Errorf("failed to store market data for %s %s: %w", symbol, timeframe, err)
	}
	s.inmemoryCache.Set(cacheKey, candles, s.cfg.Cache.DefaultExpiration)
	return candles, common.DATA_SOURCE_FEED, nil
}

// synthesize builds a random walk that is the same for every call with the
// same symbol, timeframe and range. Bars sit on multiples of interval.
func synthesize(symbol, timeframe string, interval time.Duration, start, end time.Time, maxBars int) []dto.Candle {
	candles := []dto.Candle{}
	if start.After(end) {
		return candles
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol + "|" + timeframe))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 50 + rng.Float64()*450
	ts := start.UTC().Truncate(interval)
	if ts.Before(start) {
		ts = ts.Add(interval)
	}
	for !ts.After(end) && (maxBars <= 0 || len(candles) < maxBars) {
		open := price
		closePrice := open * (1 + (rng.Float64()-0.5)*0.04)
		high := max(open, closePrice) * (1 + rng.Float64()*0.01)
		low := min(open, closePrice) * (1 - rng.Float64()*0.01)

		candles = append(candles, dto.Candle{
			Timestamp: ts,
			Open:      round(open),
			High:      round(high),
			Low:       round(low),
			Close:     round(closePrice),
			Volume:    round(1000 + rng.Float64()*9000),
		})
		price = closePrice
		ts = ts.Add(interval)
	}
	return candles
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
