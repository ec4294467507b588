// Package backtest replays candles through compiled strategy rules and
// reduces the resulting trade ledger to performance metrics.
package backtest

import (
	"context"
	"fmt"

	"backtest-worker/internal/dto"
	"backtest-worker/internal/strategy"

	"github.com/shopspring/decimal"
)

// SimulationResult is the raw outcome of one replay. An OpenPosition left
// at the end of the data is reported but is not part of Trades or FinalCash.
type SimulationResult struct {
	Trades       []dto.Trade
	FinalCash    decimal.Decimal
	OpenPosition *dto.Position
	Bars         int
}

type openPosition struct {
	entryPrice decimal.Decimal
	size       decimal.Decimal
	entryIndex int
	view       dto.Position
}

// Simulate walks candles in order with at most one open position. Entry
// rules are checked while flat and exit rules while in a position; a bar
// never does both. Candles must be sorted by ascending timestamp.
func Simulate(ctx context.Context, candles []dto.Candle, rules *strategy.Rules, params dto.BacktestParams) (*SimulationResult, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules are required")
	}
	lookback := params.LookbackBars()
	if lookback < 0 {
		return nil, fmt.Errorf("lookback must not be negative, got %d", lookback)
	}

	cash := decimal.NewFromFloat(params.InitialCapital)
	risk := decimal.NewFromFloat(params.RiskPerTrade)
	hundred := decimal.NewFromInt(100)

	var (
		pos    *openPosition
		trades []dto.Trade
	)

	for i, candle := range candles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation stopped at bar %d: %w", i, err)
		}

		from := i - lookback
		if from < 0 {
			from = 0
		}
		evalCtx := strategy.Context{
			Candle:  candle,
			History: candles[from : i+1],
		}

		if pos == nil {
			if !rules.Entry.Signal(evalCtx) {
				continue
			}
			if candle.Close <= 0 {
				return nil, fmt.Errorf("bar %d at %s: cannot size a position at close %v", i, candle.Timestamp, candle.Close)
			}
			entryPrice := decimal.NewFromFloat(candle.Close)
			size := cash.Mul(risk).Div(entryPrice)
			pos = &openPosition{
				entryPrice: entryPrice,
				size:       size,
				entryIndex: i,
				view: dto.Position{
					EntryPrice: candle.Close,
					EntryTime:  candle.Timestamp,
					Size:       size.InexactFloat64(),
					Direction:  rules.Direction,
				},
			}
			continue
		}

		evalCtx.Position = &pos.view
		evalCtx.BarsHeld = i - pos.entryIndex
		if !rules.Exit.Signal(evalCtx) {
			continue
		}

		exitPrice := decimal.NewFromFloat(candle.Close)
		priceDiff := exitPrice.Sub(pos.entryPrice)
		if pos.view.Direction == dto.DirectionShort {
			priceDiff = pos.entryPrice.Sub(exitPrice)
		}
		profitLoss := priceDiff.Mul(pos.size)
		cash = cash.Add(profitLoss)

		trades = append(trades, dto.Trade{
			EntryPrice:        pos.view.EntryPrice,
			EntryTime:         pos.view.EntryTime,
			ExitPrice:         candle.Close,
			ExitTime:          candle.Timestamp,
			Size:              pos.view.Size,
			Direction:         pos.view.Direction,
			ProfitLoss:        profitLoss.InexactFloat64(),
			ProfitLossPercent: priceDiff.Div(pos.entryPrice).Mul(hundred).InexactFloat64(),
		})
		pos = nil
	}

	result := &SimulationResult{
		Trades:    trades,
		FinalCash: cash,
		Bars:      len(candles),
	}
	if pos != nil {
		open := pos.view
		result.OpenPosition = &open
	}
	if result.Trades == nil {
		result.Trades = []dto.Trade{}
	}
	return result, nil
}
