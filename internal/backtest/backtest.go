package backtest

import (
	"context"

	"backtest-worker/internal/dto"
	"backtest-worker/internal/strategy"
)

// Run simulates the candles and builds the persisted result shape.
// Params are expected to have defaults applied.
func Run(ctx context.Context, candles []dto.Candle, rules *strategy.Rules, params dto.BacktestParams) (*dto.BacktestResult, *SimulationResult, error) {
	sim, err := Simulate(ctx, candles, rules, params)
	if err != nil {
		return nil, nil, err
	}

	metrics, curve := Summarize(sim.Trades, params.InitialCapital, sim.FinalCash, params.StartDate)
	return &dto.BacktestResult{
		Trades:       sim.Trades,
		Metrics:      metrics,
		WinRate:      metrics.WinRate,
		ProfitFactor: metrics.ProfitFactor,
		EquityCurve:  curve,
		CandleCount:  sim.Bars,
	}, sim, nil
}
