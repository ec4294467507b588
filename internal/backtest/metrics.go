package backtest

import (
	"math"
	"time"

	"backtest-worker/internal/dto"

	"github.com/shopspring/decimal"
)

// Summarize reduces a trade ledger to metrics and an equity curve sampled
// at each trade close. Drawdown is measured only at those samples. The
// first point is stamped with start, the run's start date, not the epoch.
func Summarize(trades []dto.Trade, initialCapital float64, finalCash decimal.Decimal, start time.Time) (dto.Metrics, []dto.EquityPoint) {
	initial := decimal.NewFromFloat(initialCapital)
	hundred := decimal.NewFromInt(100)

	metrics := dto.Metrics{
		TotalTrades: len(trades),
		FinalEquity: finalCash.InexactFloat64(),
	}

	curve := make([]dto.EquityPoint, 0, len(trades)+1)
	curve = append(curve, dto.EquityPoint{Timestamp: start, Equity: initialCapital})

	totalProfit := decimal.Zero
	totalLoss := decimal.Zero
	equity := initial
	peak := initial
	maxDrawdown := decimal.Zero

	for _, trade := range trades {
		pl := decimal.NewFromFloat(trade.ProfitLoss)
		if pl.IsPositive() {
			metrics.WinCount++
			totalProfit = totalProfit.Add(pl)
		} else {
			metrics.LossCount++
			totalLoss = totalLoss.Add(pl.Abs())
		}

		equity = equity.Add(pl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(equity).Div(peak).Mul(hundred)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
		curve = append(curve, dto.EquityPoint{Timestamp: trade.ExitTime, Equity: equity.InexactFloat64()})
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = decimal.NewFromInt(int64(metrics.WinCount)).
			Div(decimal.NewFromInt(int64(metrics.TotalTrades))).
			Mul(hundred).InexactFloat64()
	}

	switch {
	case totalLoss.IsPositive():
		metrics.ProfitFactor = dto.ProfitFactor(totalProfit.Div(totalLoss).InexactFloat64())
	case totalProfit.IsPositive():
		metrics.ProfitFactor = dto.ProfitFactor(math.Inf(1))
	default:
		metrics.ProfitFactor = 0
	}

	metrics.MaxDrawdown = maxDrawdown.InexactFloat64()
	if initial.IsPositive() {
		metrics.Return = finalCash.Sub(initial).Div(initial).Mul(hundred).InexactFloat64()
	}
	return metrics, curve
}
