package dto

import (
	"encoding/json"
	"math"
	"time"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

const (
	DefaultInitialCapital = 10000.0
	DefaultRiskPerTrade   = 0.02
	DefaultLookback       = 20
)

// BacktestParams is the params column of a backtest job.
type BacktestParams struct {
	Symbol         string    `json:"symbol" validate:"required"`
	Timeframe      string    `json:"timeframe" validate:"required,oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	InitialCapital float64   `json:"initial_capital" validate:"gt=0"`
	RiskPerTrade   float64   `json:"risk_per_trade" validate:"gt=0,lte=1"`
	Lookback       *int      `json:"lookback,omitempty" validate:"omitempty,gte=0"`
}

// WithDefaults fills zero-valued sizing fields. An absent lookback gets the
// default; an explicit 0 is kept and means the current bar only.
func (p BacktestParams) WithDefaults() BacktestParams {
	if p.InitialCapital == 0 {
		p.InitialCapital = DefaultInitialCapital
	}
	if p.RiskPerTrade == 0 {
		p.RiskPerTrade = DefaultRiskPerTrade
	}
	if p.Lookback == nil {
		lookback := DefaultLookback
		p.Lookback = &lookback
	}
	return p
}

// LookbackBars is the number of bars before the current one a rule sees.
func (p BacktestParams) LookbackBars() int {
	if p.Lookback == nil {
		return DefaultLookback
	}
	return *p.Lookback
}

type Trade struct {
	EntryPrice        float64   `json:"entry_price"`
	EntryTime         time.Time `json:"entry_time"`
	ExitPrice         float64   `json:"exit_price"`
	ExitTime          time.Time `json:"exit_time"`
	Size              float64   `json:"size"`
	Direction         Direction `json:"direction"`
	ProfitLoss        float64   `json:"profit_loss"`
	ProfitLossPercent float64   `json:"profit_loss_percent"`
}

// ProfitFactor is +Inf when a run has gross profit and no gross loss.
// JSON has no infinity, so +Inf is written as null and null reads back as +Inf.
type ProfitFactor float64

func (p ProfitFactor) IsInf() bool {
	return math.IsInf(float64(p), 1)
}

func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	if p.IsInf() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

func (p *ProfitFactor) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ProfitFactor(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = ProfitFactor(f)
	return nil
}

type Metrics struct {
	WinRate      float64      `json:"win_rate"`
	ProfitFactor ProfitFactor `json:"profit_factor"`
	TotalTrades  int          `json:"total_trades"`
	WinCount     int          `json:"win_count"`
	LossCount    int          `json:"loss_count"`
	MaxDrawdown  float64      `json:"max_drawdown"`
	FinalEquity  float64      `json:"final_equity"`
	Return       float64      `json:"return"`
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// BacktestResult is the result column of a finished job. WinRate and
// ProfitFactor repeat the metrics values at top level for older consumers.
type BacktestResult struct {
	Trades       []Trade       `json:"trades"`
	Metrics      Metrics       `json:"metrics"`
	WinRate      float64       `json:"win_rate"`
	ProfitFactor ProfitFactor  `json:"profit_factor"`
	EquityCurve  []EquityPoint `json:"equity_curve"`
	DataSource   string        `json:"data_source"`
	CandleCount  int           `json:"candle_count"`
}

// JobOutcome is one entry of a dispatch summary.
type JobOutcome struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Result  *BacktestResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Position is the single open trade of a run, between entry and exit.
type Position struct {
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Size       float64   `json:"size"`
	Direction  Direction `json:"direction"`
}
