package dto

import "time"

// Candle is one OHLCV bar. Series are ordered by ascending Timestamp.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// CandleSeries is what the market data provider hands to a run. DataSource
// records where the bars came from; "synthetic" means no real data existed.
type CandleSeries struct {
	Symbol     string   `json:"symbol"`
	Timeframe  string   `json:"timeframe"`
	DataSource string   `json:"data_source"`
	Candles    []Candle `json:"candles"`
}

// FilterCandles returns the candles whose timestamp lies in [start, end].
func FilterCandles(candles []Candle, start, end time.Time) []Candle {
	out := make([]Candle, 0, len(candles))
	if start.After(end) {
		return out
	}
	for _, c := range candles {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}
