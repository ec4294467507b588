package dto

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

const (
	Timeframe1Min  = "1m"
	Timeframe5Min  = "5m"
	Timeframe15Min = "15m"
	Timeframe30Min = "30m"
	Timeframe1Hour = "1h"
	Timeframe4Hour = "4h"
	Timeframe1Day  = "1d"
	Timeframe1Week = "1w"
)

var timeframeIntervals = map[string]time.Duration{
	Timeframe1Min:  time.Minute,
	Timeframe5Min:  5 * time.Minute,
	Timeframe15Min: 15 * time.Minute,
	Timeframe30Min: 30 * time.Minute,
	Timeframe1Hour: time.Hour,
	Timeframe4Hour: 4 * time.Hour,
	Timeframe1Day:  24 * time.Hour,
	Timeframe1Week: 7 * 24 * time.Hour,
}

// TimeframeInterval returns the bar spacing of a timeframe.
func TimeframeInterval(timeframe string) (time.Duration, error) {
	d, ok := timeframeIntervals[timeframe]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTimeframe, timeframe)
	}
	return d, nil
}
