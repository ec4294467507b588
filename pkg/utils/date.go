package utils

import "time"

// TimeNow returns the current time in UTC. All persisted timestamps use UTC.
func TimeNow() time.Time {
	return time.Now().UTC()
}

// ClampRange returns the inclusive [start, end] bounds truncated to the
// second, which is the resolution of stored candle timestamps.
func ClampRange(start, end time.Time) (time.Time, time.Time) {
	return start.UTC().Truncate(time.Second), end.UTC().Truncate(time.Second)
}
