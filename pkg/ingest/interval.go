package ingest

import "time"

// intervalMinutes maps candle interval suffixes to their length in minutes.
var intervalMinutes = map[string]int{
	"1m":  1,
	"3m":  3,
	"5m":  5,
	"15m": 15,
	"30m": 30,
	"1h":  60,
	"2h":  120,
	"4h":  240,
	"6h":  360,
	"8h":  480,
	"12h": 720,
	"1d":  1440,
	"3d":  4320,
	"1w":  10080,
	"1M":  43200,
}

const defaultIntervalMinutes = 15

// IntervalMinutes returns the candle interval length in minutes, defaulting
// to 15 for unknown intervals.
func IntervalMinutes(interval string) int {
	if minutes, ok := intervalMinutes[interval]; ok {
		return minutes
	}
	return defaultIntervalMinutes
}

// IntervalDuration is IntervalMinutes as a time.Duration.
func IntervalDuration(interval string) time.Duration {
	return time.Duration(IntervalMinutes(interval)) * time.Minute
}
