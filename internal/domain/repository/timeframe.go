package repository

import "time"

// Granularity is the bucket width of a price series.
type Granularity string

const (
	Gran5m  Granularity = "5m"
	Gran1h  Granularity = "1h"
	Gran24h Granularity = "24h"
)

// Duration returns the bucket width.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Gran5m:
		return 5 * time.Minute
	case Gran1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// GranularityFor picks the bucket width for a lookback window.
// Anything longer than a week is served at daily resolution.
func GranularityFor(lookback time.Duration) Granularity {
	switch {
	case lookback <= 24*time.Hour:
		return Gran5m
	case lookback <= 7*24*time.Hour:
		return Gran1h
	default:
		return Gran24h
	}
}

