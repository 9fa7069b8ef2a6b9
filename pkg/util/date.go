package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, a plain date and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignFromTo truncates the range to the bucket size of a price timestep
// ("5m", "1h" or "24h"). Daily buckets align to UTC midnight.
func AlignFromTo(from, to time.Time, step string) (time.Time, time.Time) {
	var d time.Duration
	switch step {
	case "5m":
		d = 5 * time.Minute
	case "1h":
		d = time.Hour
	case "24h":
		d = 24 * time.Hour
	default:
		d = time.Minute
	}
	return from.UTC().Truncate(d), to.UTC().Truncate(d)
}
