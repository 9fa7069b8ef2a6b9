package models

import "time"

// PricePoint is a single observation of an item's traded price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    *int64    `json:"volume,omitempty"`
}

// PriceSeries is an ordered slice of points over one lookback window.
// Timestamps are non-decreasing; statistics need at least two points.
type PriceSeries []PricePoint

// Prices returns the price column.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Volumes returns the volume column, treating missing volume as zero.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		if p.Volume != nil {
			out[i] = float64(*p.Volume)
		}
	}
	return out
}

// Last returns the most recent point. ok is false for an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Since returns the suffix of the series with timestamps at or after t.
func (s PriceSeries) Since(t time.Time) PriceSeries {
	for i, p := range s {
		if !p.Timestamp.Before(t) {
			return s[i:]
		}
	}
	return nil
}

// Between returns points with from <= timestamp < to.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	var out PriceSeries
	for _, p := range s {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

// SpanDays is the number of whole days between the first and last point.
func (s PriceSeries) SpanDays() int {
	if len(s) < 2 {
		return 0
	}
	return int(s[len(s)-1].Timestamp.Sub(s[0].Timestamp) / (24 * time.Hour))
}

// Monotonic reports whether timestamps never decrease.
func (s PriceSeries) Monotonic() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Timestamp.Before(s[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// NearReference drops non-positive prices and, when ref is positive, points
// outside [ref/10, ref*10]. Those are upstream glitches, not market moves.
func (s PriceSeries) NearReference(ref float64) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, p := range s {
		if p.Price <= 0 {
			continue
		}
		if ref > 0 && (p.Price < ref/10 || p.Price > ref*10) {
			continue
		}
		out = append(out, p)
	}
	return out
}
