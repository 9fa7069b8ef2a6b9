package features

import (
	"math"
	"time"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

const day = 24 * time.Hour

// Options tune the extractor. Zero values fall back to defaults.
type Options struct {
	StabilityWindow   time.Duration
	TrendWindow       time.Duration
	ShiftThresholdPct float64
	ShiftLag          int
	MomentumWindow    int
	FlatMomentumPct   float64
	TrendBandPct      float64
	StabilityCeiling  float64
	StableDays        int
}

// DefaultOptions returns the standard daily-series settings.
func DefaultOptions() Options {
	return Options{
		StabilityWindow:   30 * day,
		TrendWindow:       90 * day,
		ShiftThresholdPct: 15,
		ShiftLag:          3,
		MomentumWindow:    7,
		FlatMomentumPct:   2,
		TrendBandPct:      5,
		StabilityCeiling:  70,
		StableDays:        90,
	}
}

type Option func(*Options)

func WithStabilityCeiling(v float64) Option { return func(o *Options) { o.StabilityCeiling = v } }
func WithStableDays(d int) Option           { return func(o *Options) { o.StableDays = d } }
func WithShiftThreshold(pct float64) Option { return func(o *Options) { o.ShiftThresholdPct = pct } }

// Extractor derives TemporalFeatures from a daily price series.
type Extractor struct {
	opts Options
}

func NewExtractor(opts ...Option) *Extractor {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Extractor{opts: o}
}

// Extract computes all features. Windows are measured back from the newest
// point, so the result depends only on the series.
func (e *Extractor) Extract(series models.PriceSeries) models.TemporalFeatures {
	f := models.TemporalFeatures{
		Stability:           e.Stability(series),
		TrendDirection:      e.Trend(series),
		DaysSinceMajorShift: e.DaysSinceMajorShift(series),
		Momentum:            e.Momentum(series),
	}
	f.StructuralRiskLevel = ClassifyRisk(f, e.opts.StabilityCeiling, e.opts.StableDays)
	return f
}

// Stability is 100 minus five times the CV% of the trailing window, clamped to 0..100.
func (e *Extractor) Stability(series models.PriceSeries) float64 {
	last, ok := series.Last()
	if !ok {
		return 50
	}
	window := series.Since(last.Timestamp.Add(-e.opts.StabilityWindow)).Prices()
	if len(window) < 3 {
		return 50
	}
	cv := stats.CoefficientOfVariation(window)
	return math.Round(stats.Clamp(100-cv*5, 0, 100))
}

// DaysSinceMajorShift walks back from the newest point looking for a lagged
// move at or above the shift threshold. Without one it reports the span.
func (e *Extractor) DaysSinceMajorShift(series models.PriceSeries) int {
	lag := e.opts.ShiftLag
	if lag < 1 {
		lag = 1
	}
	last, ok := series.Last()
	if !ok {
		return 0
	}
	for i := len(series) - 1; i >= lag; i-- {
		prev := series[i-lag].Price
		if prev <= 0 {
			continue
		}
		if math.Abs(stats.ChangePct(prev, series[i].Price)) >= e.opts.ShiftThresholdPct {
			return int(last.Timestamp.Sub(series[i].Timestamp) / day)
		}
	}
	return series.SpanDays()
}

// Trend compares the last third of the trailing window against the first third.
func (e *Extractor) Trend(series models.PriceSeries) models.TrendDirection {
	last, ok := series.Last()
	if !ok {
		return models.TrendStable
	}
	prices := series.Since(last.Timestamp.Add(-e.opts.TrendWindow)).Prices()
	if len(prices) < 10 {
		return models.TrendStable
	}
	third := len(prices) / 3
	first := stats.Mean(prices[:third])
	recent := stats.Mean(prices[len(prices)-third:])
	change := stats.ChangePct(first, recent)
	switch {
	case change > e.opts.TrendBandPct:
		return models.TrendRising
	case change < -e.opts.TrendBandPct:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// Momentum compares the change of the latest rolling average with the change
// one window earlier.
func (e *Extractor) Momentum(series models.PriceSeries) models.Momentum {
	w := e.opts.MomentumWindow
	prices := series.Prices()
	if w < 1 || len(prices) < 3*w {
		return models.MomentumFlat
	}
	n := len(prices)
	recentAvg := stats.Mean(prices[n-w:])
	priorAvg := stats.Mean(prices[n-2*w : n-w])
	olderAvg := stats.Mean(prices[n-3*w : n-2*w])

	recent := stats.ChangePct(priorAvg, recentAvg)
	prior := stats.ChangePct(olderAvg, priorAvg)

	switch {
	case math.Abs(recent) < e.opts.FlatMomentumPct:
		return models.MomentumFlat
	case recent > 0 && recent > prior:
		return models.MomentumAcceleratingUp
	case recent > 0:
		return models.MomentumDeceleratingUp
	case recent < prior:
		return models.MomentumAcceleratingDown
	default:
		return models.MomentumDeceleratingDown
	}
}

// ClassifyRisk maps features onto the structural repricing risk level.
// Rules are checked in order: very_high, high, medium, low.
func ClassifyRisk(f models.TemporalFeatures, stabilityCeiling float64, stableDays int) models.RiskLevel {
	switch {
	case f.Stability > stabilityCeiling && f.DaysSinceMajorShift > stableDays:
		return models.RiskVeryHigh
	case f.TrendDirection == models.TrendFalling && f.Momentum == models.MomentumAcceleratingDown:
		return models.RiskHigh
	case f.Stability > stabilityCeiling:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
