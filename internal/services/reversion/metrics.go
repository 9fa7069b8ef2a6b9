package reversion

import (
	"math"
	"time"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

const day = 24 * time.Hour

// MinHistoryPoints is the shortest daily series the builder will analyze.
const MinHistoryPoints = 30

// window holds the statistics of one lookback window.
type window struct {
	avg       float64
	vol       float64
	volumeAvg float64
	n         int
}

func windowStats(series models.PriceSeries, asOf time.Time, days int) window {
	pts := series.Since(asOf.Add(-time.Duration(days) * day))
	if len(pts) == 0 {
		return window{}
	}
	prices := pts.Prices()
	return window{
		avg:       stats.Mean(prices),
		vol:       stats.StdDev(prices),
		volumeAvg: stats.Mean(pts.Volumes()),
		n:         len(pts),
	}
}

// BuildMetrics derives the decision inputs for one item from its daily series.
// It returns insufficient_history when the series is too short to judge.
func (a *Analyzer) BuildMetrics(item models.Item, series models.PriceSeries) (models.SignalMetrics, models.ReasonCode) {
	last, ok := series.Last()
	if !ok || len(series) < MinHistoryPoints || last.Price <= 0 {
		return models.SignalMetrics{ItemID: item.ID, ItemName: item.Name}, models.ReasonInsufficientHistory
	}
	asOf := last.Timestamp
	current := last.Price

	w7 := windowStats(series, asOf, 7)
	w30 := windowStats(series, asOf, 30)
	w90 := windowStats(series, asOf, 90)
	w180 := windowStats(series, asOf, 180)
	w365 := windowStats(series, asOf, 365)

	dev7 := stats.DeviationPct(w7.avg, current)
	dev30 := stats.DeviationPct(w30.avg, current)
	dev90 := stats.DeviationPct(w90.avg, current)
	dev365 := stats.DeviationPct(w365.avg, current)
	longDev := longDeviation(w180.avg, w365.avg, current)

	prices := series.Prices()
	likelihood, supplyStability := BotLikelihoodOf(prices)

	shortShock := math.Max(0, dev7-dev30)
	mediumGap := math.Max(0, dev30-dev90)
	longGap := math.Max(0, dev90-dev365)
	volumeSpike := 1.0
	if w30.volumeAvg > 0 {
		volumeSpike = w7.volumeAvg / math.Max(1, w30.volumeAvg)
	}
	dump := BotDumpScore(shortShock, mediumGap, longGap, volumeSpike, likelihood, supplyStability)

	rev := DetectReversal(prices)
	recovery := rev.Strength
	if rev.Support {
		recovery += 12
	}
	recovery = stats.Clamp(recovery+math.Max(0, longDev-shortShock)*0.4, 0, 100)

	anchor := math.Max(w90.avg, math.Max(w180.avg, w365.avg))
	exitBase := math.Round(math.Max(current*1.06, anchor*0.99))
	exitStretch := math.Round(math.Max(exitBase*1.05, anchor*1.03))
	stop := math.Max(1, math.Round(math.Min(current*0.93, anchor*0.88)))

	f := a.extractor.Extract(series)

	m := models.SignalMetrics{
		ItemID:           item.ID,
		ItemName:         item.Name,
		CurrentPrice:     current,
		TargetPrice:      exitBase,
		StretchPrice:     exitStretch,
		StopLoss:         stop,
		Avg7:             w7.avg,
		Avg30:            w30.avg,
		Avg90:            w90.avg,
		Avg180:           w180.avg,
		Avg365:           w365.avg,
		LiquidityScore:   LiquidityScore(w30.volumeAvg),
		BotLikelihood:    likelihood,
		BotClaimed:       item.BotClaim,
		BotDumpScore:     dump,
		SupplyStability:  supplyStability,
		RecoveryStrength: recovery,
		VolatilityRisk:   VolatilityRisk(w7.vol, w90.vol, current),
		DowntrendPenalty: DowntrendPenalty(prices, likelihood),
		LongTermDriftPct: LongTermDrift(series, asOf),
		Features:         f,
	}
	m.ExpectedRecoveryWeeks = RecoveryWeeks(m)
	return m, models.ReasonNone
}

func mediumDeviation(avg30, avg90, current float64) float64 {
	return math.Max(0, math.Max(stats.DeviationPct(avg90, current), stats.DeviationPct(avg30, current)))
}

func longDeviation(avg180, avg365, current float64) float64 {
	return math.Max(0, math.Max(stats.DeviationPct(avg365, current), stats.DeviationPct(avg180, current)))
}

// BotLikelihoodOf grades how mechanically flat the last 30 points are.
// Fewer than 30 points yields low likelihood and neutral stability.
func BotLikelihoodOf(prices []float64) (models.BotLikelihood, float64) {
	if len(prices) < 30 {
		return models.BotLow, 50
	}
	cv := stats.CoefficientOfVariation(stats.Tail(prices, 30))
	supply := stats.Clamp(100-cv*2, 0, 100)
	switch {
	case cv < 5:
		return models.BotVeryHigh, supply
	case cv < 10:
		return models.BotHigh, supply
	case cv < 20:
		return models.BotMedium, supply
	default:
		return models.BotLow, supply
	}
}

// BotDumpScore weighs recent shocks, gaps between windows and volume spikes.
func BotDumpScore(shortShock, mediumGap, longGap, volumeSpike float64, likelihood models.BotLikelihood, supplyStability float64) float64 {
	score := shortShock*2 + mediumGap*2.5 + longGap*2.5
	if volumeSpike > 1 {
		score += (volumeSpike - 1) * 35
	}
	switch likelihood {
	case models.BotVeryHigh:
		score += 20
	case models.BotHigh:
		score += 15
	case models.BotMedium:
		score += 8
	}
	score += math.Max(0, supplyStability-60) * 0.2
	return stats.Clamp(score, 0, 100)
}

// LiquidityScore maps average daily volume onto a 0-100 ladder.
func LiquidityScore(volumeAvg float64) float64 {
	switch {
	case volumeAvg > 10000:
		return 100
	case volumeAvg > 5000:
		return 90
	case volumeAvg > 2000:
		return 75
	case volumeAvg > 1000:
		return 60
	case volumeAvg > 500:
		return 45
	case volumeAvg > 100:
		return 30
	default:
		return 15
	}
}

// VolatilityRisk averages short and long volatility relative to price.
func VolatilityRisk(shortVol, longVol, price float64) models.RiskLevel {
	if price <= 0 {
		return models.RiskHigh
	}
	pct := (shortVol/price*100 + longVol/price*100) / 2
	switch {
	case pct < 5:
		return models.RiskLow
	case pct < 15:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// Reversal describes whether a decline is turning.
type Reversal struct {
	Reversing bool
	Strength  float64
	Support   bool
}

// DetectReversal needs 60 points and looks at the last 30 for an upward fit
// and the last 10 for a tight range.
func DetectReversal(prices []float64) Reversal {
	if len(prices) < 60 {
		return Reversal{}
	}
	recent := stats.Tail(prices, 30)
	slope, _ := stats.Slope(recent)
	rising := slope > 0.1
	var strength float64
	if rising {
		strength = math.Round(math.Min(100, math.Max(slope*50, 20)))
	}
	lo, hi := stats.MinMax(stats.Tail(recent, 10))
	support := lo > 0 && (hi-lo)/lo*100 < 5 && slope >= -0.05
	return Reversal{Reversing: rising || support, Strength: strength, Support: support}
}

// DowntrendPenalty lowers confidence for organic declines over the full window.
// Bot-driven declines get a token penalty since they are the opportunity.
func DowntrendPenalty(prices []float64, likelihood models.BotLikelihood) float64 {
	if len(prices) < 90 {
		return 0
	}
	slope, r2 := stats.Slope(prices)
	if slope >= -0.1 {
		return 0
	}
	strength := math.Round(stats.Clamp(r2*100, 0, 100))
	_, peak := stats.MinMax(prices)
	current := prices[len(prices)-1]
	decline := stats.DeviationPct(peak, current)

	if decline > 20 && strength > 50 {
		if likelihood == models.BotVeryHigh || likelihood == models.BotHigh {
			return 10
		}
		rev := DetectReversal(prices)
		if rev.Reversing && rev.Strength > 70 && rev.Support {
			return math.Max(0, 60-rev.Strength)
		}
		return 70
	}
	if decline > 10 {
		return 20
	}
	return 0
}

// LongTermDrift compares the older half of the year with the newer half,
// excluding the latest 30 days so the dip itself is not counted. Without
// enough history on either side the drift is reported as 100.
func LongTermDrift(series models.PriceSeries, asOf time.Time) float64 {
	start := asOf.Add(-365 * day)
	mid := asOf.Add(-182 * day)
	end := asOf.Add(-30 * day)
	older := series.Between(start, mid).Prices()
	newer := series.Between(mid, end).Prices()
	if len(older) < 10 || len(newer) < 10 {
		return 100
	}
	return math.Abs(stats.ChangePct(stats.Mean(older), stats.Mean(newer)))
}

// RecoveryWeeks estimates how long the reversion takes. Fast bot dumps and
// visible recovery shorten it.
func RecoveryWeeks(m models.SignalMetrics) int {
	med := mediumDeviation(m.Avg30, m.Avg90, m.CurrentPrice)
	long := longDeviation(m.Avg180, m.Avg365, m.CurrentPrice)
	base := math.Max(8, med*0.6+long*0.4)

	speed := 1.25
	switch m.BotLikelihood {
	case models.BotVeryHigh:
		speed = 0.6
	case models.BotHigh:
		speed = 0.75
	case models.BotMedium:
		speed = 1
	}
	mod := 1.15
	switch {
	case m.RecoveryStrength > 60:
		mod = 0.8
	case m.RecoveryStrength > 35:
		mod = 0.95
	}
	return int(math.Max(2, math.Round(base/5*speed*mod)))
}

// Confidence scores how convincing the reversion case is, 0-100.
func Confidence(m models.SignalMetrics) float64 {
	med := mediumDeviation(m.Avg30, m.Avg90, m.CurrentPrice)
	long := longDeviation(m.Avg180, m.Avg365, m.CurrentPrice)
	c := (med*0.65 + long*0.35) * 2.2

	if m.BotDumpScore > 0 {
		c += math.Min(35, m.BotDumpScore*0.35)
	}
	if m.RecoveryStrength > 0 {
		c += math.Min(15, m.RecoveryStrength*0.2)
	}
	switch m.VolatilityRisk {
	case models.RiskLow:
		c += 8
	case models.RiskMedium:
		c -= 8
	default:
		c -= 18
	}
	switch {
	case m.SupplyStability >= 80:
		c += 6
	case m.SupplyStability < 30:
		c -= 8
	}
	switch {
	case m.LiquidityScore >= 70:
		c += 5
	case m.LiquidityScore < 20:
		c -= 5
	}
	c -= m.DowntrendPenalty
	return stats.Round(stats.Clamp(c, 0, 100), 1)
}

// ROI is the percentage gain from current to target.
func ROI(m models.SignalMetrics) float64 {
	if m.CurrentPrice <= 0 {
		return 0
	}
	return (m.TargetPrice - m.CurrentPrice) / m.CurrentPrice * 100
}
