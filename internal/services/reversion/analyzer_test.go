package reversion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/internal/domain/models"
	"FlipDesk/pkg/config"
)

// acceptedMetrics is a dip 30% under the monthly average with a bot dump
// and a recent shift, which clears every stage.
func acceptedMetrics() models.SignalMetrics {
	return models.SignalMetrics{
		ItemID:                42,
		ItemName:              "Zulrah's scales",
		CurrentPrice:          70,
		TargetPrice:           137.2,
		StretchPrice:          145,
		StopLoss:              62,
		Avg7:                  72,
		Avg30:                 100,
		Avg90:                 110,
		Avg180:                115,
		Avg365:                120,
		LiquidityScore:        60,
		BotLikelihood:         models.BotHigh,
		BotClaimed:            true,
		BotDumpScore:          60,
		SupplyStability:       85,
		RecoveryStrength:      40,
		VolatilityRisk:        models.RiskLow,
		DowntrendPenalty:      10,
		LongTermDriftPct:      2,
		ExpectedRecoveryWeeks: 3,
		Features: models.TemporalFeatures{
			Stability:           60,
			TrendDirection:      models.TrendFalling,
			DaysSinceMajorShift: 10,
			Momentum:            models.MomentumDeceleratingDown,
			StructuralRiskLevel: models.RiskLow,
		},
	}
}

func newAnalyzer() *Analyzer { return NewAnalyzer(config.DefaultStrategy()) }

func TestEvaluateAcceptsSuppressedBotDump(t *testing.T) {
	v := newAnalyzer().Evaluate(acceptedMetrics())

	require.True(t, v.Accepted, "reason: %s", v.Reason)
	require.NotNil(t, v.Signal)
	assert.Equal(t, models.StageDone, v.Stage)
	assert.GreaterOrEqual(t, v.Signal.InvestmentGrade.Rank(), models.GradeA.Rank())
	assert.Equal(t, models.GradeAPlus, v.Signal.InvestmentGrade)
	assert.Equal(t, 100.0, v.Signal.ConfidenceScore)
	assert.InDelta(t, 96.0, v.Signal.ReversionPotentialPct, 0.01)
	assert.Equal(t, 137.2, v.Signal.TargetSellPrice)
	assert.Equal(t, 100.0, v.Signal.ShortTerm.AvgPrice)
	assert.InDelta(t, 30.0, v.Signal.ShortTerm.CurrentDeviationPct, 0.01)
	assert.InDelta(t, 41.67, v.Signal.LongTerm.CurrentDeviationPct, 0.01)
	assert.Equal(t, "2-4 weeks", v.Signal.EstimatedHoldingPeriod)
	assert.Equal(t, models.BotHigh, v.Signal.BotLikelihood)
}

func TestStage0RejectsWithoutSuppression(t *testing.T) {
	m := acceptedMetrics()
	m.CurrentPrice = 100
	m.Avg90 = 95
	m.TargetPrice = 150

	v := newAnalyzer().Evaluate(m)

	assert.False(t, v.Accepted)
	assert.Equal(t, models.StagePre, v.Stage)
	assert.Equal(t, models.ReasonNoSuppression, v.Reason)
	assert.Nil(t, v.Signal)
}

func TestStage0Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.SignalMetrics)
		want   models.ReasonCode
	}{
		{"roi", func(m *models.SignalMetrics) { m.TargetPrice = 75 }, models.ReasonROIBelowMinimum},
		{"exit ratio", func(m *models.SignalMetrics) { m.TargetPrice = 77.7 }, models.ReasonExitRatioBelowMinimum},
		{"hold too long", func(m *models.SignalMetrics) { m.TargetPrice = 98; m.ExpectedRecoveryWeeks = 8 }, models.ReasonHoldTooLong},
		{"illiquid", func(m *models.SignalMetrics) { m.LiquidityScore = 20 }, models.ReasonIlliquid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := acceptedMetrics()
			tc.mutate(&m)
			v := newAnalyzer().Evaluate(m)
			assert.Equal(t, models.StagePre, v.Stage)
			assert.Equal(t, tc.want, v.Reason)
		})
	}
}

func TestLongHoldAllowedForLargeROI(t *testing.T) {
	m := acceptedMetrics()
	m.ExpectedRecoveryWeeks = 8

	v := newAnalyzer().Evaluate(m)

	assert.Equal(t, models.StageQuality, v.Stage)
	assert.Equal(t, models.ReasonRecoveryWindowMismatch, v.Reason)
}

func TestStage1RejectsStableNewEquilibrium(t *testing.T) {
	m := acceptedMetrics()
	m.Features = models.TemporalFeatures{
		Stability:           85,
		DaysSinceMajorShift: 120,
		TrendDirection:      models.TrendStable,
		Momentum:            models.MomentumFlat,
	}

	v := newAnalyzer().Evaluate(m)

	assert.False(t, v.Accepted)
	assert.Equal(t, models.StageRail, v.Stage)
	assert.Equal(t, models.ReasonStructuralRepricing, v.Reason)
}

func TestStage1Rejections(t *testing.T) {
	a := newAnalyzer()

	assert.Equal(t, models.ReasonOrganicDecline, a.StructuralCheck(models.TemporalFeatures{
		Stability: 30, TrendDirection: models.TrendFalling, Momentum: models.MomentumAcceleratingDown,
	}, false))
	assert.Equal(t, models.ReasonBotClaimContradicted, a.StructuralCheck(models.TemporalFeatures{
		Stability: 80, DaysSinceMajorShift: 20,
	}, true))
	assert.Equal(t, models.ReasonNone, a.StructuralCheck(models.TemporalFeatures{
		Stability: 80, DaysSinceMajorShift: 20,
	}, false))
}

func TestFlatSeriesWithBotClaimIsStructuralRepricing(t *testing.T) {
	a := newAnalyzer()
	series := dailySeries(repeat(250, 210)...)

	f := a.Extractor().Extract(series)
	assert.Equal(t, models.ReasonStructuralRepricing, a.StructuralCheck(f, true))

	m := acceptedMetrics()
	m.BotClaimed = true
	m.Features = f
	v := a.Evaluate(m)
	assert.Equal(t, models.StageRail, v.Stage)
	assert.Equal(t, models.ReasonStructuralRepricing, v.Reason)
}

func TestStage2Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.SignalMetrics)
		want   models.ReasonCode
	}{
		{"quality roi", func(m *models.SignalMetrics) { m.TargetPrice = 79.1 }, models.ReasonROIBelowQualityBar},
		{"discount", func(m *models.SignalMetrics) { m.Avg365 = 80; m.Avg180 = 80 }, models.ReasonInsufficientDiscount},
		{"bot likelihood", func(m *models.SignalMetrics) { m.BotLikelihood = models.BotMedium }, models.ReasonWeakBotEvidence},
		{"no dump", func(m *models.SignalMetrics) { m.BotDumpScore = 0 }, models.ReasonWeakBotEvidence},
		{"drift", func(m *models.SignalMetrics) { m.LongTermDriftPct = 7 }, models.ReasonLongTermDrift},
		{"recovery", func(m *models.SignalMetrics) { m.ExpectedRecoveryWeeks = 5 }, models.ReasonRecoveryWindowMismatch},
		{"liquidity", func(m *models.SignalMetrics) { m.LiquidityScore = 40 }, models.ReasonLiquidityBelowQualityBar},
		{"confidence", func(m *models.SignalMetrics) { m.DowntrendPenalty = 70 }, models.ReasonLowConfidence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := acceptedMetrics()
			tc.mutate(&m)
			v := newAnalyzer().Evaluate(m)
			assert.Equal(t, models.StageQuality, v.Stage)
			assert.Equal(t, tc.want, v.Reason)
		})
	}
}

func TestAnalyzeShortSeries(t *testing.T) {
	v := newAnalyzer().Analyze(models.Item{ID: 7}, dailySeries(repeat(100, 10)...))

	assert.Equal(t, models.StageData, v.Stage)
	assert.Equal(t, models.ReasonInsufficientHistory, v.Reason)
	assert.Nil(t, v.Signal)
}

func TestBuildMetricsFromSeries(t *testing.T) {
	prices := concat(repeat(120, 275), repeat(110, 60), repeat(70, 30))
	m, reason := newAnalyzer().BuildMetrics(models.Item{ID: 1, BotClaim: true}, dailySeries(prices...))

	require.Equal(t, models.ReasonNone, reason)
	assert.Equal(t, 70.0, m.CurrentPrice)
	assert.InDelta(t, 114.25, m.Avg365, 0.01)
	assert.Equal(t, 113.0, m.TargetPrice)
	assert.Equal(t, 27, m.Features.DaysSinceMajorShift)
	assert.InDelta(t, 3.235, m.LongTermDriftPct, 0.01)
	assert.Equal(t, models.BotVeryHigh, m.BotLikelihood)
	assert.True(t, m.BotClaimed)
	assert.Equal(t, 15.0, m.LiquidityScore)
}

// dipSeries is a year at 1000 that dropped to 700 a month ago, ends at 696,
// and trades heavily over the last week.
func dipSeries() models.PriceSeries {
	prices := concat(repeat(1000, 330), repeat(700, 35), []float64{696})
	series := dailySeries(prices...)
	for k := range series {
		vol := int64(3000)
		if k >= 358 {
			vol = 20000
		}
		series[k].Volume = &vol
	}
	return series
}

func TestAnalyzeAcceptsRealisticDip(t *testing.T) {
	v := newAnalyzer().Analyze(models.Item{ID: 11, Name: "Dragon bones"}, dipSeries())

	require.True(t, v.Accepted, "stage %s reason %s", v.Stage, v.Reason)
	require.NotNil(t, v.Signal)
	assert.Equal(t, models.StageDone, v.Stage)
	assert.Equal(t, 696.0, v.Signal.CurrentPrice)
	assert.Equal(t, 961.0, v.Signal.TargetSellPrice)
	assert.Equal(t, 647.0, v.Signal.StopLoss)
	assert.Equal(t, 3, v.Signal.ExpectedRecoveryWeeks)
	assert.Equal(t, models.BotVeryHigh, v.Signal.BotLikelihood)
	assert.Equal(t, 90.0, v.Signal.LiquidityScore)
	assert.GreaterOrEqual(t, v.Signal.ConfidenceScore, 60.0)
	assert.Equal(t, models.RiskMedium, v.Signal.Features.StructuralRiskLevel)
}

func TestSignalSkipsStageGates(t *testing.T) {
	a := newAnalyzer()
	flat := dailySeries(repeat(250, 120)...)

	v := a.Analyze(models.Item{ID: 3}, flat)
	require.False(t, v.Accepted)

	sig, reason := a.Signal(models.Item{ID: 3}, flat)
	require.NotNil(t, sig)
	assert.Equal(t, models.ReasonNone, reason)
	assert.Equal(t, 250.0, sig.CurrentPrice)
	assert.Equal(t, models.RiskVeryHigh, sig.Features.StructuralRiskLevel)

	sig, reason = a.Signal(models.Item{ID: 3}, dailySeries(repeat(250, 5)...))
	assert.Nil(t, sig)
	assert.Equal(t, models.ReasonInsufficientHistory, reason)
}

func TestAssignGrade(t *testing.T) {
	cases := []struct {
		conf, roi, liq float64
		want           models.Grade
	}{
		{95, 45, 80, models.GradeAPlus},
		{95, 30, 80, models.GradeA},
		{70, 22, 50, models.GradeB},
		{50, 20, 60, models.GradeC},
		{45, 5, 40, models.GradeD},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AssignGrade(tc.conf, tc.roi, tc.liq), "conf=%v roi=%v liq=%v", tc.conf, tc.roi, tc.liq)
	}
}

func TestLadders(t *testing.T) {
	assert.Equal(t, 100.0, LiquidityScore(20000))
	assert.Equal(t, 60.0, LiquidityScore(1500))
	assert.Equal(t, 15.0, LiquidityScore(0))

	assert.Equal(t, "1-2 weeks", HoldingPeriod(2))
	assert.Equal(t, "1-2 months", HoldingPeriod(6))
	assert.Equal(t, "3-6 months", HoldingPeriod(20))

	like, supply := BotLikelihoodOf(repeat(10, 10))
	assert.Equal(t, models.BotLow, like)
	assert.Equal(t, 50.0, supply)
}

var origin = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(prices ...float64) models.PriceSeries {
	out := make(models.PriceSeries, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Timestamp: origin.Add(time.Duration(i) * day), Price: p}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
