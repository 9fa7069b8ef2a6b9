// Package reversion decides whether an item's price is temporarily
// suppressed and, if so, how strong the mean-reversion case is.
package reversion

import (
	"math"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/features"
	"FlipDesk/internal/services/stats"
	"FlipDesk/pkg/config"
)

// Analyzer runs candidates through the three-stage filter. It holds no
// mutable state and is safe for concurrent use.
type Analyzer struct {
	cfg       config.StrategyConfig
	extractor *features.Extractor
}

func NewAnalyzer(cfg config.StrategyConfig) *Analyzer {
	return &Analyzer{
		cfg: cfg,
		extractor: features.NewExtractor(
			features.WithStabilityCeiling(cfg.StabilityCeiling),
			features.WithStableDays(cfg.StableDays),
		),
	}
}

// Extractor exposes the feature extractor configured with the same thresholds.
func (a *Analyzer) Extractor() *features.Extractor { return a.extractor }

// Analyze builds metrics from the series and evaluates them.
func (a *Analyzer) Analyze(item models.Item, series models.PriceSeries) models.Verdict {
	m, reason := a.BuildMetrics(item, series)
	if reason != models.ReasonNone {
		return models.Verdict{ItemID: item.ID, Stage: models.StageData, Reason: reason}
	}
	return a.Evaluate(m)
}

// Signal builds the signal for an item without the stage gates, for
// positions that are already held. It fails only on insufficient history.
func (a *Analyzer) Signal(item models.Item, series models.PriceSeries) (*models.InvestmentSignal, models.ReasonCode) {
	m, reason := a.BuildMetrics(item, series)
	if reason != models.ReasonNone {
		return nil, reason
	}
	sig := a.buildSignal(m, Confidence(m))
	return &sig, models.ReasonNone
}

// Evaluate applies Stage 0, Stage 1 and Stage 2 in order and stops at the
// first rejection.
func (a *Analyzer) Evaluate(m models.SignalMetrics) models.Verdict {
	v := models.Verdict{ItemID: m.ItemID, Metrics: &m}
	if m.CurrentPrice <= 0 {
		v.Stage, v.Reason = models.StageData, models.ReasonInsufficientHistory
		return v
	}
	v.Confidence = Confidence(m)

	if r := a.Prefilter(m); r != models.ReasonNone {
		v.Stage, v.Reason = models.StagePre, r
		return v
	}
	if r := a.StructuralCheck(m.Features, m.BotClaimed); r != models.ReasonNone {
		v.Stage, v.Reason = models.StageRail, r
		return v
	}
	if r := a.QualityGate(m, v.Confidence); r != models.ReasonNone {
		v.Stage, v.Reason = models.StageQuality, r
		return v
	}

	sig := a.buildSignal(m, v.Confidence)
	v.Stage, v.Accepted, v.Signal = models.StageDone, true, &sig
	return v
}

// Prefilter is the cheap quantitative triage.
func (a *Analyzer) Prefilter(m models.SignalMetrics) models.ReasonCode {
	roi := ROI(m)
	switch {
	case roi < a.cfg.MinROIPct:
		return models.ReasonROIBelowMinimum
	case m.TargetPrice/m.CurrentPrice < a.cfg.MinExitRatio:
		return models.ReasonExitRatioBelowMinimum
	case m.CurrentPrice >= m.Avg90:
		return models.ReasonNoSuppression
	case m.ExpectedRecoveryWeeks > a.cfg.MaxHoldWeeks && roi <= a.cfg.LongHoldROIPct:
		return models.ReasonHoldTooLong
	case m.LiquidityScore < a.cfg.MinLiquidity:
		return models.ReasonIlliquid
	}
	return models.ReasonNone
}

// StructuralCheck rejects items that look like a new equilibrium rather than
// a dip. It does not depend on any other stage.
func (a *Analyzer) StructuralCheck(f models.TemporalFeatures, botClaimed bool) models.ReasonCode {
	derived := features.ClassifyRisk(f, a.cfg.StabilityCeiling, a.cfg.StableDays)
	switch {
	case f.StructuralRiskLevel == models.RiskVeryHigh || derived == models.RiskVeryHigh:
		return models.ReasonStructuralRepricing
	case f.DaysSinceMajorShift > a.cfg.StableDays && f.Stability > a.cfg.StabilityCeiling:
		return models.ReasonStableNewEquilibrium
	case f.TrendDirection == models.TrendFalling && f.Momentum == models.MomentumAcceleratingDown:
		return models.ReasonOrganicDecline
	case botClaimed && f.Stability > a.cfg.StabilityCeiling:
		return models.ReasonBotClaimContradicted
	}
	return models.ReasonNone
}

// QualityGate keeps only candidates passing every precision check.
func (a *Analyzer) QualityGate(m models.SignalMetrics, confidence float64) models.ReasonCode {
	switch {
	case ROI(m) < a.cfg.QualityROIPct:
		return models.ReasonROIBelowQualityBar
	case stats.DeviationPct(longTermAnchor(m), m.CurrentPrice) < a.cfg.MinDiscountPct:
		return models.ReasonInsufficientDiscount
	case m.BotLikelihood.Percent() <= a.cfg.MinBotPct || m.BotDumpScore <= 0 || m.CurrentPrice >= m.Avg30:
		return models.ReasonWeakBotEvidence
	case m.LongTermDriftPct >= a.cfg.MaxDriftPct:
		return models.ReasonLongTermDrift
	case m.ExpectedRecoveryWeeks < a.cfg.MinRecoveryWeeks || m.ExpectedRecoveryWeeks > a.cfg.MaxRecoveryWeeks:
		return models.ReasonRecoveryWindowMismatch
	case m.LiquidityScore <= a.cfg.QualityLiquidity:
		return models.ReasonLiquidityBelowQualityBar
	case confidence < a.cfg.MinConfidence:
		return models.ReasonLowConfidence
	}
	return models.ReasonNone
}

// longTermAnchor is the longest window average available.
func longTermAnchor(m models.SignalMetrics) float64 {
	switch {
	case m.Avg365 > 0:
		return m.Avg365
	case m.Avg180 > 0:
		return m.Avg180
	default:
		return m.Avg90
	}
}

func (a *Analyzer) buildSignal(m models.SignalMetrics, confidence float64) models.InvestmentSignal {
	roi := ROI(m)
	cur := m.CurrentPrice
	return models.InvestmentSignal{
		ItemID:                 m.ItemID,
		ItemName:               m.ItemName,
		CurrentPrice:           cur,
		TargetSellPrice:        m.TargetPrice,
		StretchSellPrice:       m.StretchPrice,
		EntryLow:               math.Max(1, math.Round(cur*0.985)),
		EntryHigh:              math.Round(cur * 1.015),
		StopLoss:               m.StopLoss,
		ReversionPotentialPct:  stats.Round(roi, 2),
		ConfidenceScore:        confidence,
		InvestmentGrade:        AssignGrade(confidence, roi, m.LiquidityScore),
		EstimatedHoldingPeriod: HoldingPeriod(m.ExpectedRecoveryWeeks),
		ExpectedRecoveryWeeks:  m.ExpectedRecoveryWeeks,
		LiquidityScore:         m.LiquidityScore,
		BotLikelihood:          m.BotLikelihood,
		SuggestedInvestment:    SuggestedInvestment(confidence, m.LiquidityScore, m.BotDumpScore),
		ShortTerm:              timeframe(m.Avg30, cur),
		MediumTerm:             timeframe(m.Avg90, cur),
		LongTerm:               timeframe(longTermAnchor(m), cur),
		Features:               m.Features,
	}
}

func timeframe(avg, current float64) models.TimeframeStats {
	return models.TimeframeStats{
		AvgPrice:            stats.Round(avg, 2),
		CurrentDeviationPct: stats.Round(stats.DeviationPct(avg, current), 2),
	}
}

// SuggestedInvestment sizes a position from confidence, liquidity and dump strength.
func SuggestedInvestment(confidence, liquidity, dump float64) float64 {
	liqFactor := stats.Clamp(liquidity/90, 0.4, 1.1)
	dumpFactor := 0.7 + dump/200
	return math.Round(stats.Clamp(12_000_000*(confidence/100)*liqFactor*dumpFactor, 500_000, 25_000_000))
}
