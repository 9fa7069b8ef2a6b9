package models

// ReasonCode explains why a candidate produced no signal.
type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonInsufficientHistory ReasonCode = "insufficient_history"
	ReasonNoSnapshot          ReasonCode = "no_snapshot"

	// stage 0
	ReasonROIBelowMinimum       ReasonCode = "roi_below_minimum"
	ReasonExitRatioBelowMinimum ReasonCode = "exit_ratio_below_minimum"
	ReasonNoSuppression         ReasonCode = "no_suppression"
	ReasonHoldTooLong           ReasonCode = "hold_too_long"
	ReasonIlliquid              ReasonCode = "illiquid"

	// stage 1
	ReasonStructuralRepricing  ReasonCode = "structural_repricing_very_high"
	ReasonStableNewEquilibrium ReasonCode = "stable_new_equilibrium"
	ReasonOrganicDecline       ReasonCode = "organic_decline"
	ReasonBotClaimContradicted ReasonCode = "bot_claim_contradicted"

	// stage 2
	ReasonROIBelowQualityBar       ReasonCode = "roi_below_quality_bar"
	ReasonInsufficientDiscount     ReasonCode = "insufficient_discount"
	ReasonWeakBotEvidence          ReasonCode = "weak_bot_evidence"
	ReasonLongTermDrift            ReasonCode = "long_term_drift"
	ReasonRecoveryWindowMismatch   ReasonCode = "recovery_window_mismatch"
	ReasonLiquidityBelowQualityBar ReasonCode = "liquidity_below_quality_bar"
	ReasonLowConfidence            ReasonCode = "low_confidence"
)

// Stage identifies the analyzer stage that produced a verdict.
type Stage int

const (
	StageData    Stage = -1
	StagePre     Stage = 0
	StageRail    Stage = 1
	StageQuality Stage = 2
	StageDone    Stage = 3
)

func (s Stage) String() string {
	switch s {
	case StageData:
		return "data"
	case StagePre:
		return "stage0"
	case StageRail:
		return "stage1"
	case StageQuality:
		return "stage2"
	case StageDone:
		return "accepted"
	}
	return "unknown"
}

// SignalMetrics are the quantities the analyzer decides on.
// They are derived from a price series but can be supplied directly.
type SignalMetrics struct {
	ItemID       int64   `json:"item_id"`
	ItemName     string  `json:"item_name,omitempty"`
	CurrentPrice float64 `json:"current_price"`
	TargetPrice  float64 `json:"target_price"`
	StretchPrice float64 `json:"stretch_price"`
	StopLoss     float64 `json:"stop_loss"`

	Avg7   float64 `json:"avg_7d"`
	Avg30  float64 `json:"avg_30d"`
	Avg90  float64 `json:"avg_90d"`
	Avg180 float64 `json:"avg_180d"`
	Avg365 float64 `json:"avg_365d"`

	LiquidityScore        float64       `json:"liquidity_score"`
	BotLikelihood         BotLikelihood `json:"bot_likelihood"`
	BotClaimed            bool          `json:"bot_claimed"`
	BotDumpScore          float64       `json:"bot_dump_score"`
	SupplyStability       float64       `json:"supply_stability"`
	RecoveryStrength      float64       `json:"recovery_strength"`
	VolatilityRisk        RiskLevel     `json:"volatility_risk"`
	DowntrendPenalty      float64       `json:"downtrend_penalty"`
	LongTermDriftPct      float64       `json:"long_term_drift_pct"`
	ExpectedRecoveryWeeks int           `json:"expected_recovery_weeks"`

	Features TemporalFeatures `json:"features"`
}

// Verdict is the outcome of running one candidate through the analyzer.
// A rejected verdict carries a reason and no signal.
type Verdict struct {
	ItemID     int64             `json:"item_id"`
	Accepted   bool              `json:"accepted"`
	Stage      Stage             `json:"stage"`
	Reason     ReasonCode        `json:"reason,omitempty"`
	Confidence float64           `json:"confidence"`
	Signal     *InvestmentSignal `json:"signal,omitempty"`
	Metrics    *SignalMetrics    `json:"metrics,omitempty"`
}
