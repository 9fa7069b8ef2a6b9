package models

import "time"

// Grade is the investment grade of an accepted reversion signal.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// Rank orders grades, A+ highest.
func (g Grade) Rank() int {
	switch g {
	case GradeAPlus:
		return 6
	case GradeA:
		return 5
	case GradeBPlus:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	case GradeD:
		return 1
	}
	return 0
}

// BotLikelihood is the heuristic confidence that automated trading caused a move.
type BotLikelihood string

const (
	BotLow      BotLikelihood = "low"
	BotMedium   BotLikelihood = "medium"
	BotHigh     BotLikelihood = "high"
	BotVeryHigh BotLikelihood = "very_high"
)

// Percent maps the categorical likelihood onto a 0-100 scale.
func (b BotLikelihood) Percent() float64 {
	switch b {
	case BotVeryHigh:
		return 90
	case BotHigh:
		return 75
	case BotMedium:
		return 50
	default:
		return 25
	}
}

// TimeframeStats compares the current price with one window's average.
// CurrentDeviationPct is positive when the price sits below the average.
type TimeframeStats struct {
	AvgPrice            float64 `json:"avg_price"`
	CurrentDeviationPct float64 `json:"current_deviation_pct"`
}

// InvestmentSignal is the scored output of an accepted reversion analysis.
type InvestmentSignal struct {
	ItemID                 int64            `json:"item_id"`
	ItemName               string           `json:"item_name,omitempty"`
	CurrentPrice           float64          `json:"current_price"`
	TargetSellPrice        float64          `json:"target_sell_price"`
	StretchSellPrice       float64          `json:"stretch_sell_price"`
	EntryLow               float64          `json:"entry_low"`
	EntryHigh              float64          `json:"entry_high"`
	StopLoss               float64          `json:"stop_loss"`
	ReversionPotentialPct  float64          `json:"reversion_potential_pct"`
	ConfidenceScore        float64          `json:"confidence_score"`
	InvestmentGrade        Grade            `json:"investment_grade"`
	EstimatedHoldingPeriod string           `json:"estimated_holding_period"`
	ExpectedRecoveryWeeks  int              `json:"expected_recovery_weeks"`
	LiquidityScore         float64          `json:"liquidity_score"`
	BotLikelihood          BotLikelihood    `json:"bot_likelihood"`
	SuggestedInvestment    float64          `json:"suggested_investment"`
	ShortTerm              TimeframeStats   `json:"short_term"`
	MediumTerm             TimeframeStats   `json:"medium_term"`
	LongTerm               TimeframeStats   `json:"long_term"`
	Features               TemporalFeatures `json:"features"`
	AsOf                   time.Time        `json:"as_of"`
}
