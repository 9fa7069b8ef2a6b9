package models

// DeskStrategy selects how desk candidates are weighted.
type DeskStrategy string

const (
	StrategyBalanced       DeskStrategy = "balanced"
	StrategyLiquidityFirst DeskStrategy = "liquidity_first"
	StrategyMeanReversion  DeskStrategy = "mean_reversion"
)

type RiskTolerance string

const (
	RiskToleranceLow    RiskTolerance = "low"
	RiskToleranceMedium RiskTolerance = "medium"
	RiskToleranceHigh   RiskTolerance = "high"
)

// DeskCandidate is a snapshot scored under a desk strategy.
type DeskCandidate struct {
	Opportunity
	Strategy       DeskStrategy `json:"strategy"`
	DeskScore      float64      `json:"desk_score"`
	ProfitPerHour  float64      `json:"profit_per_hour"`
	LiquidityScore float64      `json:"liquidity_score"`
	Flags          []string     `json:"flags"`
}

// DeskResult is a ranked desk for one strategy and risk setting.
type DeskResult struct {
	Strategy   DeskStrategy         `json:"strategy"`
	Risk       RiskTolerance        `json:"risk"`
	Stake      float64              `json:"stake"`
	Candidates []DeskCandidate      `json:"candidates"`
	Errors     map[string]string    `json:"errors,omitempty"`
	Skipped    map[int64]ReasonCode `json:"skipped,omitempty"`
}
