package models

import "time"

// FunnelCounts tracks how many candidates each stage removed.
type FunnelCounts struct {
	Candidates      int                `json:"candidates"`
	NoData          int                `json:"no_data"`
	RejectedStage0  int                `json:"rejected_stage0"`
	RejectedStage1  int                `json:"rejected_stage1"`
	RejectedStage2  int                `json:"rejected_stage2"`
	Accepted        int                `json:"accepted"`
	RejectedReasons map[ReasonCode]int `json:"rejected_reasons"`
}

// ScanSummary describes the accepted opportunities of a scan.
type ScanSummary struct {
	TotalOpportunities   int           `json:"total_opportunities"`
	AverageConfidence    float64       `json:"average_confidence"`
	AveragePotentialPct  float64       `json:"average_potential_pct"`
	TotalSuggestedInvest float64       `json:"total_suggested_investment"`
	GradeDistribution    map[Grade]int `json:"grade_distribution"`
}

// ScanResult is the ranked output of a reversion scan over the item pool.
type ScanResult struct {
	RunID         string             `json:"run_id"`
	StartedAt     time.Time          `json:"started_at"`
	Duration      time.Duration      `json:"duration"`
	Opportunities []InvestmentSignal `json:"opportunities"`
	Funnel        FunnelCounts       `json:"funnel"`
	Summary       ScanSummary        `json:"summary"`
	Errors        map[string]string  `json:"errors,omitempty"`
}

// Advice is the free-text output of the advisory service. Informational only.
type Advice struct {
	Reasoning string         `json:"reasoning"`
	Timeframe string         `json:"timeframe,omitempty"`
	Guidance  *PriceGuidance `json:"guidance,omitempty"`
}

// PriceGuidance are optional price levels suggested by the advisory service.
type PriceGuidance struct {
	EntryOptimal     float64  `json:"entry_optimal"`
	ExitConservative float64  `json:"exit_conservative"`
	ExitAggressive   float64  `json:"exit_aggressive"`
	TriggerStop      float64  `json:"trigger_stop"`
	Adjusted         bool     `json:"adjusted"`
	Violations       []string `json:"violations,omitempty"`
}

// ItemAnalysis bundles a verdict with its optional explanation.
type ItemAnalysis struct {
	Verdict Verdict `json:"verdict"`
	Advice  *Advice `json:"advice,omitempty"`
}
