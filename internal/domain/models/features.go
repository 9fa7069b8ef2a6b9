package models

import "time"

type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

type Momentum string

const (
	MomentumAcceleratingUp   Momentum = "accelerating_up"
	MomentumDeceleratingUp   Momentum = "decelerating_up"
	MomentumAcceleratingDown Momentum = "accelerating_down"
	MomentumDeceleratingDown Momentum = "decelerating_down"
	MomentumFlat             Momentum = "flat"
)

// RiskLevel is the structural repricing risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// TemporalFeatures summarise how a price series behaves over time.
// Derived on every request and only ever cached.
type TemporalFeatures struct {
	Stability           float64        `json:"stability"`
	TrendDirection      TrendDirection `json:"trend_direction"`
	DaysSinceMajorShift int            `json:"days_since_major_shift"`
	Momentum            Momentum       `json:"momentum"`
	StructuralRiskLevel RiskLevel      `json:"structural_risk_level"`
}

// FeatureReport is the feature set of one item with the series it came from.
type FeatureReport struct {
	ItemID   int64            `json:"item_id"`
	ItemName string           `json:"item_name,omitempty"`
	Points   int              `json:"points"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Features TemporalFeatures `json:"features"`
}
