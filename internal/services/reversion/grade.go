package reversion

import (
	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

type gradeTier struct {
	grade         models.Grade
	minConfidence float64
	minROI        float64
	minComposite  float64
}

// gradeTiers are checked top-down; the first satisfied tier wins.
var gradeTiers = []gradeTier{
	{models.GradeAPlus, 90, 40, 0},
	{models.GradeA, 75, 25, 70},
	{models.GradeBPlus, 65, 20, 60},
	{models.GradeB, 55, 15, 50},
	{models.GradeC, 40, 0, 40},
}

// Composite blends confidence, ROI and liquidity into one 0-100 figure.
func Composite(confidence, roi, liquidity float64) float64 {
	return 0.6*confidence + 0.25*stats.Clamp(roi, 0, 100) + 0.15*liquidity
}

// AssignGrade maps an accepted signal onto A+ .. D.
func AssignGrade(confidence, roi, liquidity float64) models.Grade {
	comp := Composite(confidence, roi, liquidity)
	for _, t := range gradeTiers {
		if confidence >= t.minConfidence && roi >= t.minROI && comp >= t.minComposite {
			return t.grade
		}
	}
	return models.GradeD
}

// HoldingPeriod renders expected recovery weeks as a readable range.
func HoldingPeriod(weeks int) string {
	switch {
	case weeks <= 2:
		return "1-2 weeks"
	case weeks <= 4:
		return "2-4 weeks"
	case weeks <= 8:
		return "1-2 months"
	case weeks <= 12:
		return "2-3 months"
	default:
		return "3-6 months"
	}
}
