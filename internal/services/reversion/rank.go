package reversion

import (
	"math"
	"sort"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

// Rank orders signals by grade, then by reversion potential when the gap is
// wider than five points, then by confidence. The input is not modified.
func Rank(signals []models.InvestmentSignal) []models.InvestmentSignal {
	out := make([]models.InvestmentSignal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.InvestmentGrade.Rank() != b.InvestmentGrade.Rank() {
			return a.InvestmentGrade.Rank() > b.InvestmentGrade.Rank()
		}
		if math.Abs(a.ReversionPotentialPct-b.ReversionPotentialPct) > 5 {
			return a.ReversionPotentialPct > b.ReversionPotentialPct
		}
		return a.ConfidenceScore > b.ConfidenceScore
	})
	return out
}

// FilterViable drops signals below the confidence or potential floors and
// those not actually under any of their averages.
func FilterViable(signals []models.InvestmentSignal, minConfidence, minPotential float64) []models.InvestmentSignal {
	out := make([]models.InvestmentSignal, 0, len(signals))
	for _, s := range signals {
		if s.ConfidenceScore < minConfidence || s.ReversionPotentialPct < minPotential {
			continue
		}
		if maxDeviation(s) < 1 {
			continue
		}
		out = append(out, s)
	}
	return out
}

func maxDeviation(s models.InvestmentSignal) float64 {
	return math.Max(s.ShortTerm.CurrentDeviationPct, math.Max(s.MediumTerm.CurrentDeviationPct, s.LongTerm.CurrentDeviationPct))
}

// Summarize aggregates a ranked list.
func Summarize(signals []models.InvestmentSignal) models.ScanSummary {
	sum := models.ScanSummary{
		TotalOpportunities: len(signals),
		GradeDistribution:  map[models.Grade]int{},
	}
	if len(signals) == 0 {
		return sum
	}
	conf := make([]float64, len(signals))
	pot := make([]float64, len(signals))
	for i, s := range signals {
		conf[i] = s.ConfidenceScore
		pot[i] = s.ReversionPotentialPct
		sum.TotalSuggestedInvest += s.SuggestedInvestment
		sum.GradeDistribution[s.InvestmentGrade]++
	}
	sum.AverageConfidence = stats.Round(stats.Mean(conf), 1)
	sum.AveragePotentialPct = stats.Round(stats.Mean(pot), 1)
	return sum
}
