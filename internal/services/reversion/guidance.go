package reversion

import (
	"fmt"
	"math"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

// ConstrainGuidance checks advisory-suggested prices against the computed
// signal. Zero fields take the signal's levels. Two or more violations
// discard the suggestion and return the signal's own levels.
func ConstrainGuidance(g models.PriceGuidance, s models.InvestmentSignal) models.PriceGuidance {
	cur := s.CurrentPrice
	entryNow := math.Round(cur)
	var violations []string

	entry := g.EntryOptimal
	switch {
	case entry <= 0:
		entry = entryNow
	case entry > cur*1.15 || entry < cur*0.85:
		violations = append(violations, fmt.Sprintf("entry %.0f is %.1f%% off current %.0f", entry, math.Abs(entry/cur-1)*100, cur))
		entry = stats.Clamp(entry, math.Max(1, cur*0.90), cur*1.10)
	}

	exitCons := g.ExitConservative
	if exitCons == 0 {
		exitCons = s.TargetSellPrice
	}
	if exitCons <= entry {
		violations = append(violations, fmt.Sprintf("conservative exit %.0f <= entry %.0f", exitCons, entry))
		exitCons = s.TargetSellPrice
	} else if exitCons/cur > 5 {
		violations = append(violations, fmt.Sprintf("conservative exit %.0f is %.0f%% above current", exitCons, exitCons/cur*100))
		exitCons = math.Min(s.TargetSellPrice, math.Max(entry*1.2, cur*1.5))
	}

	exitAggr := g.ExitAggressive
	if exitAggr == 0 {
		exitAggr = s.StretchSellPrice
	}
	if exitAggr < exitCons {
		violations = append(violations, fmt.Sprintf("aggressive exit %.0f < conservative %.0f", exitAggr, exitCons))
		exitAggr = s.StretchSellPrice
	}

	stop := g.TriggerStop
	if stop == 0 {
		stop = s.StopLoss
	}
	if stop >= entry {
		violations = append(violations, fmt.Sprintf("stop %.0f >= entry %.0f", stop, entry))
		stop = math.Max(1, math.Round(entry*0.90))
	}

	if len(violations) >= 2 {
		return models.PriceGuidance{
			EntryOptimal:     entryNow,
			ExitConservative: s.TargetSellPrice,
			ExitAggressive:   s.StretchSellPrice,
			TriggerStop:      s.StopLoss,
			Adjusted:         true,
			Violations:       violations,
		}
	}
	return models.PriceGuidance{
		EntryOptimal:     entry,
		ExitConservative: exitCons,
		ExitAggressive:   exitAggr,
		TriggerStop:      stop,
		Adjusted:         len(violations) > 0,
		Violations:       violations,
	}
}
