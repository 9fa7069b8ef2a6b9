package advisory

import (
	"context"
	"fmt"
	"strings"

	"FlipDesk/internal/domain/models"
	domsvc "FlipDesk/internal/domain/service"
)

// TemplateAdvisor renders explanations from the numbers alone. It is the
// default port and never fails.
type TemplateAdvisor struct{}

func NewTemplateAdvisor() *TemplateAdvisor { return &TemplateAdvisor{} }

func (TemplateAdvisor) ExplainSignal(_ context.Context, s models.InvestmentSignal) (models.Advice, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Trading %.1f%% below its 90-day average of %.0f.", s.MediumTerm.CurrentDeviationPct, s.MediumTerm.AvgPrice)
	fmt.Fprintf(&b, " Target %.0f (+%.1f%%), stop %.0f.", s.TargetSellPrice, s.ReversionPotentialPct, s.StopLoss)
	fmt.Fprintf(&b, " Bot likelihood %s, liquidity %.0f/100, confidence %.0f%%.", s.BotLikelihood, s.LiquidityScore, s.ConfidenceScore)
	if s.Features.Momentum == models.MomentumDeceleratingDown {
		b.WriteString(" Selling pressure is easing.")
	}
	return models.Advice{
		Reasoning: b.String(),
		Timeframe: s.EstimatedHoldingPeriod,
		Guidance: &models.PriceGuidance{
			EntryOptimal:     s.EntryLow,
			ExitConservative: s.TargetSellPrice,
			ExitAggressive:   s.StretchSellPrice,
			TriggerStop:      s.StopLoss,
		},
	}, nil
}

func (TemplateAdvisor) ExplainPositions(_ context.Context, positions []models.PositionAdvice) (map[int64]models.Advice, error) {
	out := make(map[int64]models.Advice, len(positions))
	for _, p := range positions {
		text := fmt.Sprintf("%s at %.1f%% (%s).", strings.ReplaceAll(string(p.Action), "_", " "), p.ProfitPct, strings.Join(p.Drivers, ", "))
		if p.TargetSellPrice > 0 {
			text += fmt.Sprintf(" %.0f%% of the way to %.0f.", p.ProgressPct, p.TargetSellPrice)
		}
		out[p.ItemID] = models.Advice{Reasoning: text}
	}
	return out, nil
}

var _ domsvc.AdvisoryPort = TemplateAdvisor{}
