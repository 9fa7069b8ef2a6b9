// Package portfolio classifies held positions against their reversion signal.
package portfolio

import (
	"math"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
	"FlipDesk/pkg/config"
)

// Advisor is a pure decision table; identical inputs give identical advice.
type Advisor struct {
	stopLossPct    float64
	holdConfidence float64
	sellSoonProfit float64
	sellSoonRatio  float64
}

func NewAdvisor(cfg config.StrategyConfig) *Advisor {
	return &Advisor{
		stopLossPct:    cfg.StopLossPct,
		holdConfidence: cfg.HoldConfidence,
		sellSoonProfit: cfg.SellSoonProfit,
		sellSoonRatio:  cfg.SellSoonRatio,
	}
}

// Progress is how far the price has travelled from cost toward target.
// A target at or below cost counts as complete.
func Progress(current, cost, target float64) float64 {
	if target <= cost {
		return 1
	}
	return (current - cost) / (target - cost)
}

// Classify decides the action for one holding. signal may be nil when the
// item has no usable history; current is the latest known price.
func (a *Advisor) Classify(h models.Holding, current float64, signal *models.InvestmentSignal) models.PositionAdvice {
	adv := models.PositionAdvice{
		ItemID:        h.ItemID,
		ItemName:      h.ItemName,
		Quantity:      h.Quantity,
		CostBasis:     h.CostBasis,
		CurrentPrice:  current,
		StopLossPrice: math.Round(h.CostBasis * (1 - a.stopLossPct/100)),
	}
	if h.CostBasis > 0 {
		adv.ProfitPct = stats.Round((current-h.CostBasis)/h.CostBasis*100, 2)
	}
	adv.CurrentPL = math.Round((current - h.CostBasis) * float64(h.Quantity))

	if signal == nil {
		adv.Reason = models.ReasonInsufficientHistory
		if current <= adv.StopLossPrice {
			adv.Action = models.ActionSellASAP
			adv.Drivers = []string{"stop-loss breached", "no usable price history"}
			return adv
		}
		adv.Action = models.ActionHold
		adv.Drivers = []string{"no usable price history"}
		return adv
	}
	if signal.ItemName != "" && adv.ItemName == "" {
		adv.ItemName = signal.ItemName
	}

	adv.TargetSellPrice = signal.TargetSellPrice
	adv.Confidence = signal.ConfidenceScore
	adv.TargetPL = math.Round((signal.TargetSellPrice - h.CostBasis) * float64(h.Quantity))
	adv.Progress = stats.Round(Progress(current, h.CostBasis, signal.TargetSellPrice), 4)
	adv.ProgressPct = stats.Round(adv.Progress*100, 1)

	adv.Action, adv.Drivers = a.decide(adv, signal)
	return adv
}

func (a *Advisor) decide(adv models.PositionAdvice, s *models.InvestmentSignal) (models.PortfolioAction, []string) {
	profitable := adv.CurrentPrice > adv.CostBasis
	underwater := adv.CurrentPrice < adv.CostBasis
	momentum := s.Features.Momentum

	if invalidated(s) {
		return models.ActionSellASAP, []string{"thesis invalidated"}
	}
	if adv.CurrentPrice <= adv.StopLossPrice {
		return models.ActionSellASAP, []string{"stop-loss breached"}
	}
	if profitable && momentum == models.MomentumAcceleratingDown {
		return models.ActionSellASAP, []string{"profitable with reversal under way"}
	}

	if adv.ProfitPct > a.sellSoonProfit && adv.Progress >= a.sellSoonRatio {
		return models.ActionSellSoon, []string{"reversion mostly complete"}
	}
	if profitable && adv.Progress >= 0.6 && momentum == models.MomentumDeceleratingUp {
		return models.ActionSellSoon, []string{"momentum slowing near target"}
	}

	if !underwater && s.ConfidenceScore >= a.holdConfidence {
		return models.ActionHold, []string{"reversion in progress", "signal confidence high"}
	}
	if underwater && s.ConfidenceScore > a.holdConfidence {
		return models.ActionHoldForRebound, []string{"underwater", "signal confidence supports rebound"}
	}

	if underwater {
		return models.ActionSellASAP, []string{"underwater with weak recovery signal"}
	}
	return models.ActionSellSoon, []string{"profitable but signal confidence weak"}
}

// invalidated reports a thesis that no longer describes a temporary dip:
// structural risk is high, or suppression deepens at every horizon while
// momentum accelerates down.
func invalidated(s *models.InvestmentSignal) bool {
	risk := s.Features.StructuralRiskLevel
	if risk == models.RiskHigh || risk == models.RiskVeryHigh {
		return true
	}
	short, med, long := s.ShortTerm.CurrentDeviationPct, s.MediumTerm.CurrentDeviationPct, s.LongTerm.CurrentDeviationPct
	return s.Features.Momentum == models.MomentumAcceleratingDown && long > 0 && short > med && med > long
}

// Summarize totals a batch of advice.
func Summarize(advice []models.PositionAdvice) models.PortfolioSummary {
	sum := models.PortfolioSummary{Distribution: map[models.PortfolioAction]int{}}
	for _, a := range advice {
		sum.TotalValue += a.CurrentPrice * float64(a.Quantity)
		sum.TotalCost += a.CostBasis * float64(a.Quantity)
		sum.Distribution[a.Action]++
	}
	sum.TotalValue = math.Round(sum.TotalValue)
	sum.TotalCost = math.Round(sum.TotalCost)
	sum.TotalProfit = sum.TotalValue - sum.TotalCost
	if sum.TotalCost > 0 {
		sum.ProfitPct = stats.Round(sum.TotalProfit/sum.TotalCost*100, 2)
	}
	return sum
}
