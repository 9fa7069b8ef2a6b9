package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/internal/domain/models"
	"FlipDesk/pkg/config"
)

func newAdvisor() *Advisor {
	return NewAdvisor(config.DefaultStrategy())
}

func signalFor(target, confidence float64, momentum models.Momentum) *models.InvestmentSignal {
	return &models.InvestmentSignal{
		ItemID:          4151,
		ItemName:        "Abyssal whip",
		TargetSellPrice: target,
		ConfidenceScore: confidence,
		Features: models.TemporalFeatures{
			Momentum:            momentum,
			TrendDirection:      models.TrendFalling,
			StructuralRiskLevel: models.RiskLow,
		},
	}
}

func holding(cost float64) models.Holding {
	return models.Holding{ItemID: 4151, Quantity: 10, CostBasis: cost}
}

func TestProgress(t *testing.T) {
	assert.InDelta(t, 0.5, Progress(150, 100, 200), 1e-9)
	assert.InDelta(t, -0.25, Progress(75, 100, 200), 1e-9)
	assert.Equal(t, 1.0, Progress(80, 100, 100))
	assert.Equal(t, 1.0, Progress(80, 100, 90))
}

func TestClassifyWithoutSignal(t *testing.T) {
	adv := newAdvisor().Classify(holding(100), 105, nil)
	assert.Equal(t, models.ActionHold, adv.Action)
	assert.Equal(t, models.ReasonInsufficientHistory, adv.Reason)
	assert.Equal(t, 5.0, adv.ProfitPct)
	assert.Equal(t, 50.0, adv.CurrentPL)
}

func TestClassifyWithoutSignalStillHonoursStop(t *testing.T) {
	adv := newAdvisor().Classify(holding(200), 100, nil)
	assert.Equal(t, 176.0, adv.StopLossPrice)
	assert.Equal(t, models.ActionSellASAP, adv.Action)
	assert.Equal(t, models.ReasonInsufficientHistory, adv.Reason)
	assert.Equal(t, "stop-loss breached", adv.Drivers[0])
}

func TestClassifyDecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		current  float64
		signal   *models.InvestmentSignal
		expected models.PortfolioAction
	}{
		{"stop loss breached", 100, 88, signalFor(130, 90, models.MomentumFlat), models.ActionSellASAP},
		{"profitable into accelerating drop", 100, 105, signalFor(130, 90, models.MomentumAcceleratingDown), models.ActionSellASAP},
		{"mostly reverted", 100, 126, signalFor(130, 90, models.MomentumFlat), models.ActionSellSoon},
		{"slowing near target", 100, 120, signalFor(130, 90, models.MomentumDeceleratingUp), models.ActionSellSoon},
		{"hold confident winner", 100, 105, signalFor(130, 60, models.MomentumAcceleratingUp), models.ActionHold},
		{"rebound expected", 100, 95, signalFor(130, 61, models.MomentumFlat), models.ActionHoldForRebound},
		{"rebound needs strictly more than threshold", 100, 95, signalFor(130, 60, models.MomentumFlat), models.ActionSellASAP},
		{"weak winner", 100, 105, signalFor(130, 40, models.MomentumFlat), models.ActionSellSoon},
		{"weak loser", 100, 95, signalFor(130, 40, models.MomentumFlat), models.ActionSellASAP},
	}

	a := newAdvisor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := a.Classify(holding(tt.cost), tt.current, tt.signal)
			assert.Equal(t, tt.expected, adv.Action)
			assert.NotEmpty(t, adv.Drivers)
		})
	}
}

func TestClassifyInvalidatedThesis(t *testing.T) {
	a := newAdvisor()

	risky := signalFor(130, 95, models.MomentumFlat)
	risky.Features.StructuralRiskLevel = models.RiskHigh
	assert.Equal(t, models.ActionSellASAP, a.Classify(holding(100), 98, risky).Action)

	deepening := signalFor(130, 95, models.MomentumAcceleratingDown)
	deepening.ShortTerm.CurrentDeviationPct = 20
	deepening.MediumTerm.CurrentDeviationPct = 12
	deepening.LongTerm.CurrentDeviationPct = 5
	adv := a.Classify(holding(100), 98, deepening)
	assert.Equal(t, models.ActionSellASAP, adv.Action)
	assert.Contains(t, adv.Drivers, "thesis invalidated")
}

func TestClassifyIsIdempotent(t *testing.T) {
	a := newAdvisor()
	s := signalFor(140, 72, models.MomentumDeceleratingDown)
	first := a.Classify(holding(100), 93, s)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, a.Classify(holding(100), 93, s))
	}
}

func TestClassifyFillsPL(t *testing.T) {
	adv := newAdvisor().Classify(holding(100), 110, signalFor(150, 80, models.MomentumFlat))
	assert.Equal(t, 100.0, adv.CurrentPL)
	assert.Equal(t, 500.0, adv.TargetPL)
	assert.Equal(t, 0.2, adv.Progress)
	assert.Equal(t, 20.0, adv.ProgressPct)
	assert.Equal(t, 88.0, adv.StopLossPrice)
	assert.Equal(t, "Abyssal whip", adv.ItemName)
}

func TestSummarize(t *testing.T) {
	advice := []models.PositionAdvice{
		{Quantity: 10, CostBasis: 100, CurrentPrice: 110, Action: models.ActionHold},
		{Quantity: 5, CostBasis: 200, CurrentPrice: 180, Action: models.ActionSellASAP},
		{Quantity: 1, CostBasis: 50, CurrentPrice: 60, Action: models.ActionHold},
	}
	sum := Summarize(advice)
	assert.Equal(t, 2060.0, sum.TotalValue)
	assert.Equal(t, 2050.0, sum.TotalCost)
	assert.Equal(t, 10.0, sum.TotalProfit)
	assert.Equal(t, 0.49, sum.ProfitPct)
	assert.Equal(t, 2, sum.Distribution[models.ActionHold])
	assert.Equal(t, 1, sum.Distribution[models.ActionSellASAP])
}
