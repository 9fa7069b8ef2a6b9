package scoring

import (
	"math"
	"sort"
	"time"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
)

const feeFactor = 0.98

// DeskInput is one snapshot prepared for desk ranking.
type DeskInput struct {
	Snapshot models.MarketSnapshot
	BuyLimit int64 // zero when unknown
	// RevertPrice is the mean-reversion target, used by that strategy only.
	RevertPrice float64
}

type deskProfile struct {
	fillRef      float64
	gphRef       float64
	cyclesBase   float64
	cyclesSlope  float64
	spreadFree   float64 // spread fraction before penalties start
	spreadFlag   float64
	recencyFree  float64 // minutes
	recencyFlag  float64
	recencyNone  float64
	lowVolume    float64
	tinySpreadGP float64
	riskLow      float64
	riskHigh     float64
	wGph         float64
	wFill        float64
	wSpread      float64
	wLimit       float64
	pLowVol      float64
	tag          string
}

var deskProfiles = map[models.DeskStrategy]deskProfile{
	models.StrategyBalanced: {
		fillRef: 250_000, gphRef: 10_000_000, cyclesBase: 0.25, cyclesSlope: 0.75,
		spreadFree: 0.03, spreadFlag: 0.06, recencyFree: 120, recencyFlag: 180, recencyNone: 0.1,
		lowVolume: 5_000, tinySpreadGP: 20, riskLow: 1.25, riskHigh: 0.85,
		wGph: 0.35, wFill: 0.25, wSpread: 0.25, wLimit: 0.15, pLowVol: 0.25,
	},
	models.StrategyLiquidityFirst: {
		fillRef: 300_000, gphRef: 12_000_000, cyclesBase: 0.4, cyclesSlope: 1.1,
		spreadFree: 0.02, spreadFlag: 0.05, recencyFree: 90, recencyFlag: 150, recencyNone: 0.15,
		lowVolume: 10_000, tinySpreadGP: 15, riskLow: 1.2, riskHigh: 0.9,
		wGph: 0.25, wFill: 0.45, wSpread: 0.2, wLimit: 0.1, pLowVol: 0.35,
		tag: "liquidity_first",
	},
}

// logNorm squashes x onto 0..1 relative to a reference magnitude.
func logNorm(x, ref float64) float64 {
	return stats.Clamp(math.Log1p(math.Max(0, x))/math.Log1p(ref), 0, 1)
}

func riskMultiplier(r models.RiskTolerance, p deskProfile) float64 {
	switch r {
	case models.RiskToleranceLow:
		return p.riskLow
	case models.RiskToleranceHigh:
		return p.riskHigh
	default:
		return 1
	}
}

func recencyMinutes(asOf, now time.Time) (float64, bool) {
	if asOf.IsZero() {
		return 0, false
	}
	return math.Max(0, now.Sub(asOf).Minutes()), true
}

// DeskScore rates one snapshot under a strategy. Scores are 0..100.
func DeskScore(in DeskInput, strategy models.DeskStrategy, risk models.RiskTolerance, stake float64, now time.Time) (models.DeskCandidate, bool) {
	snap := in.Snapshot
	buy, sell, ok := PriceLevels(snap)
	if !ok {
		return models.DeskCandidate{}, false
	}
	if strategy == models.StrategyMeanReversion {
		return meanReversionScore(in, buy, risk, stake, now), true
	}
	p, known := deskProfiles[strategy]
	if !known {
		p = deskProfiles[models.StrategyBalanced]
		strategy = models.StrategyBalanced
	}

	mid := (buy + sell) / 2
	spreadGP := sell - buy
	spreadFrac := 0.0
	if mid > 0 {
		spreadFrac = spreadGP / mid
	}
	vol := float64(snap.Volume1h)
	qty := stakeQuantity(stake, mid, in.BuyLimit)

	var flags []string
	if p.tag != "" {
		flags = append(flags, p.tag)
	}

	fill := logNorm(vol, p.fillRef)
	limitScore := 0.35
	if in.BuyLimit > 0 {
		limitScore = stats.Clamp(float64(in.BuyLimit)*mid/math.Max(1, stake), 0, 1)
	}
	gpPerHour := math.Max(0, spreadGP) * float64(qty) * feeFactor * (p.cyclesBase + p.cyclesSlope*fill)
	gph := logNorm(gpPerHour, p.gphRef)

	spreadPenalty := 0.0
	if spreadFrac > p.spreadFree {
		spreadPenalty = stats.Clamp((spreadFrac-p.spreadFree)/0.10, 0, 1)
	}
	if spreadFrac > p.spreadFlag {
		flags = append(flags, "high_spread_pct")
	}

	recencyPenalty := p.recencyNone
	if mins, ok := recencyMinutes(snap.AsOf, now); ok {
		recencyPenalty = 0
		if mins > p.recencyFree {
			recencyPenalty = stats.Clamp((mins-p.recencyFree)/600, 0, 1)
		}
		if mins > p.recencyFlag {
			flags = append(flags, "stale_prints")
		}
	}

	lowVolPenalty := 0.0
	if vol < p.lowVolume {
		lowVolPenalty = stats.Clamp((p.lowVolume-vol)/p.lowVolume, 0, 1)
		flags = append(flags, "low_volume")
	}
	tinyPenalty := 0.0
	if spreadGP < p.tinySpreadGP {
		tinyPenalty = stats.Clamp((p.tinySpreadGP-spreadGP)/p.tinySpreadGP, 0, 1)
		flags = append(flags, "tiny_spread")
	}

	score := p.wGph*gph + p.wFill*fill + p.wSpread*(1-spreadPenalty) + p.wLimit*limitScore
	score -= riskMultiplier(risk, p) * (p.pLowVol*lowVolPenalty + 0.15*tinyPenalty + 0.25*spreadPenalty + 0.15*recencyPenalty)

	return models.DeskCandidate{
		Opportunity: models.Opportunity{
			ItemID:       snap.ItemID,
			ItemName:     snap.ItemName,
			BuyAt:        buy,
			SellAt:       sell,
			SpreadPct:    stats.Round(spreadFrac*100, 2),
			SuggestedQty: qty,
			EstProfit:    EstProfit(buy, sell, qty),
			Score:        stats.Round(stats.Clamp(score, 0, 1)*100, 1),
		},
		Strategy:       strategy,
		DeskScore:      stats.Round(stats.Clamp(score, 0, 1)*100, 1),
		ProfitPerHour:  math.Round(gpPerHour),
		LiquidityScore: stats.Round(fill*100, 1),
		Flags:          flags,
	}, true
}

func meanReversionScore(in DeskInput, entry float64, risk models.RiskTolerance, stake float64, now time.Time) models.DeskCandidate {
	snap := in.Snapshot
	revert := in.RevertPrice
	if revert <= 0 {
		revert = entry
	}
	vol := float64(snap.Volume1h)
	qty := stakeQuantity(stake, entry, in.BuyLimit)
	flags := []string{"mean_reversion"}

	fill := logNorm(vol, 250_000)
	edgePct := 0.0
	if entry > 0 {
		edgePct = (revert - entry) / entry
	}
	edge := stats.Clamp(edgePct/0.20, 0, 1)

	recencyPenalty := 0.15
	if mins, ok := recencyMinutes(snap.AsOf, now); ok {
		recencyPenalty = 0
		if mins > 180 {
			recencyPenalty = stats.Clamp((mins-180)/900, 0, 1)
		}
		if mins > 240 {
			flags = append(flags, "stale_prints")
		}
	}
	lowVolPenalty := 0.0
	if vol < 8_000 {
		lowVolPenalty = stats.Clamp((8_000-vol)/8_000, 0, 1)
		flags = append(flags, "low_volume")
	}
	mult := 1.0
	switch risk {
	case models.RiskToleranceLow:
		mult = 1.25
	case models.RiskToleranceHigh:
		mult = 0.9
	}

	potGP := math.Max(0, revert-entry) * float64(qty) * feeFactor
	score := 0.45*edge + 0.35*fill + 0.2*logNorm(potGP, 50_000_000)
	score -= mult * (0.35*lowVolPenalty + 0.2*recencyPenalty)
	score = stats.Clamp(score, 0, 1)

	return models.DeskCandidate{
		Opportunity: models.Opportunity{
			ItemID:       snap.ItemID,
			ItemName:     snap.ItemName,
			BuyAt:        entry,
			SellAt:       math.Round(revert),
			SpreadPct:    stats.Round(edgePct*100, 2),
			SuggestedQty: qty,
			EstProfit:    math.Round(potGP),
			Score:        stats.Round(score*100, 1),
		},
		Strategy:       models.StrategyMeanReversion,
		DeskScore:      stats.Round(score*100, 1),
		ProfitPerHour:  math.Round(potGP / 24),
		LiquidityScore: stats.Round(fill*100, 1),
		Flags:          flags,
	}
}

func stakeQuantity(stake, price float64, buyLimit int64) int64 {
	if price <= 0 || stake <= 0 {
		return 0
	}
	qty := int64(math.Floor(stake / price))
	if buyLimit > 0 && buyLimit < qty {
		qty = buyLimit
	}
	return qty
}

// RankDesk scores every input and returns the best first, up to limit.
func RankDesk(inputs []DeskInput, strategy models.DeskStrategy, risk models.RiskTolerance, stake float64, limit int, now time.Time) []models.DeskCandidate {
	out := make([]models.DeskCandidate, 0, len(inputs))
	for _, in := range inputs {
		if c, ok := DeskScore(in, strategy, risk, stake, now); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeskScore > out[j].DeskScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
