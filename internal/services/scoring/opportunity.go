// Package scoring turns market snapshots into sized, bounded-score trades.
package scoring

import (
	"math"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/stats"
	"FlipDesk/pkg/config"
)

const (
	// lastResortPad is the half-spread assumed when only a last price exists.
	lastResortPad = 0.002

	spreadScoreMin    = 50
	spreadScoreMax    = 82
	compositeScoreMin = 52
	compositeScoreMax = 82
)

// Scorer sizes and scores opportunities from snapshots.
type Scorer struct {
	minSpreadPct float64
	perFlipCap   float64
	volumeSlice  float64
}

func NewScorer(cfg config.StrategyConfig) *Scorer {
	return &Scorer{
		minSpreadPct: cfg.MinSpreadPct,
		perFlipCap:   cfg.PerFlipCapGP,
		volumeSlice:  cfg.VolumeSlice,
	}
}

// MinSpreadPct is the gate below which spread-only candidates are dropped.
func (s *Scorer) MinSpreadPct() float64 { return s.minSpreadPct }

// SpreadPct is margin as a percentage of last price, capped at 100.
func SpreadPct(snap models.MarketSnapshot) float64 {
	return math.Min(100, snap.Margin/math.Max(snap.LastPrice, 1)*100)
}

// PriceLevels picks buy and sell prices. Each side falls through its own
// tiers: the quoted low (high), last price minus (plus) margin, last price
// padded by 0.2%. ok is false when either side has no usable price.
func PriceLevels(snap models.MarketSnapshot) (buy, sell float64, ok bool) {
	buy, okBuy := priceLevel(snap.LastLow, snap, -1)
	sell, okSell := priceLevel(snap.LastHigh, snap, 1)
	if !okBuy || !okSell {
		return 0, 0, false
	}
	return buy, sell, true
}

// priceLevel resolves one side; dir is -1 for buy and +1 for sell.
func priceLevel(quoted float64, snap models.MarketSnapshot, dir float64) (float64, bool) {
	var p float64
	switch {
	case quoted > 0:
		p = quoted
	case snap.LastPrice > 0 && snap.Margin > 0:
		p = snap.LastPrice + dir*snap.Margin
	case snap.LastPrice > 0:
		p = snap.LastPrice * (1 + dir*lastResortPad)
	default:
		return 0, false
	}
	return math.Max(1, math.Round(p)), true
}

// Quantity is the smallest of the capital cap, the buy limit and the
// fillable slice of hourly volume, never below one.
func (s *Scorer) Quantity(lastPrice float64, buyLimit, volume1h int64) int64 {
	qty := int64(math.Floor(s.perFlipCap / math.Max(lastPrice, 1)))
	if buyLimit > 0 && buyLimit < qty {
		qty = buyLimit
	}
	if volume1h > 0 {
		slice := int64(math.Max(1, math.Floor(float64(volume1h)*s.volumeSlice)))
		if slice < qty {
			qty = slice
		}
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

// SpreadScore scores watch-only candidates from spread alone.
func SpreadScore(spreadPct float64) float64 {
	return stats.Clamp(math.Round(spreadPct*10), spreadScoreMin, spreadScoreMax)
}

// CompositeScore scores held positions from margin relative to price.
func CompositeScore(margin, lastPrice float64) float64 {
	return stats.Clamp(math.Floor(margin/math.Max(lastPrice*0.005, 1))+50, compositeScoreMin, compositeScoreMax)
}

// EstProfit is the non-negative rounded profit of a full round trip.
func EstProfit(buy, sell float64, qty int64) float64 {
	return math.Max(0, math.Round((sell-buy)*float64(qty)))
}

// Score builds a spread-only opportunity. ok is false when the spread is
// below the configured minimum or there is no price.
func (s *Scorer) Score(snap models.MarketSnapshot, buyLimit int64) (models.Opportunity, bool) {
	spread := SpreadPct(snap)
	if spread < s.minSpreadPct {
		return models.Opportunity{}, false
	}
	return s.build(snap, buyLimit, spread, SpreadScore(spread))
}

// ScorePosition builds an opportunity for a held item using the composite score.
func (s *Scorer) ScorePosition(snap models.MarketSnapshot, buyLimit int64) (models.Opportunity, bool) {
	return s.build(snap, buyLimit, SpreadPct(snap), CompositeScore(snap.Margin, snap.LastPrice))
}

func (s *Scorer) build(snap models.MarketSnapshot, buyLimit int64, spread, score float64) (models.Opportunity, bool) {
	buy, sell, ok := PriceLevels(snap)
	if !ok {
		return models.Opportunity{}, false
	}
	qty := s.Quantity(snap.LastPrice, buyLimit, snap.Volume1h)
	return models.Opportunity{
		ItemID:       snap.ItemID,
		ItemName:     snap.ItemName,
		BuyAt:        buy,
		SellAt:       sell,
		SpreadPct:    math.Round(spread*100) / 100,
		SuggestedQty: qty,
		EstProfit:    EstProfit(buy, sell, qty),
		Score:        score,
	}, true
}
