// Package actions builds, deduplicates and ranks next-best-actions from a
// session's book. Everything here is pure; fetching lives in the usecase.
package actions

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/scoring"
	"FlipDesk/pkg/config"
)

const (
	scoreStaleOrder  = 92
	scoreTakeProfit  = 90
	scoreAlertHigh   = 88
	scoreEntryWindow = 76
	scoreAlert       = 62
)

// Inputs is everything one aggregation needs, already fetched.
type Inputs struct {
	Positions   []models.Position
	Theses      []models.Thesis
	Alerts      []models.Alert
	StaleOrders []models.Order
	Snapshots   map[int64]models.MarketSnapshot
	BuyLimits   map[int64]int64
	Now         time.Time
}

// Builder turns Inputs into a ranked action list.
type Builder struct {
	scorer      *scoring.Scorer
	queueSize   int
	visibleSize int
}

func NewBuilder(cfg config.StrategyConfig) *Builder {
	return &Builder{
		scorer:      scoring.NewScorer(cfg),
		queueSize:   cfg.QueueSize,
		visibleSize: cfg.VisibleSize,
	}
}

// PriorityFor maps a score onto a priority band.
func PriorityFor(score float64) models.Priority {
	switch {
	case score >= 85:
		return models.PriorityHigh
	case score >= 55:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Build runs every source builder, then dedupes, ranks and slices. critical
// lists short notices for actions that need the user's attention now.
func (b *Builder) Build(in Inputs) (res models.NBAResult, critical []string) {
	var all []models.NextBestAction

	stale, msgs := StaleOrderActions(in.StaleOrders, in.Now)
	all = append(all, stale...)
	critical = append(critical, msgs...)

	held, msgs := b.PositionActions(in.Positions, in.Theses, in.Snapshots, in.BuyLimits)
	all = append(all, held...)
	critical = append(critical, msgs...)

	all = append(all, b.ThesisActions(in.Theses, in.Snapshots, in.BuyLimits)...)
	all = append(all, AlertActions(in.Alerts)...)

	ranked := Rank(Dedupe(all))

	res.Queue = head(ranked, b.queueSize)
	res.Actions = head(ranked, b.visibleSize)
	res.Summary = summarize(in.Positions, ranked, len(res.Queue))
	return res, critical
}

func head(actions []models.NextBestAction, n int) []models.NextBestAction {
	if n > len(actions) {
		n = len(actions)
	}
	out := make([]models.NextBestAction, n)
	copy(out, actions[:n])
	return out
}

func summarize(positions []models.Position, ranked []models.NextBestAction, queued int) models.NBASummary {
	sum := models.NBASummary{OpenPositions: len(positions), QueuedActions: queued}
	for _, p := range positions {
		sum.EstimatedUnrealizedProfit += p.UnrealizedProfit
		sum.TotalRealizedProfit += p.RealizedProfit
	}
	for _, a := range ranked {
		if a.Priority == models.PriorityHigh {
			sum.HighPriorityActions++
		}
	}
	return sum
}

func newAction(t models.ActionType, itemID *int64, name, reason string, score float64) models.NextBestAction {
	return models.NextBestAction{
		Type:     t,
		ItemID:   itemID,
		ItemName: name,
		Reason:   reason,
		Priority: PriorityFor(score),
		Score:    score,
	}
}

func itemName(name string, id int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("Item %d", id)
}

func gp(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

// StaleOrderActions asks the user to reprice or cancel every stale order.
func StaleOrderActions(orders []models.Order, now time.Time) ([]models.NextBestAction, []string) {
	var (
		out      []models.NextBestAction
		critical []string
	)
	for _, o := range orders {
		id := o.ItemID
		name := itemName(o.ItemName, o.ItemID)
		age := now.Sub(o.CreatedAt).Truncate(time.Minute)
		reason := fmt.Sprintf("Order has been open for %s. Reprice or cancel.", age)
		out = append(out, newAction(models.ActionAdjustStaleOrder, &id, name, reason, scoreStaleOrder))
		critical = append(critical, "Stale order: "+name)
	}
	return out, critical
}

// PositionActions emits take_profit when a matching thesis's sell target is
// reached, otherwise manage_position for long positions with a live margin.
func (b *Builder) PositionActions(positions []models.Position, theses []models.Thesis, snaps map[int64]models.MarketSnapshot, limits map[int64]int64) ([]models.NextBestAction, []string) {
	var (
		out      []models.NextBestAction
		critical []string
	)
	for _, p := range positions {
		id := p.ItemID
		name := itemName(p.ItemName, p.ItemID)
		snap, hasSnap := snaps[p.ItemID]

		last := p.LastPrice
		if hasSnap && snap.LastPrice > 0 {
			last = snap.LastPrice
		}

		if th := findThesis(theses, p.ItemID); th != nil && th.TargetSell != nil && last > 0 && last >= *th.TargetSell {
			reason := fmt.Sprintf("Target sell hit (%s >= %s).", gp(last), gp(*th.TargetSell))
			out = append(out, newAction(models.ActionTakeProfit, &id, name, reason, scoreTakeProfit))
			critical = append(critical, "Exit target hit: "+name)
			continue
		}

		if p.Quantity <= 0 || !hasSnap || snap.Margin <= 0 {
			continue
		}
		snap.LastPrice = last
		opp, ok := b.scorer.ScorePosition(snap, limits[p.ItemID])
		if !ok {
			continue
		}
		reason := fmt.Sprintf("Open position with est. margin %s gp.", gp(snap.Margin))
		a := newAction(models.ActionManagePosition, &id, name, reason, opp.Score)
		a.SuggestedSell = &opp.SellAt
		out = append(out, a)
	}
	return out, critical
}

// findThesis returns the first live thesis for the item.
func findThesis(theses []models.Thesis, itemID int64) *models.Thesis {
	for i := range theses {
		if theses[i].ItemID == itemID && theses[i].Active && theses[i].Status.Live() {
			return &theses[i]
		}
	}
	return nil
}

// ThesisActions surfaces entry windows for live theses with a buy target,
// and spread-gated entry ideas for live theses without any target.
func (b *Builder) ThesisActions(theses []models.Thesis, snaps map[int64]models.MarketSnapshot, limits map[int64]int64) []models.NextBestAction {
	var out []models.NextBestAction
	for _, th := range theses {
		if !th.Active || !th.Status.Live() {
			continue
		}
		snap, ok := snaps[th.ItemID]
		if !ok || snap.LastPrice <= 0 {
			continue
		}
		id := th.ItemID
		name := itemName(th.ItemName, th.ItemID)

		if th.TargetBuy != nil && snap.LastPrice <= *th.TargetBuy {
			reason := fmt.Sprintf("Entry window detected (%s <= %s).", gp(snap.LastPrice), gp(*th.TargetBuy))
			out = append(out, newAction(models.ActionEntryWindow, &id, name, reason, scoreEntryWindow))
			continue
		}
		if th.TargetBuy != nil || th.TargetSell != nil || snap.Margin <= 0 {
			continue
		}

		opp, ok := b.scorer.Score(snap, limits[th.ItemID])
		if !ok {
			continue
		}
		a := newAction(models.ActionConsiderEntry, &id, name, b.entryReason(snap, opp, limits[th.ItemID]), opp.Score)
		a.SuggestedBuy = &opp.BuyAt
		a.SuggestedSell = &opp.SellAt
		a.SpreadPct = &opp.SpreadPct
		a.SuggestedQty = &opp.SuggestedQty
		a.EstProfit = &opp.EstProfit
		out = append(out, a)
	}
	return out
}

func (b *Builder) entryReason(snap models.MarketSnapshot, opp models.Opportunity, limit int64) string {
	parts := []string{
		fmt.Sprintf("Spread ~%.1f%%", opp.SpreadPct),
		fmt.Sprintf("buy ~%s gp", gp(opp.BuyAt)),
		fmt.Sprintf("sell ~%s gp", gp(opp.SellAt)),
		"qty " + humanize.Comma(opp.SuggestedQty),
		fmt.Sprintf("est ~%s gp", gp(opp.EstProfit)),
	}
	if snap.Volume1h > 0 {
		parts = append(parts, "vol 1h ~"+humanize.Comma(snap.Volume1h))
		if b.scorer.Quantity(snap.LastPrice, limit, 0) > opp.SuggestedQty {
			parts = append(parts, "qty capped by liquidity")
		}
	}
	return strings.Join(parts, " · ")
}

// AlertActions turns unresolved alerts into review actions.
func AlertActions(alerts []models.Alert) []models.NextBestAction {
	out := make([]models.NextBestAction, 0, len(alerts))
	for _, al := range alerts {
		score := float64(scoreAlert)
		if al.Severity == models.SeverityHigh {
			score = scoreAlertHigh
		}
		reason := fmt.Sprintf("Open %s alert requires review.", al.Severity)
		out = append(out, newAction(models.ActionAlert, al.ItemID, al.Title, reason, score))
	}
	return out
}

func dedupeKey(a models.NextBestAction) string {
	if a.ItemID != nil {
		return fmt.Sprintf("%s:%d", a.Type, *a.ItemID)
	}
	return fmt.Sprintf("%s:%s", a.Type, a.ItemName)
}

// Dedupe keeps one action per (type, item). A later duplicate replaces the
// kept one only with a strictly higher score, and takes over its slot.
func Dedupe(actions []models.NextBestAction) []models.NextBestAction {
	slot := make(map[string]int, len(actions))
	out := make([]models.NextBestAction, 0, len(actions))
	for _, a := range actions {
		k := dedupeKey(a)
		if i, seen := slot[k]; seen {
			if a.Score > out[i].Score {
				out[i] = a
			}
			continue
		}
		slot[k] = len(out)
		out = append(out, a)
	}
	return out
}

// Rank sorts by score descending; equal scores keep their input order.
func Rank(actions []models.NextBestAction) []models.NextBestAction {
	out := make([]models.NextBestAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
