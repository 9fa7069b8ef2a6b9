package models

// ActionType enumerates next-best-action kinds.
type ActionType string

const (
	ActionAdjustStaleOrder ActionType = "adjust_stale_order"
	ActionTakeProfit       ActionType = "take_profit"
	ActionManagePosition   ActionType = "manage_position"
	ActionEntryWindow      ActionType = "entry_window"
	ActionConsiderEntry    ActionType = "consider_entry"
	ActionAlert            ActionType = "alert"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NextBestAction is one entry of the ranked action list.
type NextBestAction struct {
	Type          ActionType `json:"type"`
	ItemID        *int64     `json:"item_id,omitempty"`
	ItemName      string     `json:"item_name"`
	Reason        string     `json:"reason"`
	Priority      Priority   `json:"priority"`
	Score         float64    `json:"score"`
	SuggestedBuy  *float64   `json:"suggested_buy,omitempty"`
	SuggestedSell *float64   `json:"suggested_sell,omitempty"`
	SpreadPct     *float64   `json:"spread_pct,omitempty"`
	SuggestedQty  *int64     `json:"suggested_qty,omitempty"`
	EstProfit     *float64   `json:"est_profit,omitempty"`
}

// NBASummary describes the session's book alongside the action list.
type NBASummary struct {
	OpenPositions             int     `json:"open_positions"`
	QueuedActions             int     `json:"queued_actions"`
	HighPriorityActions       int     `json:"high_priority_actions"`
	EstimatedUnrealizedProfit float64 `json:"estimated_unrealized_profit"`
	TotalRealizedProfit       float64 `json:"total_realized_profit"`
}

// NBAResult is the aggregator output. Errors holds per-source fetch failures.
type NBAResult struct {
	Summary NBASummary           `json:"summary"`
	Queue   []NextBestAction     `json:"queue"`
	Actions []NextBestAction     `json:"actions"`
	Errors  map[string]string    `json:"errors,omitempty"`
	// Skipped lists held items that could not be judged, keyed by item id.
	Skipped map[int64]ReasonCode `json:"skipped,omitempty"`
}
