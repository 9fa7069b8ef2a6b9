package models

import "time"

// MarketSnapshot is the latest observed quote for an item.
type MarketSnapshot struct {
	ItemID    int64     `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	LastPrice float64   `json:"last_price"`
	LastHigh  float64   `json:"last_high"`
	LastLow   float64   `json:"last_low"`
	Margin    float64   `json:"margin"`
	Volume5m  int64     `json:"volume_5m"`
	Volume1h  int64     `json:"volume_1h"`
	AsOf      time.Time `json:"as_of"`
}

// SnapshotBatch is the ingest stream payload.
type SnapshotBatch struct {
	CollectedAt time.Time        `json:"collected_at"`
	Snapshots   []MarketSnapshot `json:"snapshots"`
}

// Opportunity is a sized, scored flip derived from a snapshot.
type Opportunity struct {
	ItemID       int64   `json:"item_id"`
	ItemName     string  `json:"item_name,omitempty"`
	BuyAt        float64 `json:"buy_at"`
	SellAt       float64 `json:"sell_at"`
	SpreadPct    float64 `json:"spread_pct"`
	SuggestedQty int64   `json:"suggested_qty"`
	EstProfit    float64 `json:"est_profit"`
	Score        float64 `json:"score"`
}

// Item is a tradeable item from the candidate pool.
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	BuyLimit int64  `json:"buy_limit"`
	// BotClaim marks items flagged upstream as suppressed by bot dumping.
	BotClaim bool `json:"bot_claim"`
}
