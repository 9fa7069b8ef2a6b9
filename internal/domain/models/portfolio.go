package models

import "time"

// Position is a held quantity of one item.
type Position struct {
	ItemID           int64   `json:"item_id"`
	ItemName         string  `json:"item_name,omitempty"`
	Quantity         int64   `json:"quantity"`
	AvgBuyPrice      float64 `json:"avg_buy_price"`
	LastPrice        float64 `json:"last_price"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	RealizedProfit   float64 `json:"realized_profit"`
}

type ThesisStatus string

const (
	ThesisWatching ThesisStatus = "watching"
	ThesisOpen     ThesisStatus = "open"
	ThesisClosed   ThesisStatus = "closed"
	ThesisArchived ThesisStatus = "archived"
)

// Live reports whether a thesis in this status can still trigger actions.
func (s ThesisStatus) Live() bool {
	return s == ThesisWatching || s == ThesisOpen
}

// Thesis is a user-declared watch item with optional targets.
type Thesis struct {
	ItemID     int64        `json:"item_id"`
	ItemName   string       `json:"item_name,omitempty"`
	TargetBuy  *float64     `json:"target_buy,omitempty"`
	TargetSell *float64     `json:"target_sell,omitempty"`
	Priority   int          `json:"priority"`
	Active     bool         `json:"active"`
	Status     ThesisStatus `json:"status"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is an unresolved notice raised for the user.
type Alert struct {
	ID       string   `json:"id"`
	ItemID   *int64   `json:"item_id,omitempty"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Order is a broker order attempt.
type Order struct {
	ID        string    `json:"id"`
	ItemID    int64     `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PortfolioAction is the advisor's categorical decision for a holding.
type PortfolioAction string

const (
	ActionSellASAP       PortfolioAction = "sell_asap"
	ActionSellSoon       PortfolioAction = "sell_soon"
	ActionHold           PortfolioAction = "hold"
	ActionHoldForRebound PortfolioAction = "hold_for_rebound"
)

// Holding is a position as submitted for portfolio advice.
type Holding struct {
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	ItemName  string  `json:"item_name"`
	Quantity  int64   `json:"quantity" validate:"gte=0"`
	CostBasis float64 `json:"cost_basis" validate:"gt=0"`
	// CurrentPrice overrides the market quote when positive.
	CurrentPrice float64 `json:"current_price,omitempty" validate:"gte=0"`
}

// PositionAdvice is the deterministic classification of one holding.
type PositionAdvice struct {
	ItemID          int64           `json:"item_id"`
	ItemName        string          `json:"item_name,omitempty"`
	Quantity        int64           `json:"quantity"`
	CostBasis       float64         `json:"cost_basis"`
	CurrentPrice    float64         `json:"current_price"`
	TargetSellPrice float64         `json:"target_sell_price"`
	StopLossPrice   float64         `json:"stop_loss_price"`
	ProfitPct       float64         `json:"profit_pct"`
	Progress        float64         `json:"progress"`
	ProgressPct     float64         `json:"progress_pct"`
	CurrentPL       float64         `json:"current_pl"`
	TargetPL        float64         `json:"target_pl"`
	Confidence      float64         `json:"confidence"`
	Action          PortfolioAction `json:"action"`
	Reason          ReasonCode      `json:"reason,omitempty"`
	Drivers         []string        `json:"drivers"`
	Reasoning       string          `json:"reasoning,omitempty"`
	Timeframe       string          `json:"timeframe,omitempty"`
}

// PortfolioSummary aggregates a batch of advice.
type PortfolioSummary struct {
	TotalValue   float64                 `json:"total_value"`
	TotalCost    float64                 `json:"total_cost"`
	TotalProfit  float64                 `json:"total_profit"`
	ProfitPct    float64                 `json:"profit_pct"`
	Distribution map[PortfolioAction]int `json:"distribution"`
}

// PortfolioAdvice is the advisor's response for a set of holdings.
type PortfolioAdvice struct {
	Positions []PositionAdvice  `json:"positions"`
	Summary   PortfolioSummary  `json:"summary"`
	Errors    map[string]string `json:"errors,omitempty"`
}
