package models

// Requests for desk HTTP endpoints. Defined in domain for consistency and reuse.

type ItemRequest struct {
	ID      int64 `param:"id" validate:"required,gt=0"`
	Explain bool  `query:"explain" json:"explain"`
}

type ScanRequest struct {
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" default:"40" validate:"gte=0,lte=100"`
	MinPotential  float64 `query:"min_potential" json:"min_potential" default:"10" validate:"gte=0"`
	Limit         int     `query:"limit" json:"limit" default:"25" validate:"gte=1,lte=200"`
	Refresh       bool    `query:"refresh" json:"refresh"`
}

type DeskRequest struct {
	Strategy string  `query:"strategy" json:"strategy" default:"balanced" validate:"oneof=balanced liquidity_first mean_reversion"`
	Risk     string  `query:"risk" json:"risk" default:"medium" validate:"oneof=low medium high"`
	Stake    float64 `query:"stake" json:"stake" default:"0" validate:"gte=0"`
	Limit    int     `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type PortfolioRequest struct {
	Holdings []Holding `json:"holdings" validate:"dive"`
	Explain  bool      `json:"explain"`
}
