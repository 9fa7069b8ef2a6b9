package advisory

import (
	"context"
	"fmt"
	"strconv"

	"FlipDesk/internal/domain/models"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/pkg/config"
)

// HTTPAdvisor asks a remote explanation service for reasoning text.
type HTTPAdvisor struct{ base *httpBase }

func NewHTTPAdvisor(cfg *config.Config) *HTTPAdvisor {
	a := cfg.Advisory
	return &HTTPAdvisor{base: newHTTPBase(a.URL, a.Timeout, a.BreakerFailures, a.BreakerTimeout)}
}

type signalRequest struct {
	Signal models.InvestmentSignal `json:"signal"`
}

type adviceResponse struct {
	Reasoning string                `json:"reasoning"`
	Timeframe string                `json:"timeframe"`
	Guidance  *models.PriceGuidance `json:"guidance,omitempty"`
}

type positionsRequest struct {
	Positions []models.PositionAdvice `json:"positions"`
}

type positionsResponse struct {
	// Keyed by item id as a string, JSON objects cannot carry int keys.
	Advice map[string]adviceResponse `json:"advice"`
}

func (a *HTTPAdvisor) ExplainSignal(ctx context.Context, s models.InvestmentSignal) (models.Advice, error) {
	var rr adviceResponse
	if err := a.base.postJSON(ctx, "/explain/signal", signalRequest{Signal: s}, &rr); err != nil {
		return models.Advice{}, fmt.Errorf("explain signal %d: %w", s.ItemID, err)
	}
	return models.Advice{Reasoning: rr.Reasoning, Timeframe: rr.Timeframe, Guidance: rr.Guidance}, nil
}

func (a *HTTPAdvisor) ExplainPositions(ctx context.Context, positions []models.PositionAdvice) (map[int64]models.Advice, error) {
	var rr positionsResponse
	if err := a.base.postJSON(ctx, "/explain/positions", positionsRequest{Positions: positions}, &rr); err != nil {
		return nil, fmt.Errorf("explain positions: %w", err)
	}
	out := make(map[int64]models.Advice, len(rr.Advice))
	for k, v := range rr.Advice {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = models.Advice{Reasoning: v.Reasoning, Timeframe: v.Timeframe}
	}
	return out, nil
}

var _ domsvc.AdvisoryPort = (*HTTPAdvisor)(nil)
