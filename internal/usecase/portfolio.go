package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/internal/services/portfolio"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/pkg/logger"
)

// PortfolioDeps are the reads the portfolio advisor needs.
type PortfolioDeps struct {
	Positions domrepo.PositionRepository
	Snapshots domrepo.SnapshotProvider
	Series    domrepo.SeriesProvider
	Port      domsvc.AdvisoryPort
	Metrics   domrepo.Metrics
}

// SignalSource builds an ungated signal for a held item.
type SignalSource interface {
	Signal(item models.Item, series models.PriceSeries) (*models.InvestmentSignal, models.ReasonCode)
}

var _ SignalSource = (*reversion.Analyzer)(nil)

type PortfolioUseCase struct {
	deps     PortfolioDeps
	analyzer SignalSource
	advisor  *portfolio.Advisor
	log      *logger.Logger
	window   time.Duration
	workers  int
}

func NewPortfolioUseCase(deps PortfolioDeps, analyzer SignalSource, advisor *portfolio.Advisor, window time.Duration, workers int, lgr *logger.Logger) *PortfolioUseCase {
	return &PortfolioUseCase{deps: deps, analyzer: analyzer, advisor: advisor, window: window, workers: max(1, workers), log: lgr}
}

type holdingItem struct {
	idx     int
	holding models.Holding
}

type holdingResult struct {
	idx    int
	advice models.PositionAdvice
	err    error
}

// Advise classifies the submitted holdings, or the session's open
// positions when none are submitted. A holding whose history cannot be read
// is advised without a signal and reported in Errors.
func (uc *PortfolioUseCase) Advise(ctx context.Context, sess models.SessionContext, req models.PortfolioRequest) (*models.PortfolioAdvice, error) {
	start := time.Now()
	holdings := req.Holdings
	if len(holdings) == 0 {
		positions, err := uc.deps.Positions.ListOpenPositions(ctx, sess)
		if err != nil {
			uc.deps.Metrics.RecordSourceError("positions")
			return nil, fmt.Errorf("list positions: %w", err)
		}
		holdings = holdingsFromPositions(positions)
	}

	out := &models.PortfolioAdvice{Positions: make([]models.PositionAdvice, len(holdings)), Errors: map[string]string{}}
	if len(holdings) == 0 {
		out.Summary = portfolio.Summarize(nil)
		out.Errors = nil
		return out, nil
	}

	quotes := uc.quotes(ctx, holdings, out.Errors)

	itemChan := make(chan holdingItem, len(holdings))
	resultChan := make(chan holdingResult, len(holdings))
	var wg sync.WaitGroup
	for i := 0; i < min(uc.workers, len(holdings)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range itemChan {
				resultChan <- uc.classify(ctx, it, quotes)
			}
		}()
	}
	for i, h := range holdings {
		itemChan <- holdingItem{idx: i, holding: h}
	}
	close(itemChan)
	wg.Wait()
	close(resultChan)

	for r := range resultChan {
		out.Positions[r.idx] = r.advice
		if r.err != nil {
			out.Errors["item:"+strconv.FormatInt(r.advice.ItemID, 10)] = r.err.Error()
		}
	}

	if req.Explain && uc.deps.Port != nil {
		uc.attachReasoning(ctx, out.Positions)
	}

	out.Summary = portfolio.Summarize(out.Positions)
	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	uc.deps.Metrics.RecordLatency("portfolio", time.Since(start).Seconds())
	return out, nil
}

func holdingsFromPositions(positions []models.Position) []models.Holding {
	out := make([]models.Holding, 0, len(positions))
	for _, p := range positions {
		if p.Quantity <= 0 || p.AvgBuyPrice <= 0 {
			continue
		}
		out = append(out, models.Holding{
			ItemID:       p.ItemID,
			ItemName:     p.ItemName,
			Quantity:     p.Quantity,
			CostBasis:    p.AvgBuyPrice,
			CurrentPrice: p.LastPrice,
		})
	}
	return out
}

// quotes returns the latest price per held item that has no override.
func (uc *PortfolioUseCase) quotes(ctx context.Context, holdings []models.Holding, errs map[string]string) map[int64]float64 {
	ids := make([]int64, 0, len(holdings))
	for _, h := range holdings {
		if h.CurrentPrice <= 0 {
			ids = append(ids, h.ItemID)
		}
	}
	out := map[int64]float64{}
	if len(ids) == 0 {
		return out
	}
	snaps, err := uc.deps.Snapshots.GetSnapshots(ctx, ids)
	if err != nil {
		uc.deps.Metrics.RecordSourceError("snapshots")
		uc.log.Warn("portfolio quotes unavailable", logger.Error(err))
		errs["snapshots"] = err.Error()
		return out
	}
	for id, s := range snaps {
		if s.LastPrice > 0 {
			out[id] = s.LastPrice
		}
	}
	return out
}

func (uc *PortfolioUseCase) classify(ctx context.Context, it holdingItem, quotes map[int64]float64) holdingResult {
	h := it.holding
	current := h.CurrentPrice
	if current <= 0 {
		current = quotes[h.ItemID]
	}
	quoted := current > 0

	series, err := uc.deps.Series.GetSeries(ctx, h.ItemID, uc.window, current)
	if err != nil {
		uc.deps.Metrics.RecordSourceError("series")
		if current <= 0 {
			current = h.CostBasis
		}
		return holdingResult{idx: it.idx, advice: uc.advisor.Classify(h, current, nil), err: err}
	}
	if current <= 0 {
		if last, ok := series.Last(); ok {
			current = last.Price
		} else {
			current = h.CostBasis
		}
	}

	sig, _ := uc.analyzer.Signal(models.Item{ID: h.ItemID, Name: h.ItemName}, series)
	adv := uc.advisor.Classify(h, current, sig)
	if !quoted && adv.Reason == models.ReasonNone {
		adv.Reason = models.ReasonNoSnapshot
	}
	return holdingResult{idx: it.idx, advice: adv}
}

func (uc *PortfolioUseCase) attachReasoning(ctx context.Context, positions []models.PositionAdvice) {
	texts, err := uc.deps.Port.ExplainPositions(ctx, positions)
	if err != nil {
		uc.log.Warn("explain positions failed", logger.Int("positions", len(positions)), logger.Error(err))
		return
	}
	for i := range positions {
		if adv, ok := texts[positions[i].ItemID]; ok {
			positions[i].Reasoning = adv.Reasoning
			positions[i].Timeframe = adv.Timeframe
		}
	}
}
