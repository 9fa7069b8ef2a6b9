package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/internal/services/advisory"
	"FlipDesk/internal/services/features"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/logger"
)

// ErrItemNotFound is returned for ids missing from the item catalogue.
var ErrItemNotFound = errors.New("item not found")

// ItemUseCase answers single-item questions: the verdict and the features.
type ItemUseCase struct {
	items    domrepo.ItemRepository
	series   domrepo.SeriesProvider
	analyzer VerdictSource
	features *features.Extractor
	port     domsvc.AdvisoryPort
	cache    cache.Service
	log      *logger.Logger
	window   time.Duration
}

func NewItemUseCase(
	items domrepo.ItemRepository,
	series domrepo.SeriesProvider,
	analyzer VerdictSource,
	extractor *features.Extractor,
	port domsvc.AdvisoryPort,
	c cache.Service,
	window time.Duration,
	lgr *logger.Logger,
) *ItemUseCase {
	return &ItemUseCase{items: items, series: series, analyzer: analyzer, features: extractor, port: port, cache: c, window: window, log: lgr}
}

func (uc *ItemUseCase) load(ctx context.Context, itemID int64) (models.Item, models.PriceSeries, error) {
	item, err := uc.items.GetItem(ctx, itemID)
	if err != nil {
		return models.Item{}, nil, fmt.Errorf("get item %d: %w", itemID, err)
	}
	if item == nil {
		return models.Item{}, nil, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	series, err := uc.series.GetSeries(ctx, itemID, uc.window, 0)
	if err != nil {
		return models.Item{}, nil, fmt.Errorf("get series %d: %w", itemID, err)
	}
	return *item, series, nil
}

// Signal evaluates one item. With explain set, an accepted signal gets an
// explanation from the cache or the advisory port; a failure there only
// leaves the advice empty.
func (uc *ItemUseCase) Signal(ctx context.Context, itemID int64, explain bool) (*models.ItemAnalysis, error) {
	item, series, err := uc.load(ctx, itemID)
	if err != nil {
		return nil, err
	}

	out := &models.ItemAnalysis{Verdict: uc.analyzer.Analyze(item, series)}
	if !explain || out.Verdict.Signal == nil {
		return out, nil
	}
	out.Advice = uc.explain(ctx, *out.Verdict.Signal)
	return out, nil
}

func (uc *ItemUseCase) explain(ctx context.Context, s models.InvestmentSignal) *models.Advice {
	var adv models.Advice
	if uc.cache != nil {
		err := uc.cache.Get(ctx, advisory.AdviceKey(s.ItemID), &adv)
		if err == nil {
			return &adv
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("advice cache read failed", logger.Int64("item_id", s.ItemID), logger.Error(err))
		}
	}
	if uc.port == nil {
		return nil
	}

	adv, err := uc.port.ExplainSignal(ctx, s)
	if err != nil {
		uc.log.Warn("explain signal failed", logger.Int64("item_id", s.ItemID), logger.Error(err))
		return nil
	}
	if adv.Guidance != nil {
		g := reversion.ConstrainGuidance(*adv.Guidance, s)
		adv.Guidance = &g
	}
	return &adv
}

// Features extracts the temporal features of one item's history.
func (uc *ItemUseCase) Features(ctx context.Context, itemID int64) (*models.FeatureReport, error) {
	item, series, err := uc.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rep := &models.FeatureReport{
		ItemID:   item.ID,
		ItemName: item.Name,
		Points:   len(series),
		Features: uc.features.Extract(series),
	}
	if len(series) > 0 {
		rep.From = series[0].Timestamp
		rep.To = series[len(series)-1].Timestamp
	}
	return rep, nil
}
