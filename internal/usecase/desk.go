package usecase

import (
	"context"
	"fmt"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/internal/services/scoring"
	"FlipDesk/pkg/config"
	"FlipDesk/pkg/logger"
)

// ScanCache exposes the last stored scan.
type ScanCache interface {
	Cached(ctx context.Context) (*models.ScanResult, bool)
}

// DeskUseCase ranks the current market under a desk strategy.
type DeskUseCase struct {
	items     domrepo.ItemRepository
	snapshots domrepo.SnapshotProvider
	scans     ScanCache
	metrics   domrepo.Metrics
	log       *logger.Logger
	stake     float64
	now       func() time.Time
}

func NewDeskUseCase(items domrepo.ItemRepository, snapshots domrepo.SnapshotProvider, scans ScanCache, cfg config.StrategyConfig, metrics domrepo.Metrics, lgr *logger.Logger) *DeskUseCase {
	return &DeskUseCase{
		items:     items,
		snapshots: snapshots,
		scans:     scans,
		metrics:   metrics,
		log:       lgr,
		stake:     cfg.PerFlipCapGP,
		now:       time.Now,
	}
}

// Rank scores every pool item with a live quote. A zero stake falls back to
// the per-flip cap. Mean reversion reads its targets from the cached scan
// and leaves items without one at their entry price.
func (uc *DeskUseCase) Rank(ctx context.Context, req models.DeskRequest) (*models.DeskResult, error) {
	start := uc.now()
	strategy := models.DeskStrategy(req.Strategy)
	risk := models.RiskTolerance(req.Risk)
	stake := req.Stake
	if stake <= 0 {
		stake = uc.stake
	}

	pool, err := uc.items.ListPool(ctx)
	if err != nil {
		uc.metrics.RecordSourceError("pool")
		return nil, fmt.Errorf("list pool: %w", err)
	}
	ids := make([]int64, len(pool))
	for i, it := range pool {
		ids[i] = it.ID
	}
	snaps, err := uc.snapshots.GetSnapshots(ctx, ids)
	if err != nil {
		uc.metrics.RecordSourceError("snapshots")
		return nil, fmt.Errorf("get snapshots: %w", err)
	}

	res := &models.DeskResult{Strategy: strategy, Risk: risk, Stake: stake}
	revert := map[int64]float64{}
	if strategy == models.StrategyMeanReversion && uc.scans != nil {
		if scan, ok := uc.scans.Cached(ctx); ok {
			for _, s := range scan.Opportunities {
				revert[s.ItemID] = s.TargetSellPrice
			}
		} else {
			res.Errors = map[string]string{"scan": "no cached scan, reversion targets unavailable"}
		}
	}

	inputs := make([]scoring.DeskInput, 0, len(snaps))
	for _, it := range pool {
		snap, ok := snaps[it.ID]
		if !ok {
			if res.Skipped == nil {
				res.Skipped = map[int64]models.ReasonCode{}
			}
			res.Skipped[it.ID] = models.ReasonNoSnapshot
			continue
		}
		if snap.ItemName == "" {
			snap.ItemName = it.Name
		}
		inputs = append(inputs, scoring.DeskInput{Snapshot: snap, BuyLimit: it.BuyLimit, RevertPrice: revert[it.ID]})
	}

	res.Candidates = scoring.RankDesk(inputs, strategy, risk, stake, req.Limit, uc.now())
	uc.metrics.RecordLatency("desk", uc.now().Sub(start).Seconds())
	uc.log.Debug("desk ranked",
		logger.String("strategy", string(strategy)),
		logger.Int("inputs", len(inputs)),
		logger.Int("candidates", len(res.Candidates)),
	)
	return res, nil
}
