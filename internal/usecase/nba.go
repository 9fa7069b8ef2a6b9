package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/internal/services/actions"
	"FlipDesk/pkg/config"
	"FlipDesk/pkg/logger"
)

// NBARepos bundles the per-entity sources the aggregator reads.
type NBARepos struct {
	Positions domrepo.PositionRepository
	Theses    domrepo.ThesisRepository
	Alerts    domrepo.AlertRepository
	Orders    domrepo.OrderRepository
	Items     domrepo.ItemRepository
	Snapshots domrepo.SnapshotProvider
}

// NBAUseCase fetches a session's book concurrently and ranks its next-best-actions.
type NBAUseCase struct {
	repos    NBARepos
	builder  *actions.Builder
	metrics  domrepo.Metrics
	log      *logger.Logger
	timeout  time.Duration
	staleAge time.Duration
	now      func() time.Time
}

func NewNBAUseCase(repos NBARepos, cfg config.StrategyConfig, metrics domrepo.Metrics, lgr *logger.Logger) *NBAUseCase {
	return &NBAUseCase{
		repos:    repos,
		builder:  actions.NewBuilder(cfg),
		metrics:  metrics,
		log:      lgr,
		timeout:  cfg.FetchTimeout,
		staleAge: cfg.StaleOrderAge,
		now:      time.Now,
	}
}

type fetched struct {
	name string
	val  interface{}
	err  error
}

// GetActions never fails as a whole: each failed source is empty and
// reported in Errors.
func (uc *NBAUseCase) GetActions(ctx context.Context, sess models.SessionContext) (*models.NBAResult, error) {
	start := uc.now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	errs := map[string]string{}
	in := actions.Inputs{Now: start}

	ch := make(chan fetched, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Positions.ListOpenPositions(ctx, sess)
		ch <- fetched{"positions", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Theses.ListActiveTheses(ctx, sess)
		ch <- fetched{"theses", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Alerts.ListUnresolvedAlerts(ctx, sess)
		ch <- fetched{"alerts", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Orders.ListStaleOrders(ctx, sess, start.Add(-uc.staleAge))
		ch <- fetched{"orders", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			uc.sourceFailed(errs, it)
			continue
		}
		switch it.name {
		case "positions":
			in.Positions = it.val.([]models.Position)
		case "theses":
			in.Theses = it.val.([]models.Thesis)
		case "alerts":
			in.Alerts = it.val.([]models.Alert)
		case "orders":
			in.StaleOrders = it.val.([]models.Order)
		}
	}

	if ids := bookItemIDs(in); len(ids) > 0 {
		in.Snapshots, in.BuyLimits = uc.fetchMarket(ctx, ids, errs)
	}

	res, critical := uc.builder.Build(in)
	if len(errs) > 0 {
		res.Errors = errs
	}
	if in.Snapshots != nil {
		res.Skipped = unquoted(in.Positions, in.Snapshots)
	}
	if len(critical) > 0 {
		uc.log.Warn("action required",
			logger.String("user_id", sess.UserID),
			logger.String("preview", strings.Join(head(critical, 4), " | ")),
			logger.Int("count", len(critical)),
		)
	}

	uc.metrics.RecordActions(len(res.Queue), len(res.Actions))
	uc.metrics.RecordLatency("nba", uc.now().Sub(start).Seconds())
	return &res, nil
}

func (uc *NBAUseCase) fetchMarket(ctx context.Context, ids []int64, errs map[string]string) (map[int64]models.MarketSnapshot, map[int64]int64) {
	ch := make(chan fetched, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Snapshots.GetSnapshots(ctx, ids)
		ch <- fetched{"snapshots", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.repos.Items.BuyLimits(ctx, ids)
		ch <- fetched{"buy_limits", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	var (
		snaps  map[int64]models.MarketSnapshot
		limits map[int64]int64
	)
	for it := range ch {
		if it.err != nil {
			uc.sourceFailed(errs, it)
			continue
		}
		switch it.name {
		case "snapshots":
			snaps = it.val.(map[int64]models.MarketSnapshot)
		case "buy_limits":
			limits = it.val.(map[int64]int64)
		}
	}
	return snaps, limits
}

func (uc *NBAUseCase) sourceFailed(errs map[string]string, it fetched) {
	errs[it.name] = it.err.Error()
	uc.metrics.RecordSourceError(it.name)
	uc.log.Warn("nba source failed", logger.String("source", it.name), logger.Error(it.err))
}

// unquoted marks held items the snapshot feed returned nothing for.
func unquoted(positions []models.Position, snaps map[int64]models.MarketSnapshot) map[int64]models.ReasonCode {
	var out map[int64]models.ReasonCode
	for _, p := range positions {
		if _, ok := snaps[p.ItemID]; ok {
			continue
		}
		if out == nil {
			out = map[int64]models.ReasonCode{}
		}
		out[p.ItemID] = models.ReasonNoSnapshot
	}
	return out
}

// bookItemIDs is the sorted union of items referenced by positions and theses.
func bookItemIDs(in actions.Inputs) []int64 {
	seen := map[int64]struct{}{}
	for _, p := range in.Positions {
		seen[p.ItemID] = struct{}{}
	}
	for _, t := range in.Theses {
		seen[t.ItemID] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
