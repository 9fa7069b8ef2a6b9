package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/internal/services/advisory"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/config"
	"FlipDesk/pkg/logger"
	"FlipDesk/pkg/queue"
)

const (
	scanCacheKey = "scan:latest"
	// maxItemErrors bounds how many per-item failures a result reports.
	maxItemErrors = 10
	// explainTop is how many ranked signals get an async explanation.
	explainTop = 10
)

// ScanParams filters the cached scan for one request.
type ScanParams struct {
	MinConfidence float64
	MinPotential  float64
	Limit         int
	Refresh       bool
}

// ScanDeps are the collaborators of a scan. Cache, Publisher, Journal and
// Explain may be nil.
type ScanDeps struct {
	Items     domrepo.ItemRepository
	Series    domrepo.SeriesProvider
	Cache     cache.Service
	Publisher domrepo.SignalPublisher
	Journal   domrepo.ScanJournal
	Explain   queue.QueueService
	Metrics   domrepo.Metrics
}

// VerdictSource evaluates one item's history.
type VerdictSource interface {
	Analyze(item models.Item, series models.PriceSeries) models.Verdict
}

var _ VerdictSource = (*reversion.Analyzer)(nil)

// ScanUseCase runs the reversion analyzer over the whole item pool.
type ScanUseCase struct {
	deps     ScanDeps
	analyzer VerdictSource
	log      *logger.Logger
	workers  int
	window   time.Duration
	cacheTTL time.Duration
	timeout  time.Duration
	group    singleflight.Group
	now      func() time.Time
}

func NewScanUseCase(deps ScanDeps, analyzer VerdictSource, cfg *config.Config, lgr *logger.Logger) *ScanUseCase {
	return &ScanUseCase{
		deps:     deps,
		analyzer: analyzer,
		log:      lgr,
		workers:  cfg.Scan.Workers,
		window:   cfg.Scan.SeriesWindow,
		cacheTTL: cfg.Scan.CacheTTL,
		timeout:  cfg.Scan.Timeout,
		now:      time.Now,
	}
}

// Opportunities serves the latest scan, running one if the cache is empty
// or a refresh is requested, then applies the request filters.
func (uc *ScanUseCase) Opportunities(ctx context.Context, p ScanParams) (*models.ScanResult, error) {
	if !p.Refresh && uc.deps.Cache != nil {
		var cached models.ScanResult
		err := uc.deps.Cache.Get(ctx, scanCacheKey, &cached)
		if err == nil {
			return filterScan(&cached, p), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("scan cache read failed", logger.Error(err))
		}
	}

	v, err, _ := uc.group.Do(scanCacheKey, func() (interface{}, error) {
		return uc.Run(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return filterScan(v.(*models.ScanResult), p), nil
}

// Refresh runs a scan and replaces the cached one. Concurrent refreshes
// share one run.
func (uc *ScanUseCase) Refresh(ctx context.Context) error {
	_, err := uc.Opportunities(ctx, ScanParams{Refresh: true})
	return err
}

// Cached returns the last stored scan without running one.
func (uc *ScanUseCase) Cached(ctx context.Context) (*models.ScanResult, bool) {
	if uc.deps.Cache == nil {
		return nil, false
	}
	var res models.ScanResult
	if err := uc.deps.Cache.Get(ctx, scanCacheKey, &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Run scans every pool item, ranks the accepted signals and fans the result
// out to the cache, the signal stream, the journal and the explain queue.
func (uc *ScanUseCase) Run(ctx context.Context) (*models.ScanResult, error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	start := uc.now()
	items, err := uc.deps.Items.ListPool(ctx)
	if err != nil {
		uc.deps.Metrics.RecordSourceError("pool")
		return nil, fmt.Errorf("list pool: %w", err)
	}

	verdicts, itemErrs := uc.analyzePool(ctx, items)

	res := &models.ScanResult{
		RunID:     uuid.NewString(),
		StartedAt: start,
		Funnel:    models.FunnelCounts{Candidates: len(items), RejectedReasons: map[models.ReasonCode]int{}},
		Errors:    map[string]string{},
	}

	var accepted []models.InvestmentSignal
	for _, v := range verdicts {
		uc.deps.Metrics.RecordStageOutcome(v.Stage.String(), string(v.Reason))
		switch v.Stage {
		case models.StageData:
			res.Funnel.NoData++
		case models.StagePre:
			res.Funnel.RejectedStage0++
		case models.StageRail:
			res.Funnel.RejectedStage1++
		case models.StageQuality:
			res.Funnel.RejectedStage2++
		}
		if v.Accepted && v.Signal != nil {
			res.Funnel.Accepted++
			accepted = append(accepted, *v.Signal)
			continue
		}
		res.Funnel.RejectedReasons[v.Reason]++
	}
	for id, msg := range itemErrs {
		res.Errors["item:"+strconv.FormatInt(id, 10)] = msg
	}

	res.Opportunities = reversion.Rank(accepted)
	res.Summary = reversion.Summarize(res.Opportunities)
	res.Duration = uc.now().Sub(start)

	uc.fanOut(ctx, res)
	if len(res.Errors) == 0 {
		res.Errors = nil
	}

	uc.deps.Metrics.RecordLatency("scan", res.Duration.Seconds())
	uc.log.Info("scan finished",
		logger.String("run_id", res.RunID),
		logger.Int("candidates", res.Funnel.Candidates),
		logger.Int("accepted", res.Funnel.Accepted),
		logger.Int("no_data", res.Funnel.NoData),
		logger.Duration("duration_ms", res.Duration),
	)
	return res, nil
}

type scanOutcome struct {
	idx     int
	verdict models.Verdict
	err     error
}

// analyzePool evaluates items on a bounded pool. Verdicts keep pool order;
// a failed series fetch counts as missing data.
func (uc *ScanUseCase) analyzePool(ctx context.Context, items []models.Item) ([]models.Verdict, map[int64]string) {
	out := make([]scanOutcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, uc.workers))
	for i, it := range items {
		g.Go(func() error {
			series, err := uc.deps.Series.GetSeries(gctx, it.ID, uc.window, 0)
			if err != nil {
				out[i] = scanOutcome{idx: i, err: err, verdict: models.Verdict{
					ItemID: it.ID, Stage: models.StageData, Reason: models.ReasonInsufficientHistory,
				}}
				return nil
			}
			out[i] = scanOutcome{idx: i, verdict: uc.analyzer.Analyze(it, series)}
			return nil
		})
	}
	_ = g.Wait()

	verdicts := make([]models.Verdict, 0, len(out))
	errs := map[int64]string{}
	for _, o := range out {
		verdicts = append(verdicts, o.verdict)
		if o.err != nil {
			uc.deps.Metrics.RecordSourceError("series")
			if len(errs) < maxItemErrors {
				errs[o.verdict.ItemID] = o.err.Error()
			}
		}
	}
	return verdicts, errs
}

func (uc *ScanUseCase) fanOut(ctx context.Context, res *models.ScanResult) {
	if uc.deps.Cache != nil {
		if err := uc.deps.Cache.Set(ctx, scanCacheKey, res, uc.cacheTTL); err != nil {
			uc.log.Warn("scan cache write failed", logger.Error(err))
		}
	}
	if uc.deps.Publisher != nil && len(res.Opportunities) > 0 {
		if err := uc.deps.Publisher.PublishSignals(ctx, res.RunID, res.Opportunities); err != nil {
			res.Errors["publish"] = err.Error()
			uc.deps.Metrics.RecordError("publish")
			uc.log.Error("publish signals failed", logger.String("run_id", res.RunID), logger.Error(err))
		}
	}
	if uc.deps.Journal != nil {
		if err := uc.deps.Journal.RecordScan(ctx, res); err != nil {
			uc.deps.Metrics.RecordError("journal")
			uc.log.Warn("journal scan failed", logger.String("run_id", res.RunID), logger.Error(err))
		}
	}
	if uc.deps.Explain != nil && len(res.Opportunities) > 0 {
		top := res.Opportunities
		if len(top) > explainTop {
			top = top[:explainTop]
		}
		req := advisory.ExplainRequest{RunID: res.RunID, Signals: top}
		if err := uc.deps.Explain.PublishMessage(ctx, advisory.ExplainMessageType, req); err != nil {
			uc.log.Warn("enqueue explanations failed", logger.String("run_id", res.RunID), logger.Error(err))
		}
	}
}

// RecentScans lists journaled runs started at or after since, newest first.
func (uc *ScanUseCase) RecentScans(ctx context.Context, since time.Time, limit int) ([]domrepo.ScanRecord, error) {
	if uc.deps.Journal == nil {
		return nil, nil
	}
	recs, err := uc.deps.Journal.RecentScans(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].StartedAt.After(recs[j].StartedAt) })
	return recs, nil
}

// filterScan applies the viability filter and limit to a copy of res.
func filterScan(res *models.ScanResult, p ScanParams) *models.ScanResult {
	out := *res
	viable := reversion.FilterViable(res.Opportunities, p.MinConfidence, p.MinPotential)
	if p.Limit > 0 && len(viable) > p.Limit {
		viable = viable[:p.Limit]
	}
	out.Opportunities = viable
	out.Summary = reversion.Summarize(viable)
	return &out
}
