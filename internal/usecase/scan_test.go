package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/advisory"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/config"
	"FlipDesk/pkg/logger"
)

type scanFixture struct {
	book    *fakeBook
	series  *fakeSeries
	metrics *recordingMetrics
	pub     *fakePublisher
	journal *fakeJournal
	queue   *fakeQueue
	cache   *cache.MemoryCache
	uc      *ScanUseCase
}

func newScanFixture(t *testing.T, verdicts VerdictSource) *scanFixture {
	t.Helper()
	f := &scanFixture{
		book: &fakeBook{items: []models.Item{
			{ID: 1, Name: "Zulrah's scales"},
			{ID: 2, Name: "Death rune"},
			{ID: 3, Name: "Cannonball"},
			{ID: 4, Name: "Yew logs"},
			{ID: 5, Name: "Blood rune"},
		}},
		series:  &fakeSeries{errs: map[int64]error{5: errSourceDown}},
		metrics: newRecordingMetrics(),
		pub:     &fakePublisher{},
		journal: &fakeJournal{},
		queue:   &fakeQueue{},
		cache:   cache.NewMemoryCache(),
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	cfg := config.Default()
	cfg.Scan.Workers = 2
	f.uc = NewScanUseCase(ScanDeps{
		Items:     f.book,
		Series:    f.series,
		Cache:     f.cache,
		Publisher: f.pub,
		Journal:   f.journal,
		Explain:   f.queue,
		Metrics:   f.metrics,
	}, verdicts, cfg, logger.NewNop())
	return f
}

func defaultVerdicts() stubVerdicts {
	return stubVerdicts{
		1: accepted(1, models.GradeB, 40, 70),
		2: accepted(2, models.GradeA, 25, 85),
		3: {Stage: models.StagePre, Reason: models.ReasonROIBelowMinimum},
		4: {Stage: models.StageRail, Reason: models.ReasonOrganicDecline},
	}
}

func TestScanFunnelAndRanking(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())

	res, err := f.uc.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, models.FunnelCounts{
		Candidates:     5,
		NoData:         1,
		RejectedStage0: 1,
		RejectedStage1: 1,
		Accepted:       2,
		RejectedReasons: map[models.ReasonCode]int{
			models.ReasonROIBelowMinimum:     1,
			models.ReasonOrganicDecline:      1,
			models.ReasonInsufficientHistory: 1,
		},
	}, res.Funnel)

	require.Len(t, res.Opportunities, 2)
	assert.Equal(t, int64(2), res.Opportunities[0].ItemID, "grade A ranks above grade B")
	assert.Equal(t, 2, res.Summary.TotalOpportunities)
	assert.Equal(t, errSourceDown.Error(), res.Errors["item:5"])

	assert.Equal(t, 1, f.metrics.sources["series"])
	assert.Equal(t, 2, f.metrics.stages["accepted:"])
	assert.Equal(t, 1, f.metrics.stages["data:insufficient_history"])
}

func TestScanFansOutResult(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())

	res, err := f.uc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, res.RunID, f.pub.runID)
	assert.Len(t, f.pub.signals, 2)

	recs, err := f.uc.RecentScans(context.Background(), time.Time{}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RunID, recs[0].RunID)
	assert.Equal(t, 2, recs[0].Funnel.Accepted)

	require.Len(t, f.queue.sent, 1)
	assert.Equal(t, advisory.ExplainMessageType, f.queue.sent[0].msgType)
	req, ok := f.queue.sent[0].payload.(advisory.ExplainRequest)
	require.True(t, ok)
	assert.Equal(t, res.RunID, req.RunID)
	assert.Len(t, req.Signals, 2)

	var cached models.ScanResult
	require.NoError(t, f.cache.Get(context.Background(), scanCacheKey, &cached))
	assert.Equal(t, res.RunID, cached.RunID)
}

func TestScanPublishFailureIsReported(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())
	f.pub.err = errSourceDown

	res, err := f.uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, errSourceDown.Error(), res.Errors["publish"])
	assert.Len(t, res.Opportunities, 2)
}

func TestScanPoolFailure(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())
	f.book.failing = map[string]bool{"pool": true}

	_, err := f.uc.Run(context.Background())
	require.ErrorIs(t, err, errSourceDown)
	assert.Equal(t, 1, f.metrics.sources["pool"])
	assert.Equal(t, 0, f.series.calls)
}

func TestOpportunitiesServesCacheUntilRefresh(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())
	ctx := context.Background()

	first, err := f.uc.Opportunities(ctx, ScanParams{})
	require.NoError(t, err)
	assert.Equal(t, 5, f.series.calls)

	second, err := f.uc.Opportunities(ctx, ScanParams{})
	require.NoError(t, err)
	assert.Equal(t, 5, f.series.calls)
	assert.Equal(t, first.RunID, second.RunID)

	third, err := f.uc.Opportunities(ctx, ScanParams{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 10, f.series.calls)
	assert.NotEqual(t, first.RunID, third.RunID)
}

func TestOpportunitiesFilters(t *testing.T) {
	f := newScanFixture(t, defaultVerdicts())
	ctx := context.Background()

	res, err := f.uc.Opportunities(ctx, ScanParams{MinConfidence: 80})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, int64(2), res.Opportunities[0].ItemID)
	assert.Equal(t, 1, res.Summary.TotalOpportunities)
	assert.Equal(t, 2, res.Funnel.Accepted, "funnel describes the whole scan")

	res, err = f.uc.Opportunities(ctx, ScanParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Opportunities, 1)

	res, err = f.uc.Opportunities(ctx, ScanParams{MinPotential: 30})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, int64(1), res.Opportunities[0].ItemID)
}

func TestScanShortHistoryWithAnalyzer(t *testing.T) {
	f := newScanFixture(t, reversion.NewAnalyzer(config.DefaultStrategy()))
	f.series.errs = nil
	f.series.series = map[int64]models.PriceSeries{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		f.series.series[1] = append(f.series.series[1], models.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Price:     100,
		})
	}

	res, err := f.uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Funnel.NoData)
	assert.Empty(t, res.Opportunities)
	assert.Empty(t, f.queue.sent)
	assert.Nil(t, f.pub.signals)
}
