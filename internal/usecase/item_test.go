package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/internal/domain/models"
	"FlipDesk/internal/services/advisory"
	"FlipDesk/internal/services/features"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/logger"
)

func newItemUseCase(t *testing.T, port *fakePort, series *fakeSeries) (*ItemUseCase, *cache.MemoryCache) {
	t.Helper()
	book := &fakeBook{items: []models.Item{{ID: 1, Name: "Zulrah's scales"}, {ID: 2, Name: "Death rune"}}}
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	verdicts := stubVerdicts{1: priced(1, 1000, 1300, 80)}
	return NewItemUseCase(book, series, verdicts, features.NewExtractor(), port, c, 365*24*time.Hour, logger.NewNop()), c
}

func TestItemSignalUnknownItem(t *testing.T) {
	uc, _ := newItemUseCase(t, &fakePort{}, &fakeSeries{})

	_, err := uc.Signal(context.Background(), 99, false)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestItemSignalWithoutExplain(t *testing.T) {
	port := &fakePort{}
	uc, _ := newItemUseCase(t, port, &fakeSeries{})

	out, err := uc.Signal(context.Background(), 1, false)
	require.NoError(t, err)
	assert.True(t, out.Verdict.Accepted)
	assert.Nil(t, out.Advice)
	assert.Zero(t, port.calls)
}

func TestItemSignalExplainConstrainsGuidance(t *testing.T) {
	port := &fakePort{signal: models.Advice{
		Reasoning: "dumped by bots",
		Guidance:  &models.PriceGuidance{EntryOptimal: 1500},
	}}
	uc, _ := newItemUseCase(t, port, &fakeSeries{})

	out, err := uc.Signal(context.Background(), 1, true)
	require.NoError(t, err)
	require.NotNil(t, out.Advice)
	assert.Equal(t, "dumped by bots", out.Advice.Reasoning)
	require.NotNil(t, out.Advice.Guidance)
	assert.True(t, out.Advice.Guidance.Adjusted)
	assert.Equal(t, 1100.0, out.Advice.Guidance.EntryOptimal)
}

func TestItemSignalPrefersCachedAdvice(t *testing.T) {
	port := &fakePort{signal: models.Advice{Reasoning: "fresh"}}
	uc, c := newItemUseCase(t, port, &fakeSeries{})
	require.NoError(t, c.Set(context.Background(), advisory.AdviceKey(1), models.Advice{Reasoning: "cached"}, time.Minute))

	out, err := uc.Signal(context.Background(), 1, true)
	require.NoError(t, err)
	require.NotNil(t, out.Advice)
	assert.Equal(t, "cached", out.Advice.Reasoning)
	assert.Zero(t, port.calls)
}

func TestItemSignalAdvisoryFailureLeavesAdviceEmpty(t *testing.T) {
	uc, _ := newItemUseCase(t, &fakePort{err: errSourceDown}, &fakeSeries{})

	out, err := uc.Signal(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, out.Verdict.Accepted)
	assert.Nil(t, out.Advice)
}

func TestItemSignalRejectedSkipsAdvisory(t *testing.T) {
	port := &fakePort{}
	uc, _ := newItemUseCase(t, port, &fakeSeries{})

	out, err := uc.Signal(context.Background(), 2, true)
	require.NoError(t, err)
	assert.False(t, out.Verdict.Accepted)
	assert.Equal(t, models.ReasonNoSuppression, out.Verdict.Reason)
	assert.Nil(t, out.Advice)
	assert.Zero(t, port.calls)
}

func TestItemSeriesFailure(t *testing.T) {
	uc, _ := newItemUseCase(t, &fakePort{}, &fakeSeries{errs: map[int64]error{1: errSourceDown}})

	_, err := uc.Signal(context.Background(), 1, false)
	assert.ErrorIs(t, err, errSourceDown)
}

func TestItemFeatures(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var series models.PriceSeries
	for i := 0; i < 60; i++ {
		series = append(series, models.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: 500})
	}
	uc, _ := newItemUseCase(t, &fakePort{}, &fakeSeries{series: map[int64]models.PriceSeries{1: series}})

	rep, err := uc.Features(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Zulrah's scales", rep.ItemName)
	assert.Equal(t, 60, rep.Points)
	assert.Equal(t, start, rep.From)
	assert.Equal(t, start.AddDate(0, 0, 59), rep.To)
	assert.Equal(t, models.TrendStable, rep.Features.TrendDirection)
	assert.Equal(t, models.MomentumFlat, rep.Features.Momentum)
}
