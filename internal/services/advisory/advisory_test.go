package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/internal/domain/models"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/config"
	"FlipDesk/pkg/logger"
)

func testSignal() models.InvestmentSignal {
	return models.InvestmentSignal{
		ItemID:                 4151,
		ItemName:               "Abyssal whip",
		CurrentPrice:           1000,
		TargetSellPrice:        1300,
		StretchSellPrice:       1400,
		EntryLow:               985,
		EntryHigh:              1015,
		StopLoss:               900,
		ReversionPotentialPct:  30,
		ConfidenceScore:        78,
		BotLikelihood:          models.BotHigh,
		LiquidityScore:         60,
		EstimatedHoldingPeriod: "2-4 weeks",
		MediumTerm:             models.TimeframeStats{AvgPrice: 1250, CurrentDeviationPct: 20},
	}
}

func advisorFor(url string) *HTTPAdvisor {
	cfg := config.Default()
	cfg.Advisory.URL = url
	cfg.Advisory.Timeout = time.Second
	cfg.Advisory.BreakerFailures = 2
	cfg.Advisory.BreakerTimeout = time.Minute
	return NewHTTPAdvisor(cfg)
}

func TestHTTPAdvisorExplainSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/explain/signal", r.URL.Path)
		var req signalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(4151), req.Signal.ItemID)
		_, _ = w.Write([]byte(`{"reasoning":"dumped by bots","timeframe":"3 weeks","guidance":{"entry_optimal":990,"exit_conservative":1250}}`))
	}))
	defer srv.Close()

	adv, err := advisorFor(srv.URL).ExplainSignal(context.Background(), testSignal())
	require.NoError(t, err)
	assert.Equal(t, "dumped by bots", adv.Reasoning)
	require.NotNil(t, adv.Guidance)
	assert.Equal(t, 990.0, adv.Guidance.EntryOptimal)
}

func TestHTTPAdvisorExplainPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"advice":{"4151":{"reasoning":"hold it"},"bad":{"reasoning":"x"}}}`))
	}))
	defer srv.Close()

	out, err := advisorFor(srv.URL).ExplainPositions(context.Background(), []models.PositionAdvice{{ItemID: 4151}})
	require.NoError(t, err)
	assert.Equal(t, map[int64]models.Advice{4151: {Reasoning: "hold it"}}, out)
}

func TestHTTPAdvisorBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := advisorFor(srv.URL)
	for i := 0; i < 4; i++ {
		_, err := a.ExplainSignal(context.Background(), testSignal())
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, gobreaker.StateOpen, a.base.State())
}

func TestHTTPAdvisorNotConfigured(t *testing.T) {
	_, err := advisorFor("").ExplainSignal(context.Background(), testSignal())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTemplateAdvisor(t *testing.T) {
	adv, err := NewTemplateAdvisor().ExplainSignal(context.Background(), testSignal())
	require.NoError(t, err)
	assert.Contains(t, adv.Reasoning, "20.0% below its 90-day average of 1250")
	assert.Equal(t, "2-4 weeks", adv.Timeframe)
	assert.Equal(t, 1300.0, adv.Guidance.ExitConservative)

	pos, err := NewTemplateAdvisor().ExplainPositions(context.Background(), []models.PositionAdvice{
		{ItemID: 1, Action: models.ActionSellSoon, ProfitPct: 12.5, ProgressPct: 85, TargetSellPrice: 1300, Drivers: []string{"reversion mostly complete"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "sell soon at 12.5% (reversion mostly complete). 85% of the way to 1300.", pos[1].Reasoning)
}

func TestFallbackUsesSecondary(t *testing.T) {
	f := NewFallback(advisorFor(""), NewTemplateAdvisor(), logger.NewNop())
	adv, err := f.ExplainSignal(context.Background(), testSignal())
	require.NoError(t, err)
	assert.NotEmpty(t, adv.Reasoning)
}

type guidanceAdvisor struct{ TemplateAdvisor }

func (guidanceAdvisor) ExplainSignal(context.Context, models.InvestmentSignal) (models.Advice, error) {
	return models.Advice{
		Reasoning: "wild",
		Guidance:  &models.PriceGuidance{EntryOptimal: 2000, ExitConservative: 1500, TriggerStop: 2500},
	}, nil
}

func TestExplainJobCachesConstrainedAdvice(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	job := NewExplainJob(guidanceAdvisor{}, mc, time.Minute, logger.NewNop())

	payload, err := json.Marshal(ExplainRequest{RunID: "r1", Signals: []models.InvestmentSignal{testSignal()}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(payload)))

	var adv models.Advice
	require.NoError(t, mc.Get(context.Background(), AdviceKey(4151), &adv))
	assert.Equal(t, "wild", adv.Reasoning)
	require.NotNil(t, adv.Guidance)
	assert.True(t, adv.Guidance.Adjusted)
	assert.Equal(t, 1000.0, adv.Guidance.EntryOptimal)
	assert.Equal(t, 1300.0, adv.Guidance.ExitConservative)
}
