package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/pkg/cache"
	xhttp "FlipDesk/pkg/http"
	applogger "FlipDesk/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

type wikiServer struct {
	*httptest.Server
	mappingCalls atomic.Int32
	latestCalls  atomic.Int32
	agents       chan string
}

func newWikiServer(t *testing.T) *wikiServer {
	t.Helper()
	ws := &wikiServer{agents: make(chan string, 64)}
	mux := http.NewServeMux()
	mux.HandleFunc("/mapping", func(w http.ResponseWriter, r *http.Request) {
		ws.mappingCalls.Add(1)
		ws.agents <- r.Header.Get("User-Agent")
		fmt.Fprint(w, `[
			{"id": 2, "name": "Cannonball", "members": true, "limit": 11000},
			{"id": 561, "name": "Nature rune", "members": false, "limit": 18000},
			{"id": 4151, "name": "Abyssal whip", "members": true, "limit": 70},
			{"id": 9999, "name": "Untradeable thing", "members": true}
		]`)
	})
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		ws.latestCalls.Add(1)
		fmt.Fprint(w, `{"data": {
			"2": {"high": 182, "highTime": 1, "low": 178, "lowTime": 1},
			"561": {"high": null, "low": 95},
			"4151": {"high": null, "low": null}
		}}`)
	})
	mux.HandleFunc("/5m", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"2": {"avgHighPrice": 181, "highPriceVolume": 400, "avgLowPrice": 179, "lowPriceVolume": 600}}, "timestamp": 1}`)
	})
	mux.HandleFunc("/1h", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {
			"2": {"avgHighPrice": 181, "highPriceVolume": 5000, "avgLowPrice": 179, "lowPriceVolume": 7000},
			"561": {"avgHighPrice": 98, "highPriceVolume": 100, "avgLowPrice": null, "lowPriceVolume": 0}
		}, "timestamp": 1}`)
	})
	mux.HandleFunc("/timeseries", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if r.URL.Query().Get("timestep") != "24h" || (id != "2" && id != "5") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if id == "5" {
			fmt.Fprintf(w, `{"data": [
				{"timestamp": %d, "avgHighPrice": 12, "avgLowPrice": 10},
				{"timestamp": %d, "avgHighPrice": 22, "avgLowPrice": 20},
				{"timestamp": %d, "avgHighPrice": 32, "avgLowPrice": 30}
			], "itemId": 5}`,
				fixedNow.Add(-24*time.Hour).Unix(), fixedNow.Add(-72*time.Hour).Unix(), fixedNow.Add(-48*time.Hour).Unix())
			return
		}
		old := fixedNow.Add(-400 * 24 * time.Hour).Unix()
		d1 := fixedNow.Add(-2 * 24 * time.Hour).Unix()
		d2 := fixedNow.Add(-24 * time.Hour).Unix()
		fmt.Fprintf(w, `{"data": [
			{"timestamp": %d, "avgHighPrice": 150, "avgLowPrice": 140, "highPriceVolume": 1, "lowPriceVolume": 1},
			{"timestamp": %d, "avgHighPrice": 184, "avgLowPrice": 176, "highPriceVolume": 10, "lowPriceVolume": 20},
			{"timestamp": %d, "avgHighPrice": null, "avgLowPrice": 170, "highPriceVolume": null, "lowPriceVolume": 5}
		], "itemId": 2}`, old, d1, d2)
	})
	ws.Server = httptest.NewServer(mux)
	t.Cleanup(ws.Close)
	return ws
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	c := New(Config{BaseURL: url, UserAgent: "flipdesk-test", RequestsPerSec: 1000}, mc, applogger.NewNop())
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestGetSeriesTrimsWindowAndAveragesSides(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)

	series, err := c.GetSeries(context.Background(), 2, 365*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 180.0, series[0].Price)
	assert.Equal(t, int64(30), *series[0].Volume)
	assert.Equal(t, 170.0, series[1].Price)
	assert.Equal(t, int64(5), *series[1].Volume)
}

func TestGetSeriesOrdersPointsByTime(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)

	series, err := c.GetSeries(context.Background(), 5, 365*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.True(t, series.Monotonic())
	assert.Equal(t, []float64{21, 31, 11}, series.Prices())
}

func TestGetSeriesUpstreamError(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)

	_, err := c.GetSeries(context.Background(), 3, 365*24*time.Hour, 0)
	assert.ErrorContains(t, err, "wiki /timeseries")
}

func TestLatestSnapshotsMergesBuckets(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)

	snaps, err := c.LatestSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byID := map[int64]int{}
	for i, s := range snaps {
		byID[s.ItemID] = i
	}
	cb := snaps[byID[2]]
	assert.Equal(t, "Cannonball", cb.ItemName)
	assert.Equal(t, 182.0, cb.LastPrice)
	assert.Equal(t, 4.0, cb.Margin)
	assert.Equal(t, int64(1000), cb.Volume5m)
	assert.Equal(t, int64(12000), cb.Volume1h)
	assert.Equal(t, fixedNow, cb.AsOf)

	nat := snaps[byID[561]]
	assert.Equal(t, 98.0, nat.LastHigh)
	assert.Equal(t, 95.0, nat.LastLow)
	assert.Equal(t, 3.0, nat.Margin)
	assert.Equal(t, int64(100), nat.Volume1h)
}

func TestGetSnapshotsUsesCachedFeed(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)
	ctx := context.Background()

	snaps, err := c.GetSnapshots(ctx, []int64{2, 4151})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	snap, err := c.GetSnapshot(ctx, 561)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int32(1), ws.latestCalls.Load())

	missing, err := c.GetSnapshot(ctx, 4151)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMappingParsesAndCaches(t *testing.T) {
	ws := newWikiServer(t)
	c := newTestClient(t, ws.URL)
	ctx := context.Background()

	items, err := c.Mapping(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, "members", items[0].Category)
	assert.Equal(t, "f2p", items[1].Category)
	assert.Equal(t, int64(70), items[2].BuyLimit)
	assert.Zero(t, items[3].BuyLimit)

	_, err = c.Mapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ws.mappingCalls.Load())
	assert.Equal(t, "flipdesk-test", <-ws.agents)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := New(Config{BaseURL: srv.URL, RequestsPerSec: 1000, BreakerFailures: 2, BreakerTimeout: time.Minute}, mc, applogger.NewNop())

	for i := 0; i < 4; i++ {
		_, err := c.Mapping(context.Background())
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", c.State().String())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown item", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RequestsPerSec: 1000, BreakerFailures: 2, BreakerTimeout: time.Minute}, nil, applogger.NewNop())

	for i := 0; i < 4; i++ {
		_, err := c.Mapping(context.Background())
		var se *xhttp.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.Code)
	}
	assert.Equal(t, "closed", c.State().String())
}
