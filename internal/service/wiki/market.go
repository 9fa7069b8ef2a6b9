package wiki

import (
	"context"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	applogger "FlipDesk/pkg/logger"
)

const latestKey = "wiki:latest"

type latestRecord struct {
	High     *float64 `json:"high"`
	HighTime *int64   `json:"highTime"`
	Low      *float64 `json:"low"`
	LowTime  *int64   `json:"lowTime"`
}

type bucketRecord struct {
	AvgHighPrice    *float64 `json:"avgHighPrice"`
	AvgLowPrice     *float64 `json:"avgLowPrice"`
	HighPriceVolume *int64   `json:"highPriceVolume"`
	LowPriceVolume  *int64   `json:"lowPriceVolume"`
}

type timeseriesPoint struct {
	Timestamp int64 `json:"timestamp"`
	bucketRecord
}

type latestResponse struct {
	Data map[string]latestRecord `json:"data"`
}

type bucketResponse struct {
	Data      map[string]bucketRecord `json:"data"`
	Timestamp int64                   `json:"timestamp"`
}

type timeseriesResponse struct {
	Data []timeseriesPoint `json:"data"`
}

func positive(p *float64) float64 {
	if p != nil && *p > 0 {
		return *p
	}
	return 0
}

func count(n *int64) int64 {
	if n != nil && *n > 0 {
		return *n
	}
	return 0
}

// mid is the average of the bucket's high and low, or whichever exists.
func (b bucketRecord) mid() float64 {
	hi, lo := positive(b.AvgHighPrice), positive(b.AvgLowPrice)
	switch {
	case hi > 0 && lo > 0:
		return (hi + lo) / 2
	case hi > 0:
		return hi
	default:
		return lo
	}
}

func (b bucketRecord) volume() int64 {
	return count(b.HighPriceVolume) + count(b.LowPriceVolume)
}

// GetSeries reads the item's timeseries at the granularity the lookback
// calls for, trimmed to the lookback window.
func (c *Client) GetSeries(ctx context.Context, itemID int64, lookback time.Duration, referencePrice float64) (models.PriceSeries, error) {
	gran := domrepo.GranularityFor(lookback)
	var resp timeseriesResponse
	err := c.get(ctx, "/timeseries", map[string][]string{
		"timestep": {string(gran)},
		"id":       {strconv.FormatInt(itemID, 10)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-lookback)
	out := make(models.PriceSeries, 0, len(resp.Data))
	for _, p := range resp.Data {
		ts := time.Unix(p.Timestamp, 0).UTC()
		if ts.Before(cutoff) {
			continue
		}
		vol := p.volume()
		out = append(out, models.PricePoint{Timestamp: ts, Price: p.mid(), Volume: &vol})
	}
	if !out.Monotonic() {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	}
	return out.NearReference(referencePrice), nil
}

// LatestSnapshots merges /latest with the 5m and 1h buckets. Margin is
// high minus low when both sides traded.
func (c *Client) LatestSnapshots(ctx context.Context) ([]models.MarketSnapshot, error) {
	var (
		latest       latestResponse
		five, hourly bucketResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, "/latest", nil, &latest) })
	g.Go(func() error { return c.get(gctx, "/5m", nil, &five) })
	g.Go(func() error { return c.get(gctx, "/1h", nil, &hourly) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := map[int64]string{}
	if items, err := c.Mapping(ctx); err != nil {
		c.log.Warn("wiki mapping unavailable, snapshots unnamed", applogger.Error(err))
	} else {
		for _, it := range items {
			names[it.ID] = it.Name
		}
	}

	asOf := c.now().UTC()
	out := make([]models.MarketSnapshot, 0, len(latest.Data))
	for key, rec := range latest.Data {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		f, h := five.Data[key], hourly.Data[key]

		high := positive(rec.High)
		if high == 0 {
			high = positive(f.AvgHighPrice)
		}
		if high == 0 {
			high = positive(h.AvgHighPrice)
		}
		low := positive(rec.Low)
		if low == 0 {
			low = positive(f.AvgLowPrice)
		}
		if low == 0 {
			low = positive(h.AvgLowPrice)
		}
		last := high
		if last == 0 {
			last = low
		}
		if last == 0 {
			continue
		}
		var margin float64
		if high > 0 && low > 0 {
			margin = max(high-low, 0)
		}
		out = append(out, models.MarketSnapshot{
			ItemID:    id,
			ItemName:  names[id],
			LastPrice: last,
			LastHigh:  high,
			LastLow:   low,
			Margin:    margin,
			Volume5m:  f.volume(),
			Volume1h:  h.volume(),
			AsOf:      asOf,
		})
	}
	return out, nil
}

// GetSnapshots serves quotes from a short-lived cache of the full feed.
func (c *Client) GetSnapshots(ctx context.Context, itemIDs []int64) (map[int64]models.MarketSnapshot, error) {
	out := make(map[int64]models.MarketSnapshot, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	all, err := cached(ctx, c, latestKey, 20*time.Second, c.LatestSnapshots)
	if err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = struct{}{}
	}
	for _, s := range all {
		if _, ok := want[s.ItemID]; ok {
			out[s.ItemID] = s
		}
	}
	return out, nil
}

func (c *Client) GetSnapshot(ctx context.Context, itemID int64) (*models.MarketSnapshot, error) {
	snaps, err := c.GetSnapshots(ctx, []int64{itemID})
	if err != nil {
		return nil, err
	}
	s, ok := snaps[itemID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

var (
	_ domrepo.SeriesProvider   = (*Client)(nil)
	_ domrepo.SnapshotProvider = (*Client)(nil)
	_ domrepo.MarketFeed       = (*Client)(nil)
)
