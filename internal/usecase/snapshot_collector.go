package usecase

import (
	"context"
	"fmt"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/pkg/logger"
)

// SnapshotCollector polls the market feed and forwards the quotes. With a
// publisher the quotes go through the ingest stream; without one they are
// stored directly.
type SnapshotCollector struct {
	feed      domrepo.MarketFeed
	publisher domrepo.SnapshotPublisher
	store     domrepo.SnapshotStore
	metrics   domrepo.Metrics
	log       *logger.Logger
	batchSize int
}

func NewSnapshotCollector(feed domrepo.MarketFeed, publisher domrepo.SnapshotPublisher, store domrepo.SnapshotStore, metrics domrepo.Metrics, lgr *logger.Logger) *SnapshotCollector {
	return &SnapshotCollector{feed: feed, publisher: publisher, store: store, metrics: metrics, log: lgr, batchSize: 500}
}

// Collect runs one poll and returns how many snapshots were forwarded.
func (c *SnapshotCollector) Collect(ctx context.Context) (int, error) {
	start := time.Now()
	snaps, err := c.feed.LatestSnapshots(ctx)
	if err != nil {
		c.metrics.RecordSourceError("feed")
		return 0, fmt.Errorf("poll market feed: %w", err)
	}

	sent := 0
	for i := 0; i < len(snaps); i += c.batchSize {
		batch := snaps[i:min(i+c.batchSize, len(snaps))]
		if err := c.forward(ctx, batch); err != nil {
			c.metrics.RecordError("collect")
			return sent, err
		}
		sent += len(batch)
	}

	c.metrics.RecordLatency("collect", time.Since(start).Seconds())
	c.log.Debug("snapshots collected", logger.Int("count", sent), logger.Duration("took", time.Since(start)))
	return sent, nil
}

// Run adapts Collect to a scheduled job.
func (c *SnapshotCollector) Run(ctx context.Context) error {
	_, err := c.Collect(ctx)
	return err
}

func (c *SnapshotCollector) forward(ctx context.Context, batch []models.MarketSnapshot) error {
	if c.publisher != nil {
		if err := c.publisher.PublishSnapshots(ctx, batch); err != nil {
			return fmt.Errorf("publish snapshots: %w", err)
		}
		return nil
	}
	if err := c.store.StoreSnapshots(ctx, batch); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	return nil
}
