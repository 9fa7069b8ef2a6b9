package repository

import (
	"context"
	"time"

	"FlipDesk/internal/domain/models"
)

// SeriesProvider supplies ordered price history. A series shorter than two
// points is a valid "insufficient data" answer, not an error.
type SeriesProvider interface {
	GetSeries(ctx context.Context, itemID int64, lookback time.Duration, referencePrice float64) (models.PriceSeries, error)
}

// SnapshotProvider supplies the latest quote per item. A nil snapshot means
// the item has none.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, itemID int64) (*models.MarketSnapshot, error)
	GetSnapshots(ctx context.Context, itemIDs []int64) (map[int64]models.MarketSnapshot, error)
}

// SnapshotStore persists ingested snapshots.
type SnapshotStore interface {
	StoreSnapshots(ctx context.Context, snaps []models.MarketSnapshot) error
}

// MarketFeed polls the upstream market for the latest quotes of every item.
type MarketFeed interface {
	LatestSnapshots(ctx context.Context) ([]models.MarketSnapshot, error)
}

// SnapshotPublisher hands collected snapshots to the ingest stream.
type SnapshotPublisher interface {
	PublishSnapshots(ctx context.Context, snaps []models.MarketSnapshot) error
}

type PositionRepository interface {
	ListOpenPositions(ctx context.Context, sess models.SessionContext) ([]models.Position, error)
}

type ThesisRepository interface {
	ListActiveTheses(ctx context.Context, sess models.SessionContext) ([]models.Thesis, error)
}

type AlertRepository interface {
	ListUnresolvedAlerts(ctx context.Context, sess models.SessionContext) ([]models.Alert, error)
}

type OrderRepository interface {
	// ListStaleOrders returns open orders created before the cutoff.
	ListStaleOrders(ctx context.Context, sess models.SessionContext, before time.Time) ([]models.Order, error)
}

// ItemRepository reads the candidate pool and static item data.
type ItemRepository interface {
	ListPool(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, itemID int64) (*models.Item, error)
	BuyLimits(ctx context.Context, itemIDs []int64) (map[int64]int64, error)
}

// CatalogSource lists every tradeable item with its static data.
type CatalogSource interface {
	Mapping(ctx context.Context) ([]models.Item, error)
}

// CatalogStore keeps the local item catalog. New items join the scan pool
// when listed in poolIDs, or when poolIDs is empty and they have a buy limit.
type CatalogStore interface {
	UpsertItems(ctx context.Context, items []models.Item, poolIDs []int64) error
}

// SignalPublisher streams accepted signals to downstream consumers.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, runID string, signals []models.InvestmentSignal) error
	Close() error
}

// ScanJournal records scan runs and their funnel counts.
type ScanJournal interface {
	RecordScan(ctx context.Context, res *models.ScanResult) error
	// RecentScans returns up to limit runs started at or after since, newest first.
	RecentScans(ctx context.Context, since time.Time, limit int) ([]ScanRecord, error)
	Close() error
}

// ScanRecord is a journaled scan run.
type ScanRecord struct {
	RunID      string
	StartedAt  time.Time
	DurationMs int64
	Funnel     models.FunnelCounts
}

type Metrics interface {
	RecordStageOutcome(stage string, reason string)
	RecordSourceError(source string)
	RecordActions(queued, visible int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
