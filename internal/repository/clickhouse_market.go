package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	applogger "FlipDesk/pkg/logger"
	"FlipDesk/pkg/util"
)

// ClickHouseSchema creates the snapshot table. Series are aggregated from it
// at read time.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.snapshots (
			as_of      DateTime,
			item_id    Int64,
			item_name  String,
			last_price Float64,
			last_high  Float64,
			last_low   Float64,
			margin     Float64,
			volume_5m  Int64,
			volume_1h  Int64
		) ENGINE = ReplacingMergeTree
		PARTITION BY toYYYYMM(as_of)
		ORDER BY (item_id, as_of)`, database),
	}
}

// CHMarketStore serves series and snapshots from ClickHouse and stores
// ingested snapshots.
type CHMarketStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHMarketStore(db *sql.DB, database string, l *applogger.Logger) *CHMarketStore {
	return &CHMarketStore{db: db, table: database + ".snapshots", l: l, now: time.Now}
}

// GetSeries buckets snapshots at the granularity the lookback calls for.
// Volume is the 5m volume summed over the bucket.
func (s *CHMarketStore) GetSeries(ctx context.Context, itemID int64, lookback time.Duration, referencePrice float64) (models.PriceSeries, error) {
	start := time.Now()
	gran := domrepo.GranularityFor(lookback)
	q := fmt.Sprintf(`
		SELECT toStartOfInterval(as_of, INTERVAL %d SECOND) AS bucket,
		       avg(last_price) AS price,
		       toInt64(sum(volume_5m)) AS volume
		FROM %s
		WHERE item_id = ? AND as_of >= ? AND last_price > 0
		GROUP BY bucket
		ORDER BY bucket ASC`, int(gran.Duration().Seconds()), s.table)

	// Start on a bucket boundary so the first bucket is complete.
	now := s.now()
	since, _ := util.AlignFromTo(now.Add(-lookback), now, string(gran))
	rows, err := s.db.QueryContext(ctx, q, itemID, since)
	if err != nil {
		s.l.Error("clickhouse series query failed", applogger.Int64("item_id", itemID), applogger.Error(err))
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	var out models.PriceSeries
	for rows.Next() {
		var (
			p   models.PricePoint
			vol int64
		)
		if err := rows.Scan(&p.Timestamp, &p.Price, &vol); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		p.Volume = &vol
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	out = out.NearReference(referencePrice)
	s.l.Debug("clickhouse series ok",
		applogger.Int64("item_id", itemID),
		applogger.String("granularity", string(gran)),
		applogger.Int("points", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

const snapshotColumns = "as_of, item_id, item_name, last_price, last_high, last_low, margin, volume_5m, volume_1h"

// GetSnapshot returns the newest snapshot of one item, nil when none exists.
func (s *CHMarketStore) GetSnapshot(ctx context.Context, itemID int64) (*models.MarketSnapshot, error) {
	snaps, err := s.GetSnapshots(ctx, []int64{itemID})
	if err != nil {
		return nil, err
	}
	snap, ok := snaps[itemID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// GetSnapshots returns the newest snapshot per requested item.
func (s *CHMarketStore) GetSnapshots(ctx context.Context, itemIDs []int64) (map[int64]models.MarketSnapshot, error) {
	out := make(map[int64]models.MarketSnapshot, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	holders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	q := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE item_id IN (%s)
		ORDER BY as_of DESC
		LIMIT 1 BY item_id`, snapshotColumns, s.table, holders)

	args := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse snapshot query failed", applogger.Int("items", len(itemIDs)), applogger.Error(err))
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.MarketSnapshot
		if err := rows.Scan(&m.AsOf, &m.ItemID, &m.ItemName, &m.LastPrice, &m.LastHigh, &m.LastLow, &m.Margin, &m.Volume5m, &m.Volume1h); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out[m.ItemID] = m
	}
	return out, rows.Err()
}

// StoreSnapshots inserts snapshots in multi-row chunks.
func (s *CHMarketStore) StoreSnapshots(ctx context.Context, snaps []models.MarketSnapshot) error {
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		chunk := snaps[start:min(start+chunkSize, len(snaps))]
		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*9)
		for _, m := range chunk {
			asOf := m.AsOf
			if asOf.IsZero() {
				asOf = s.now()
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, asOf.UTC(), m.ItemID, m.ItemName, m.LastPrice, m.LastHigh, m.LastLow, m.Margin, m.Volume5m, m.Volume1h)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, snapshotColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

func (s *CHMarketStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.SeriesProvider   = (*CHMarketStore)(nil)
	_ domrepo.SnapshotProvider = (*CHMarketStore)(nil)
	_ domrepo.SnapshotStore    = (*CHMarketStore)(nil)
)
