package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
)

// SQLiteJournal keeps the funnel history of scan runs in a local file.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteJournal opens (or creates) the journal database.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			run_id          TEXT PRIMARY KEY,
			started_at      INTEGER NOT NULL,
			duration_ms     INTEGER NOT NULL,
			candidates      INTEGER NOT NULL,
			no_data         INTEGER NOT NULL,
			rejected_stage0 INTEGER NOT NULL,
			rejected_stage1 INTEGER NOT NULL,
			rejected_stage2 INTEGER NOT NULL,
			accepted        INTEGER NOT NULL,
			reasons         TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at)`,
	}
	for _, s := range stmts {
		if _, err := j.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLiteJournal) RecordScan(ctx context.Context, res *models.ScanResult) error {
	if res == nil {
		return nil
	}
	reasons, err := json.Marshal(res.Funnel.RejectedReasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	f := res.Funnel

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans
			(run_id, started_at, duration_ms, candidates, no_data,
			 rejected_stage0, rejected_stage1, rejected_stage2, accepted, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.StartedAt.UnixMilli(), res.Duration.Milliseconds(), f.Candidates, f.NoData,
		f.RejectedStage0, f.RejectedStage1, f.RejectedStage2, f.Accepted, string(reasons))
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// RecentScans returns up to limit runs started at or after since, newest
// first. A zero since means no lower bound.
func (j *SQLiteJournal) RecentScans(ctx context.Context, since time.Time, limit int) ([]domrepo.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, candidates, no_data,
		       rejected_stage0, rejected_stage1, rejected_stage2, accepted, reasons
		FROM scans
		WHERE started_at >= ?
		ORDER BY started_at DESC
		LIMIT ?`, sinceMillis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []domrepo.ScanRecord
	for rows.Next() {
		var (
			rec       domrepo.ScanRecord
			startedMs int64
			reasons   string
		)
		f := &rec.Funnel
		if err := rows.Scan(&rec.RunID, &startedMs, &rec.DurationMs, &f.Candidates, &f.NoData,
			&f.RejectedStage0, &f.RejectedStage1, &f.RejectedStage2, &f.Accepted, &reasons); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedMs).UTC()
		if err := json.Unmarshal([]byte(reasons), &f.RejectedReasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sinceMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// NoopJournal discards scan records.
type NoopJournal struct{}

func (NoopJournal) RecordScan(context.Context, *models.ScanResult) error { return nil }

func (NoopJournal) RecentScans(context.Context, time.Time, int) ([]domrepo.ScanRecord, error) {
	return nil, nil
}

func (NoopJournal) Close() error { return nil }

var (
	_ domrepo.ScanJournal = (*SQLiteJournal)(nil)
	_ domrepo.ScanJournal = NoopJournal{}
)
