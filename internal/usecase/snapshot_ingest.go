package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	pkgkafka "FlipDesk/pkg/kafka"
)

// SnapshotIngestHandler consumes snapshot batches and writes them to storage.
type SnapshotIngestHandler struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
}

func NewSnapshotIngestHandler(topic string, store domrepo.SnapshotStore, metrics domrepo.Metrics) *SnapshotIngestHandler {
	return &SnapshotIngestHandler{topic: topic, store: store, metrics: metrics}
}

func (h *SnapshotIngestHandler) Topic() string { return h.topic }

// Handle stores one batch. Snapshots without an item or a price are dropped.
func (h *SnapshotIngestHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.SnapshotBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if !batch.CollectedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(batch.CollectedAt).Seconds())
	}

	valid := batch.Snapshots[:0]
	for _, s := range batch.Snapshots {
		if s.ItemID <= 0 || (s.LastPrice <= 0 && s.LastHigh <= 0 && s.LastLow <= 0) {
			continue
		}
		if s.AsOf.IsZero() {
			s.AsOf = batch.CollectedAt
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil
	}

	start := time.Now()
	err := h.store.StoreSnapshots(ctx, valid)
	h.metrics.RecordLatency("ingest_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("ingest_store")
		return fmt.Errorf("store %d snapshots (trace %s): %w", len(valid), pkgkafka.TraceID(ctx), err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SnapshotIngestHandler)(nil)
