package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/pkg/logger"
)

// CatalogSync copies the upstream item catalog into the local store.
type CatalogSync struct {
	source  domrepo.CatalogSource
	store   domrepo.CatalogStore
	poolIDs []int64
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewCatalogSync(source domrepo.CatalogSource, store domrepo.CatalogStore, poolIDs []int64, metrics domrepo.Metrics, lgr *logger.Logger) *CatalogSync {
	return &CatalogSync{source: source, store: store, poolIDs: poolIDs, metrics: metrics, log: lgr}
}

// Sync returns how many items were written.
func (s *CatalogSync) Sync(ctx context.Context) (int, error) {
	start := time.Now()
	items, err := s.source.Mapping(ctx)
	if err != nil {
		s.metrics.RecordSourceError("catalog")
		return 0, fmt.Errorf("read catalog: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertItems(ctx, items, s.poolIDs); err != nil {
		s.metrics.RecordError("catalog")
		return 0, fmt.Errorf("store catalog: %w", err)
	}
	s.metrics.RecordLatency("catalog", time.Since(start).Seconds())
	s.log.Info("catalog synced", logger.Int("items", len(items)), logger.Int("pool_ids", len(s.poolIDs)))
	return len(items), nil
}

func (s *CatalogSync) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}
