//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FlipDesk/pkg/config"
	"FlipDesk/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application with
// a cleanup that releases every opened client.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresDesk,
		ProvideRedisCache,
		ProvideCache,
		ProvideWikiClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideCHMarketStore,
		ProvideSeriesProvider,
		ProvideSnapshotProvider,
		ProvideSnapshotStore,
		ProvideSignalPublisher,
		ProvideSnapshotPublisher,
		ProvideJournal,

		// Services
		ProvideAdvisoryPort,
		ProvideExplainQueue,
		ProvideAnalyzer,
		ProvideRateLimiter,

		// Use cases
		ProvideScanUseCase,
		ProvideItemUseCase,
		ProvidePortfolioUseCase,
		ProvideNBAUseCase,
		ProvideDeskUseCase,
		ProvideCatalogSync,
		ProvideSnapshotCollector,
		ProvideIngestHandler,

		// Transport and lifecycle
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}
