package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FlipDesk/internal/domain/repository"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/internal/handler/api"
	internalrepo "FlipDesk/internal/repository"
	"FlipDesk/internal/service/ratelimit"
	"FlipDesk/internal/service/wiki"
	"FlipDesk/internal/services/advisory"
	"FlipDesk/internal/services/features"
	"FlipDesk/internal/services/portfolio"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/internal/usecase"
	"FlipDesk/pkg/cache"
	pkgch "FlipDesk/pkg/clickhouse"
	"FlipDesk/pkg/config"
	xhttp "FlipDesk/pkg/http"
	pkgkafka "FlipDesk/pkg/kafka"
	applogger "FlipDesk/pkg/logger"
	"FlipDesk/pkg/metrics"
	"FlipDesk/pkg/queue"
	"FlipDesk/pkg/server"
)

// Optional components are provided as nil when their config section is
// empty. Providers that hand out interfaces return an untyped nil then, so
// consumers can compare against nil.

const (
	logFlushInterval = 30 * time.Second
	logFlushCount    = 100
	limiterIdle      = 10 * time.Minute
)

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "flipdesk"), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvidePostgresDesk opens the pool and migrates the desk schema.
func ProvidePostgresDesk(cfg *config.Config) (*internalrepo.PostgresDesk, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := internalrepo.NewPostgresPool(ctx, cfg.Postgres.DSN, internalrepo.PoolConfig{
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	desk := internalrepo.NewPostgresDesk(pool)
	if err := desk.Migrate(ctx); err != nil {
		desk.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	return desk, desk.Close, nil
}

// ProvideRedisCache connects to Redis when enabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process cache over Redis, or runs in memory only.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideWikiClient creates the wiki prices client.
func ProvideWikiClient(cfg *config.Config, c cache.Service, lgr *applogger.Logger) *wiki.Client {
	m := cfg.Market
	return wiki.New(wiki.Config{
		BaseURL:         m.WikiBaseURL,
		UserAgent:       m.UserAgent,
		RequestsPerSec:  m.RequestsPerSec,
		Timeout:         m.Timeout,
		BreakerFailures: m.BreakerFailures,
		BreakerTimeout:  m.BreakerTimeout,
	}, c, lgr)
}

// ProvideClickHouseClient connects to ClickHouse and creates the snapshot
// schema. It is nil without a host.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	ch := cfg.ClickHouse
	if ch.Host == "" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(ch.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCHMarketStore wraps the ClickHouse client, nil without one.
func ProvideCHMarketStore(client *pkgch.Client, cfg *config.Config, lgr *applogger.Logger) *internalrepo.CHMarketStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHMarketStore(client.DB(), cfg.ClickHouse.Database, lgr)
}

// ProvideSeriesProvider picks the history source named by market.source.
func ProvideSeriesProvider(cfg *config.Config, w *wiki.Client, store *internalrepo.CHMarketStore) repository.SeriesProvider {
	if cfg.Market.Source == "clickhouse" && store != nil {
		return store
	}
	return w
}

// ProvideSnapshotProvider picks the quote source named by market.source.
func ProvideSnapshotProvider(cfg *config.Config, w *wiki.Client, store *internalrepo.CHMarketStore) repository.SnapshotProvider {
	if cfg.Market.Source == "clickhouse" && store != nil {
		return store
	}
	return w
}

// ProvideSnapshotStore exposes the ClickHouse store for ingest.
func ProvideSnapshotStore(store *internalrepo.CHMarketStore) repository.SnapshotStore {
	if store == nil {
		return nil
	}
	return store
}

// ProvideKafkaProducer creates a Kafka producer when brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.Linger),
		pkgkafka.WithWriteTimeout(k.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideSignalPublisher streams accepted signals when Kafka is configured.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideSnapshotPublisher routes collected snapshots through Kafka when this
// process also runs the ingest consumer. Otherwise the collector stores them
// directly.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotPublisher {
	if producer == nil || !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotsTopic)
}

// ProvideJournal opens the SQLite scan journal, or a no-op one without a path.
func ProvideJournal(cfg *config.Config) (repository.ScanJournal, func(), error) {
	path := cfg.Scan.JournalPath
	if path == "" {
		return internalrepo.NoopJournal{}, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("journal dir: %w", err)
	}
	j, err := internalrepo.NewSQLiteJournal(path)
	if err != nil {
		return nil, nil, fmt.Errorf("scan journal: %w", err)
	}
	return j, func() { _ = j.Close() }, nil
}

// ProvideAdvisoryPort uses the remote explainer with a template fallback, or
// the template alone when no URL is set.
func ProvideAdvisoryPort(cfg *config.Config, lgr *applogger.Logger) domsvc.AdvisoryPort {
	tmpl := advisory.NewTemplateAdvisor()
	if cfg.Advisory.URL == "" {
		return tmpl
	}
	return advisory.NewFallback(advisory.NewHTTPAdvisor(cfg), tmpl, lgr)
}

// ProvideExplainQueue runs scan explanations off the request path. It needs
// Redis and advisory.async.
func ProvideExplainQueue(cfg *config.Config, rc *cache.RedisCache, port domsvc.AdvisoryPort, c cache.Service, lgr *applogger.Logger) *queue.RedisQueue {
	if rc == nil || !cfg.Advisory.Async {
		return nil
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, rc.Client(), queue.WithKeyPrefix("flipdesk:explain"))
	q.RegisterJob(advisory.NewExplainJob(port, c, cfg.Scan.CacheTTL, lgr))
	return q
}

func ProvideAnalyzer(cfg *config.Config) *reversion.Analyzer {
	return reversion.NewAnalyzer(cfg.Strategy)
}

// ProvideScanUseCase assembles the pool scan.
func ProvideScanUseCase(
	cfg *config.Config,
	desk *internalrepo.PostgresDesk,
	series repository.SeriesProvider,
	c cache.Service,
	publisher repository.SignalPublisher,
	journal repository.ScanJournal,
	explain *queue.RedisQueue,
	m repository.Metrics,
	analyzer *reversion.Analyzer,
	lgr *applogger.Logger,
) *usecase.ScanUseCase {
	deps := usecase.ScanDeps{
		Items:     desk,
		Series:    series,
		Cache:     c,
		Publisher: publisher,
		Journal:   journal,
		Metrics:   m,
	}
	if explain != nil {
		deps.Explain = explain
	}
	return usecase.NewScanUseCase(deps, analyzer, cfg, lgr)
}

func ProvideItemUseCase(
	cfg *config.Config,
	desk *internalrepo.PostgresDesk,
	series repository.SeriesProvider,
	analyzer *reversion.Analyzer,
	port domsvc.AdvisoryPort,
	c cache.Service,
	lgr *applogger.Logger,
) *usecase.ItemUseCase {
	return usecase.NewItemUseCase(desk, series, analyzer, features.NewExtractor(), port, c, cfg.Scan.SeriesWindow, lgr)
}

func ProvidePortfolioUseCase(
	cfg *config.Config,
	desk *internalrepo.PostgresDesk,
	snapshots repository.SnapshotProvider,
	series repository.SeriesProvider,
	port domsvc.AdvisoryPort,
	m repository.Metrics,
	analyzer *reversion.Analyzer,
	lgr *applogger.Logger,
) *usecase.PortfolioUseCase {
	deps := usecase.PortfolioDeps{
		Positions: desk,
		Snapshots: snapshots,
		Series:    series,
		Port:      port,
		Metrics:   m,
	}
	return usecase.NewPortfolioUseCase(deps, analyzer, portfolio.NewAdvisor(cfg.Strategy), cfg.Scan.SeriesWindow, cfg.Scan.Workers, lgr)
}

func ProvideNBAUseCase(cfg *config.Config, desk *internalrepo.PostgresDesk, snapshots repository.SnapshotProvider, m repository.Metrics, lgr *applogger.Logger) *usecase.NBAUseCase {
	return usecase.NewNBAUseCase(usecase.NBARepos{
		Positions: desk,
		Theses:    desk,
		Alerts:    desk,
		Orders:    desk,
		Items:     desk,
		Snapshots: snapshots,
	}, cfg.Strategy, m, lgr)
}

func ProvideDeskUseCase(cfg *config.Config, desk *internalrepo.PostgresDesk, snapshots repository.SnapshotProvider, scans *usecase.ScanUseCase, m repository.Metrics, lgr *applogger.Logger) *usecase.DeskUseCase {
	return usecase.NewDeskUseCase(desk, snapshots, scans, cfg.Strategy, m, lgr)
}

func ProvideCatalogSync(cfg *config.Config, w *wiki.Client, desk *internalrepo.PostgresDesk, m repository.Metrics, lgr *applogger.Logger) *usecase.CatalogSync {
	return usecase.NewCatalogSync(w, desk, cfg.Market.PoolIDs, m, lgr)
}

// ProvideSnapshotCollector is nil when snapshots have nowhere to go.
func ProvideSnapshotCollector(w *wiki.Client, publisher repository.SnapshotPublisher, store repository.SnapshotStore, m repository.Metrics, lgr *applogger.Logger) *usecase.SnapshotCollector {
	if publisher == nil && store == nil {
		return nil
	}
	return usecase.NewSnapshotCollector(w, publisher, store, m, lgr)
}

// ProvideRateLimiter keys one bucket per client.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rps := cfg.Server.RateLimitRPS
	if rps <= 0 {
		return nil
	}
	return ratelimit.New(float64(rps), rps*2)
}

func ProvideHTTPHandler(
	lgr *applogger.Logger,
	nba *usecase.NBAUseCase,
	scans *usecase.ScanUseCase,
	items *usecase.ItemUseCase,
	pf *usecase.PortfolioUseCase,
	desk *usecase.DeskUseCase,
) *api.DeskEchoHandler {
	return api.NewDeskEchoHandler(lgr, nba, scans, items, pf, desk)
}

func ProvideHTTPServer(cfg *config.Config, lgr *applogger.Logger, h *api.DeskEchoHandler, lim *ratelimit.Limiter) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins...),
	}
	if lim != nil {
		opts = append(opts, xhttp.WithMiddleware(api.RateLimit(lim)))
	}
	return xhttp.NewServer(lgr, h, opts...)
}

// ProvideScheduler registers the periodic jobs. Collect is registered only
// when a collector exists.
func ProvideScheduler(
	cfg *config.Config,
	lgr *applogger.Logger,
	scans *usecase.ScanUseCase,
	catalog *usecase.CatalogSync,
	collector *usecase.SnapshotCollector,
	lim *ratelimit.Limiter,
) (*usecase.Scheduler, error) {
	s := usecase.NewScheduler(lgr)
	if err := s.Register(cfg.Market.CatalogSchedule, server.JobCatalog, catalog.Run); err != nil {
		return nil, err
	}
	if err := s.Register(cfg.Scan.Schedule, server.JobScan, scans.Refresh); err != nil {
		return nil, err
	}
	if collector != nil {
		if err := s.Register(cfg.Market.CollectSchedule, server.JobCollect, collector.Run); err != nil {
			return nil, err
		}
	}
	if lim != nil {
		sweep := func(context.Context) error {
			if n := lim.Sweep(limiterIdle); n > 0 {
				lgr.Debug("rate limiter swept", applogger.Int("keys", n))
			}
			return nil
		}
		if err := s.Register("@every 5m", server.JobRateLimitSweep, sweep); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ProvideKafkaConsumer creates the snapshot ingest consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	k := cfg.Kafka
	if !k.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(lgr,
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideIngestHandler stores consumed snapshot batches.
func ProvideIngestHandler(cfg *config.Config, store repository.SnapshotStore, m repository.Metrics) *usecase.SnapshotIngestHandler {
	if store == nil {
		return nil
	}
	return usecase.NewSnapshotIngestHandler(cfg.Kafka.SnapshotsTopic, store, m)
}

// ProvideApp creates the application server. With Kafka configured the
// logger also ships aggregated entries to the logs topic.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	ingest *usecase.SnapshotIngestHandler,
	explain *queue.RedisQueue,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   logFlushInterval,
			CountThreshold: logFlushCount,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}

	opts := []server.Option{server.WithQueue(explain)}
	if consumer != nil && ingest != nil {
		opts = append(opts, server.WithConsumer(consumer, ingest))
	}
	return server.New(lgr, httpServer, scheduler, opts...)
}
