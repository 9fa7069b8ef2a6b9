package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FlipDesk/internal/usecase"
	xhttp "FlipDesk/pkg/http"
	pkgkafka "FlipDesk/pkg/kafka"
	applogger "FlipDesk/pkg/logger"
	"FlipDesk/pkg/queue"
)

// Job names the scheduler knows. Warm-up runs them in this order so the
// first scan sees a synced catalog and fresh quotes.
const (
	JobCatalog        = "catalog"
	JobCollect        = "collect"
	JobScan           = "scan"
	JobRateLimitSweep = "ratelimit-sweep"
)

var warmup = []string{JobCatalog, JobCollect, JobScan}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *usecase.Scheduler
	consumer   *pkgkafka.Consumer
	ingest     pkgkafka.MessageHandler
	queue      *queue.RedisQueue
}

// Option attaches an optional component.
type Option func(*App)

// WithConsumer runs the snapshot ingest consumer alongside the API.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil && h != nil {
			a.consumer, a.ingest = c, h
		}
	}
}

// WithQueue runs the explanation queue workers.
func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

// New creates a new App instance with all dependencies.
func New(lgr *applogger.Logger, httpServer *xhttp.Server, scheduler *usecase.Scheduler, opts ...Option) *App {
	a := &App{log: lgr, httpServer: httpServer, scheduler: scheduler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		a.consumer.RegisterHandler(a.ingest)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("snapshot ingest started", applogger.String("topic", a.ingest.Topic()))
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			// Explanations degrade to the synchronous path.
			a.log.Warn("explain queue unavailable", applogger.Error(err))
			a.queue = nil
		}
	}

	a.scheduler.Start()
	go func() {
		for _, name := range warmup {
			if ctx.Err() != nil {
				return
			}
			a.scheduler.RunNow(name)
		}
		a.log.Info("warm-up complete")
	}()

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then background work.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	a.scheduler.Stop()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("explain queue stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	// Flush shipped log digests while the producer is still open.
	a.log.RemoveCollector()
	return firstErr
}
