// Package wiki reads prices and the item catalog from the OSRS wiki
// real-time prices API.
package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"FlipDesk/pkg/cache"
	xhttp "FlipDesk/pkg/http"
	applogger "FlipDesk/pkg/logger"
)

type Config struct {
	BaseURL         string
	UserAgent       string
	RequestsPerSec  float64
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client talks to the wiki API. Every request waits on the rate limiter and
// runs through the breaker. The API rejects requests without a descriptive
// User-Agent.
type Client struct {
	base    string
	ua      string
	http    *xhttp.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	cache   cache.Service
	log     *applogger.Logger
	now     func() time.Time
}

func New(cfg Config, c cache.Service, lgr *applogger.Logger) *Client {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flipdesk/1.0"
	}
	st := gobreaker.Settings{
		Name:    "wiki",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A rejected query says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			return err == nil || xhttp.IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lgr.Warn("breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &Client{
		base:    cfg.BaseURL,
		ua:      cfg.UserAgent,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		cb:      gobreaker.NewCircuitBreaker(st),
		cache:   c,
		log:     lgr,
		now:     time.Now,
	}
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wiki %s: %w", path, err)
	}
	start := time.Now()
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.base + path,
			Headers:     map[string]string{"User-Agent": c.ua, "Accept": "application/json"},
			QueryParams: query,
		}, dest)
	})
	if err != nil {
		return fmt.Errorf("wiki %s: %w", path, err)
	}
	c.log.Debug("wiki request ok", applogger.String("path", path), applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State { return c.cb.State() }

// cached reads key from the cache or loads and stores it for ttl.
func cached[T any](ctx context.Context, c *Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &v); err == nil {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, v, ttl); err != nil {
			c.log.Warn("wiki cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return v, nil
}
