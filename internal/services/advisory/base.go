// Package advisory implements the explanation port: a remote HTTP service
// guarded by a circuit breaker, and a local template fallback.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	xhttp "FlipDesk/pkg/http"
)

// ErrNotConfigured is returned when no advisory URL is set.
var ErrNotConfigured = errors.New("advisory http client not initialized")

// httpBase centralizes client construction and JSON POSTs, with every call
// going through one breaker so a dead service stops costing request time.
type httpBase struct {
	baseURL string
	client  *xhttp.Client
	cb      *gobreaker.CircuitBreaker
}

func newHTTPBase(baseURL string, timeout time.Duration, failures uint32, openFor time.Duration) *httpBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if failures == 0 {
		failures = 3
	}
	st := gobreaker.Settings{
		Name:    "advisory",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || xhttp.IsClientError(err)
		},
	}
	return &httpBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// postJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *httpBase) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return ErrNotConfigured
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    b.baseURL + path,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, dest)
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (b *httpBase) State() gobreaker.State { return b.cb.State() }
